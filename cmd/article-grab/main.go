// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the article-grab CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/article-grab/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the article-grab CLI.
var rootCmd = &cobra.Command{
	Use:   "article-grab",
	Short: "Save platform articles as Markdown with local images",
	Long: `article-grab fetches articles from juejin.cn (or a compatible platform),
downloads their images into docs/images/, converts the article body to
Markdown and writes docs/<title>.md with a YAML front-matter header.

Grab single posts with "post", every post of a user with "user", and inspect
what has been saved with "list".`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./article-grab.yaml or ~/.config/article-grab/article-grab.yaml)")
	rootCmd.PersistentFlags().String("docs-dir", "", "output directory for documents (default docs)")
	viper.BindPFlag("docs_dir", rootCmd.PersistentFlags().Lookup("docs-dir"))
}

func initConfig() {
	setDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("article-grab")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "article-grab"))
		}
	}

	viper.SetEnvPrefix("ARTICLE_GRAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so environment variables
// and config files can override any of them.
func setDefaults(v *viper.Viper) {
	d := types.DefaultGrabConfig()
	v.SetDefault("http.timeout", d.Timeout)
	v.SetDefault("http.user_agent", d.UserAgent)
	v.SetDefault("http.max_retries", d.MaxRetries)
	v.SetDefault("platform.post_url_template", d.Platform.PostURLTemplate)
	v.SetDefault("platform.list_url", d.Platform.ListURL)
	v.SetDefault("platform.list_sort_type", d.Platform.ListSortType)
	v.SetDefault("platform.content_selector", d.Platform.ContentSelector)
	v.SetDefault("platform.title_suffix", d.Platform.TitleSuffix)
	v.SetDefault("docs_dir", d.DocsDir)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("image_concurrency", d.ImageConcurrency)
	v.SetDefault("on_image_error", string(d.OnImageError))
	v.SetDefault("article_timeout", d.ArticleTimeout)
	v.SetDefault("sanitize", d.Sanitize)
	v.SetDefault("catalog", d.Catalog)
}

// loadConfig decodes the merged defaults, config file, environment and
// flags into a GrabConfig.
func loadConfig(v *viper.Viper) (types.GrabConfig, error) {
	var cfg types.GrabConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = types.DefaultGrabConfig().DocsDir
	}
	switch cfg.OnImageError {
	case types.ImageErrorAbort, types.ImageErrorSkip:
	case "":
		cfg.OnImageError = types.ImageErrorAbort
	default:
		return cfg, fmt.Errorf("on_image_error must be %q or %q, got %q",
			types.ImageErrorAbort, types.ImageErrorSkip, cfg.OnImageError)
	}
	if !strings.Contains(cfg.Platform.PostURLTemplate, "%s") {
		return cfg, fmt.Errorf("platform.post_url_template must contain %%s, got %q", cfg.Platform.PostURLTemplate)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
