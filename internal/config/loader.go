package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PAPERSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("paperstalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".paperstalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("search.url_template", cfg.Search.URLTemplate)

	v.SetDefault("collector.link_selectors", cfg.Collector.LinkSelectors)
	v.SetDefault("collector.pagination_xpath", cfg.Collector.PaginationXPath)
	v.SetDefault("collector.no_results_markers", cfg.Collector.NoResultsMarkers)
	v.SetDefault("collector.search_settle", cfg.Collector.SearchSettle)
	v.SetDefault("collector.page_settle", cfg.Collector.PageSettle)
	v.SetDefault("collector.max_pages", cfg.Collector.MaxPages)

	v.SetDefault("extractor.settle", cfg.Extractor.Settle)
	v.SetDefault("extractor.fields.title", cfg.Extractor.Fields.Title)
	v.SetDefault("extractor.fields.authors", cfg.Extractor.Fields.Authors)
	v.SetDefault("extractor.fields.abstract", cfg.Extractor.Fields.Abstract)
	v.SetDefault("extractor.fields.year", cfg.Extractor.Fields.Year)
	v.SetDefault("extractor.fields.journal", cfg.Extractor.Fields.Journal)
	v.SetDefault("extractor.fields.pages", cfg.Extractor.Fields.Pages)

	v.SetDefault("pool.max_workers", cfg.Pool.MaxWorkers)
	v.SetDefault("pool.poll_interval", cfg.Pool.PollInterval)
	v.SetDefault("pool.item_timeout", cfg.Pool.ItemTimeout)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.bin", cfg.Browser.Bin)

	v.SetDefault("pipeline.normalize", cfg.Pipeline.Normalize)
	v.SetDefault("pipeline.max_abstract_len", cfg.Pipeline.MaxAbstractLen)

	v.SetDefault("storage.format", cfg.Storage.Format)
	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.prefix", cfg.Storage.Prefix)

	v.SetDefault("upload.enabled", cfg.Upload.Enabled)
	v.SetDefault("upload.uri", cfg.Upload.URI)
	v.SetDefault("upload.database", cfg.Upload.Database)
	v.SetDefault("upload.collection", cfg.Upload.Collection)
	v.SetDefault("upload.timeout", cfg.Upload.Timeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
