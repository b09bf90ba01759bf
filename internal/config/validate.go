package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if !strings.Contains(cfg.Search.URLTemplate, "{query}") {
		return fmt.Errorf("search.url_template must contain {query}, got %q", cfg.Search.URLTemplate)
	}
	if err := ValidateURL(strings.ReplaceAll(cfg.Search.URLTemplate, "{query}", "x")); err != nil {
		return fmt.Errorf("search.url_template: %w", err)
	}

	if len(cfg.Collector.LinkSelectors) == 0 {
		return fmt.Errorf("collector.link_selectors must not be empty")
	}
	if !strings.Contains(cfg.Collector.PaginationXPath, "%d") {
		return fmt.Errorf("collector.pagination_xpath must contain %%d, got %q", cfg.Collector.PaginationXPath)
	}
	if cfg.Collector.MaxPages < 0 {
		return fmt.Errorf("collector.max_pages must be >= 0, got %d", cfg.Collector.MaxPages)
	}
	if cfg.Collector.SearchSettle < 0 || cfg.Collector.PageSettle < 0 || cfg.Extractor.Settle < 0 {
		return fmt.Errorf("settle delays must be >= 0")
	}

	if cfg.Pool.MaxWorkers < 1 {
		return fmt.Errorf("pool.max_workers must be >= 1, got %d", cfg.Pool.MaxWorkers)
	}
	if cfg.Pool.MaxWorkers > 64 {
		return fmt.Errorf("pool.max_workers must be <= 64, got %d", cfg.Pool.MaxWorkers)
	}
	if cfg.Pool.PollInterval <= 0 {
		return fmt.Errorf("pool.poll_interval must be > 0")
	}
	if cfg.Pool.ItemTimeout < 0 {
		return fmt.Errorf("pool.item_timeout must be >= 0")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Pipeline.MaxAbstractLen < 0 {
		return fmt.Errorf("pipeline.max_abstract_len must be >= 0")
	}

	validFormats := map[string]bool{
		"csv": true, "json": true, "jsonl": true,
	}
	if !validFormats[cfg.Storage.Format] {
		return fmt.Errorf("storage.format %q is not supported (valid: csv, json, jsonl)", cfg.Storage.Format)
	}
	if cfg.Storage.Prefix == "" {
		return fmt.Errorf("storage.prefix must not be empty")
	}

	if cfg.Upload.Enabled {
		if cfg.Upload.URI == "" || cfg.Upload.Database == "" || cfg.Upload.Collection == "" {
			return fmt.Errorf("upload requires uri, database and collection")
		}
		if cfg.Upload.Timeout <= 0 {
			return fmt.Errorf("upload.timeout must be > 0")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
