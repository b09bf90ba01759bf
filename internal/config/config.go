package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for PaperStalk.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"    yaml:"search"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Pool      PoolConfig      `mapstructure:"pool"      yaml:"pool"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Upload    UploadConfig    `mapstructure:"upload"    yaml:"upload"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// SearchConfig describes the search portal.
type SearchConfig struct {
	// URLTemplate must contain the {query} placeholder.
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"`
}

// CollectorConfig controls link collection over paginated search results.
type CollectorConfig struct {
	LinkSelectors    []string      `mapstructure:"link_selectors"     yaml:"link_selectors"`
	PaginationXPath  string        `mapstructure:"pagination_xpath"   yaml:"pagination_xpath"` // %d is the page number
	NoResultsMarkers []string      `mapstructure:"no_results_markers" yaml:"no_results_markers"`
	SearchSettle     time.Duration `mapstructure:"search_settle"      yaml:"search_settle"`
	PageSettle       time.Duration `mapstructure:"page_settle"        yaml:"page_settle"`
	MaxPages         int           `mapstructure:"max_pages"          yaml:"max_pages"` // 0 = unbounded
}

// ExtractorConfig controls per-paper detail extraction.
type ExtractorConfig struct {
	Settle time.Duration  `mapstructure:"settle" yaml:"settle"`
	Fields FieldSelectors `mapstructure:"fields" yaml:"fields"`
}

// FieldSelectors lists the CSS selector cascade tried for each field when
// the page carries no structured value for it.
type FieldSelectors struct {
	Title    []string `mapstructure:"title"    yaml:"title"`
	Authors  []string `mapstructure:"authors"  yaml:"authors"`
	Abstract []string `mapstructure:"abstract" yaml:"abstract"`
	Year     []string `mapstructure:"year"     yaml:"year"`
	Journal  []string `mapstructure:"journal"  yaml:"journal"`
	Pages    []string `mapstructure:"pages"    yaml:"pages"`
}

// PoolConfig controls the extraction worker pool.
type PoolConfig struct {
	MaxWorkers   int           `mapstructure:"max_workers"   yaml:"max_workers"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ItemTimeout  time.Duration `mapstructure:"item_timeout"  yaml:"item_timeout"` // 0 = no deadline
}

// FetcherConfig selects the session backend.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"             yaml:"type"` // browser, http
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
	MaxBodySize     int64         `mapstructure:"max_body_size"    yaml:"max_body_size"`
	FollowRedirects bool          `mapstructure:"follow_redirects" yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"    yaml:"max_redirects"`
}

// BrowserConfig controls the headless browser backend. Launch flags are
// fixed in the fetcher package.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	Stealth  bool   `mapstructure:"stealth"  yaml:"stealth"`
	Bin      string `mapstructure:"bin"      yaml:"bin"`
}

// PipelineConfig controls record normalisation before persistence.
type PipelineConfig struct {
	Normalize      bool `mapstructure:"normalize"        yaml:"normalize"`
	MaxAbstractLen int  `mapstructure:"max_abstract_len" yaml:"max_abstract_len"` // 0 = no cap
}

// StorageConfig controls the output table.
type StorageConfig struct {
	Format    string `mapstructure:"format"     yaml:"format"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Prefix    string `mapstructure:"prefix"     yaml:"prefix"`
}

// UploadConfig controls the optional MongoDB upload of records.
type UploadConfig struct {
	Enabled    bool          `mapstructure:"enabled"    yaml:"enabled"`
	URI        string        `mapstructure:"uri"        yaml:"uri"`
	Database   string        `mapstructure:"database"   yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus-style metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config targeting DBpia.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			URLTemplate: "https://www.dbpia.co.kr/search/topSearch?startCount=0&collection=ALL&range=A&searchField=ALL&sort=RANK&query={query}&srchOption=*&includeAr=false",
		},
		Collector: CollectorConfig{
			LinkSelectors: []string{
				".thesis__pageLink",
				`a[href*="thesis"]`,
				".thesis a",
				".search-result a",
				".paper-item a",
				`a[href*="dbpia"]`,
			},
			PaginationXPath:  `//*[@id="pageList"]/a[%d]`,
			NoResultsMarkers: []string{"검색결과가 없습니다", "no results"},
			SearchSettle:     5 * time.Second,
			PageSettle:       3 * time.Second,
		},
		Extractor: ExtractorConfig{
			Settle: 2 * time.Second,
			Fields: FieldSelectors{
				Title:    []string{".thesis__title"},
				Authors:  []string{".thesis__author"},
				Abstract: []string{".abstractTxt"},
				Year:     []string{".thesis__year"},
				Journal:  []string{".thesis__journal"},
				Pages:    []string{".thesis__page", ".thesis__pages", ".page-info", ".thesis__volume", ".thesis__issue"},
			},
		},
		Pool: PoolConfig{
			MaxWorkers:   4,
			PollInterval: 1 * time.Second,
		},
		Fetcher: FetcherConfig{
			Type:            "browser",
			RequestTimeout:  30 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			FollowRedirects: true,
			MaxRedirects:    10,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Pipeline: PipelineConfig{
			Normalize: true,
		},
		Storage: StorageConfig{
			Format:    "csv",
			OutputDir: ".",
			Prefix:    "dbpia_papers",
		},
		Upload: UploadConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "paperstalk",
			Collection: "papers",
			Timeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}
