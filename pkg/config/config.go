// Package config contains all knobs and defaults used to configure the list query client and
// the listquery command.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

const (
	DefaultSiteTimeout = 30 * time.Second

	DefaultSchemaCacheEnabled = true
	DefaultSchemaCacheSize    = 1000
	DefaultSchemaCacheTTL     = 10 * time.Minute

	DefaultLookupMaxConcurrency          = 8
	DefaultExecutorMaxConcurrentRequests = math.MaxUint32

	DefaultTraceEnabled      = false
	DefaultTraceOTLPEndpoint = "0.0.0.0:4317"
	DefaultTraceSampleRatio  = 0.2
	DefaultTraceServiceName  = "listquery"

	// DefaultRetrievalMaxPages of zero means a retrieval follows the store's cursor until it
	// returns a page that is not full.
	DefaultRetrievalMaxPages = 0
)

// SiteConfig defines the site the lists are read from and written to.
type SiteConfig struct {
	// URL is the site's absolute url, e.g. 'https://contoso.example.com/sites/team'.
	URL string

	// Token is a bearer token sent with every request. Leave empty when the site does not
	// require one.
	Token string

	// Timeout bounds each request to the site.
	Timeout time.Duration
}

// LogConfig defines configurations for log specific settings. For production we
// recommend using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

// SchemaConfig defines how list schemas are cached.
type SchemaConfig struct {
	CacheEnabled bool

	// CacheSize is the maximum number of lists whose fields are cached.
	CacheSize int64

	// CacheTTL is how long a list's fields are cached.
	CacheTTL time.Duration
}

type LookupConfig struct {
	// MaxConcurrency is the maximum number of retrievals run at once when expanding lookups.
	MaxConcurrency int
}

type ExecutorConfig struct {
	// MaxConcurrentRequests is the maximum number of queries and field reads in flight against
	// the site at once.
	MaxConcurrentRequests uint32
}

type RetrievalConfig struct {
	// MaxPages is the maximum number of pages a single retrieval may request. Zero means no limit.
	MaxPages int
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// TraceConfig defines configurations for exporting the spans of queries and writes.
type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig
	SampleRatio float64
	ServiceName string
}

type Config struct {
	Site      SiteConfig
	Log       LogConfig
	Schema    SchemaConfig
	Lookup    LookupConfig
	Executor  ExecutorConfig
	Retrieval RetrievalConfig
	Trace     TraceConfig
}

// Verify checks the configuration. A site url is only required by commands that talk to the
// site, so it is checked only when set.
func (cfg *Config) Verify() error {
	if cfg.Site.URL != "" {
		u, err := url.Parse(cfg.Site.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config 'site.url' must be an absolute http or https url, got '%s'", cfg.Site.URL)
		}
	}

	if cfg.Site.Timeout < 0 {
		return errors.New("config 'site.timeout' must be a non-negative duration")
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error']",
		)
	}

	if cfg.Schema.CacheEnabled {
		if cfg.Schema.CacheSize <= 0 {
			return errors.New("config 'schema.cacheSize' must be a positive integer")
		}
		if cfg.Schema.CacheTTL <= 0 {
			return errors.New("config 'schema.cacheTTL' must be a positive duration")
		}
	}

	if cfg.Lookup.MaxConcurrency <= 0 {
		return errors.New("config 'lookup.maxConcurrency' must be a positive integer")
	}

	if cfg.Executor.MaxConcurrentRequests == 0 {
		return errors.New("config 'executor.maxConcurrentRequests' must be a positive integer")
	}

	if cfg.Retrieval.MaxPages < 0 {
		return errors.New("config 'retrieval.maxPages' must be a non-negative integer")
	}

	if cfg.Trace.Enabled {
		if cfg.Trace.OTLP.Endpoint == "" {
			return errors.New("config 'trace.otlp.endpoint' must be set when tracing is enabled")
		}
		if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
			return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
		}
	}

	return nil
}

// DefaultConfig is the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Timeout: DefaultSiteTimeout,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Schema: SchemaConfig{
			CacheEnabled: DefaultSchemaCacheEnabled,
			CacheSize:    DefaultSchemaCacheSize,
			CacheTTL:     DefaultSchemaCacheTTL,
		},
		Lookup: LookupConfig{
			MaxConcurrency: DefaultLookupMaxConcurrency,
		},
		Executor: ExecutorConfig{
			MaxConcurrentRequests: DefaultExecutorMaxConcurrentRequests,
		},
		Retrieval: RetrievalConfig{
			MaxPages: DefaultRetrievalMaxPages,
		},
		Trace: TraceConfig{
			Enabled: DefaultTraceEnabled,
			OTLP: OTLPTraceConfig{
				Endpoint: DefaultTraceOTLPEndpoint,
			},
			SampleRatio: DefaultTraceSampleRatio,
			ServiceName: DefaultTraceServiceName,
		},
	}
}

// MustDefaultConfig returns a default configuration and panics if it does not verify.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	if err := config.Verify(); err != nil {
		panic(err)
	}

	return config
}
