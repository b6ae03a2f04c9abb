package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openfga/listquery/cmd/util"
	"github.com/openfga/listquery/pkg/config"
)

// defineSiteFlags declares the flags of the commands that talk to a site.
func defineSiteFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	flags.String("site-url", defaultConfig.Site.URL, "the absolute url of the site whose lists are read or written")
	flags.String("site-token", defaultConfig.Site.Token, "a bearer token sent with every request to the site")
	flags.Duration("site-timeout", defaultConfig.Site.Timeout, "the timeout of a single request to the site")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")

	flags.Bool("schema-cache-enabled", defaultConfig.Schema.CacheEnabled, "enable caching of list schemas")
	flags.Int64("schema-cache-size", defaultConfig.Schema.CacheSize, "the maximum number of lists whose schema is cached")
	flags.Duration("schema-cache-ttl", defaultConfig.Schema.CacheTTL, "how long a list schema is cached")

	flags.Int("lookup-max-concurrency", defaultConfig.Lookup.MaxConcurrency, "the maximum number of retrievals run at once when expanding lookup columns")
	flags.Uint32("executor-max-concurrent-requests", defaultConfig.Executor.MaxConcurrentRequests, "the maximum number of queries and schema reads in flight against the site")
	flags.Int("retrieval-max-pages", defaultConfig.Retrieval.MaxPages, "the maximum number of pages a single retrieval may request (0 means no limit)")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use TLS connection for trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")
}

// bindSiteFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags. Binding happens when
// the command runs, since commands sharing a key would otherwise override each other's flags.
func bindSiteFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		util.MustBindPFlag("site.url", flags.Lookup("site-url"))
		util.MustBindEnv("site.url", "LISTQUERY_SITE_URL")

		util.MustBindPFlag("site.token", flags.Lookup("site-token"))
		util.MustBindEnv("site.token", "LISTQUERY_SITE_TOKEN")

		util.MustBindPFlag("site.timeout", flags.Lookup("site-timeout"))
		util.MustBindEnv("site.timeout", "LISTQUERY_SITE_TIMEOUT")

		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "LISTQUERY_LOG_FORMAT")

		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "LISTQUERY_LOG_LEVEL")

		util.MustBindPFlag("schema.cacheEnabled", flags.Lookup("schema-cache-enabled"))
		util.MustBindEnv("schema.cacheEnabled", "LISTQUERY_SCHEMA_CACHE_ENABLED", "LISTQUERY_SCHEMA_CACHEENABLED")

		util.MustBindPFlag("schema.cacheSize", flags.Lookup("schema-cache-size"))
		util.MustBindEnv("schema.cacheSize", "LISTQUERY_SCHEMA_CACHE_SIZE", "LISTQUERY_SCHEMA_CACHESIZE")

		util.MustBindPFlag("schema.cacheTTL", flags.Lookup("schema-cache-ttl"))
		util.MustBindEnv("schema.cacheTTL", "LISTQUERY_SCHEMA_CACHE_TTL", "LISTQUERY_SCHEMA_CACHETTL")

		util.MustBindPFlag("lookup.maxConcurrency", flags.Lookup("lookup-max-concurrency"))
		util.MustBindEnv("lookup.maxConcurrency", "LISTQUERY_LOOKUP_MAX_CONCURRENCY", "LISTQUERY_LOOKUP_MAXCONCURRENCY")

		util.MustBindPFlag("executor.maxConcurrentRequests", flags.Lookup("executor-max-concurrent-requests"))
		util.MustBindEnv("executor.maxConcurrentRequests", "LISTQUERY_EXECUTOR_MAX_CONCURRENT_REQUESTS", "LISTQUERY_EXECUTOR_MAXCONCURRENTREQUESTS")

		util.MustBindPFlag("retrieval.maxPages", flags.Lookup("retrieval-max-pages"))
		util.MustBindEnv("retrieval.maxPages", "LISTQUERY_RETRIEVAL_MAX_PAGES", "LISTQUERY_RETRIEVAL_MAXPAGES")

		util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
		util.MustBindEnv("trace.enabled", "LISTQUERY_TRACE_ENABLED")

		util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
		util.MustBindEnv("trace.otlp.endpoint", "LISTQUERY_TRACE_OTLP_ENDPOINT")

		util.MustBindPFlag("trace.otlp.tls.enabled", flags.Lookup("trace-otlp-tls-enabled"))
		util.MustBindEnv("trace.otlp.tls.enabled", "LISTQUERY_TRACE_OTLP_TLS_ENABLED")

		util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
		util.MustBindEnv("trace.sampleRatio", "LISTQUERY_TRACE_SAMPLE_RATIO", "LISTQUERY_TRACE_SAMPLERATIO")

		util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
		util.MustBindEnv("trace.serviceName", "LISTQUERY_TRACE_SERVICE_NAME", "LISTQUERY_TRACE_SERVICENAME")
	}
}

// ReadConfig returns the configuration read from flags, environment and config.yaml, on top of
// the defaults.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// readDocument reads the file at path, or stdin when path is "-".
func readDocument(command *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(command.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return data, nil
}
