package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/openfga/listquery/internal/build"
	"github.com/openfga/listquery/pkg/config"
	"github.com/openfga/listquery/pkg/encoder"
	"github.com/openfga/listquery/pkg/logger"
	"github.com/openfga/listquery/pkg/lookup"
	"github.com/openfga/listquery/pkg/retrieval"
	"github.com/openfga/listquery/pkg/storage"
	"github.com/openfga/listquery/pkg/storage/caching"
	"github.com/openfga/listquery/pkg/storage/rest"
	"github.com/openfga/listquery/pkg/storage/storagewrappers"
	"github.com/openfga/listquery/pkg/telemetry"
)

// siteClient is everything a command needs to read and write the lists of one site.
type siteClient struct {
	logger    logger.Logger
	store     storage.ListStore
	schema    storage.SchemaResolver
	cache     *caching.CachedSchemaResolver
	retriever *retrieval.Retriever
	expander  *lookup.Expander

	closers []func() error
}

// newSiteClient reads and verifies the configuration and builds the client stack it describes.
func newSiteClient() (*siteClient, error) {
	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if cfg.Site.URL == "" {
		return nil, errors.New("a site url is required: set --site-url, LISTQUERY_SITE_URL or 'site.url' in config.yaml")
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	c := &siteClient{logger: log}
	c.closers = append(c.closers, telemetryConfig(cfg, log))

	restOpts := []rest.ClientOption{
		rest.WithTimeout(cfg.Site.Timeout),
		rest.WithLogger(log),
		rest.WithRequestEditor(func(_ context.Context, req *http.Request) error {
			req.Header.Set("User-Agent", build.ProjectName+"/"+build.Version)
			return nil
		}),
	}
	if cfg.Site.Token != "" {
		restOpts = append(restOpts, rest.WithBearerToken(cfg.Site.Token))
	}
	client, err := rest.New(cfg.Site.URL, restOpts...)
	if err != nil {
		return nil, err
	}

	c.store = storagewrappers.NewBoundedConcurrencyListStore(client, cfg.Executor.MaxConcurrentRequests)
	c.schema = c.store
	if cfg.Schema.CacheEnabled {
		c.cache, err = caching.NewCachedSchemaResolver(c.store,
			caching.WithMaxSize(cfg.Schema.CacheSize),
			caching.WithTTL(cfg.Schema.CacheTTL),
		)
		if err != nil {
			return nil, err
		}
		c.schema = c.cache
		c.closers = append(c.closers, func() error {
			c.cache.Close()
			return nil
		})
	}

	c.retriever = retrieval.NewRetriever(c.store,
		retrieval.WithSchemaResolver(c.schema),
		retrieval.WithLogger(log),
		retrieval.WithMaxPages(cfg.Retrieval.MaxPages),
		retrieval.WithTokenEncoder(encoder.NewBase64Encoder()),
	)
	c.expander = lookup.NewExpander(c.retriever,
		lookup.WithMaxConcurrency(cfg.Lookup.MaxConcurrency),
		lookup.WithLogger(log),
	)

	log.Debug("site client ready",
		zap.String("site", cfg.Site.URL),
		zap.Bool("schema_cache", cfg.Schema.CacheEnabled),
		zap.Int("max_pages", cfg.Retrieval.MaxPages),
	)
	return c, nil
}

// Close releases the client's resources and flushes pending spans.
func (c *siteClient) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// telemetryConfig returns the function that must be called to shut down tracing.
func telemetryConfig(cfg *config.Config, log logger.Logger) func() error {
	if !cfg.Trace.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func() error { return nil }
	}

	log.Info(fmt.Sprintf("tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t",
		cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint, cfg.Trace.OTLP.TLS.Enabled))

	options := []telemetry.TracerOption{
		telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
		telemetry.WithAttributes(
			semconv.ServiceNameKey.String(cfg.Trace.ServiceName),
			semconv.ServiceVersionKey.String(build.Version),
		),
		telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
	}
	if !cfg.Trace.OTLP.TLS.Enabled {
		options = append(options, telemetry.WithOTLPInsecure())
	}

	tp := telemetry.MustNewTracerProvider(options...)
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
		defer cancel()
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}
}
