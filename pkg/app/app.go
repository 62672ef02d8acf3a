// Package app is the composition root. It wires the normalizer, the interceptor
// chain, the domain router and the domain handlers into one entry point that turns
// a gateway event into a response.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/config"
	"github.com/hayden74/cogira-frontend/pkg/docs"
	"github.com/hayden74/cogira-frontend/pkg/gateway"
	"github.com/hayden74/cogira-frontend/pkg/pipeline"
	"github.com/hayden74/cogira-frontend/pkg/policy"
	"github.com/hayden74/cogira-frontend/pkg/router"
	"github.com/hayden74/cogira-frontend/pkg/storage"
	"github.com/hayden74/cogira-frontend/pkg/storage/postgres"
	"github.com/hayden74/cogira-frontend/pkg/telemetry"
	"github.com/hayden74/cogira-frontend/pkg/users"
)

// App handles gateway events end to end.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	chain      *pipeline.Chain
	registry   router.Registry
	repo       storage.Repository
	prometheus *telemetry.Prometheus
	policy     *policy.Store
	watcher    *policy.Watcher
}

// Option customizes construction, mostly for tests and embedding.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	repo           storage.Repository
	sink           telemetry.Sink
	tracerProvider trace.TracerProvider
}

// WithLogger sets the base logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRepository supplies the keyed store instead of opening the configured one.
func WithRepository(repo storage.Repository) Option {
	return func(o *options) { o.repo = repo }
}

// WithSink supplies the metrics sink instead of the configured one.
func WithSink(sink telemetry.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithTracerProvider selects the tracer provider for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New builds the application from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	a := &App{cfg: cfg, logger: o.logger}

	sink, err := a.buildSink(o.sink)
	if err != nil {
		return nil, err
	}

	repo := o.repo
	if repo == nil {
		repo, err = OpenRepository(ctx, cfg.Storage, o.logger)
		if err != nil {
			return nil, err
		}
	}
	a.repo = repo

	if err := a.buildRegistry(); err != nil {
		_ = repo.Close()
		return nil, err
	}

	stages, err := a.buildStages(ctx, sink)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	a.chain, err = pipeline.NewChain(a.route, stages,
		pipeline.WithBaseLogger(o.logger),
		pipeline.WithTracerProvider(o.tracerProvider),
	)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return a, nil
}

// OpenRepository opens the keyed store selected by cfg.
func OpenRepository(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Repository, error) {
	if cfg.Driver == config.DriverMemory || cfg.Driver == "" {
		return storage.NewMemoryStore(), nil
	}
	store, err := postgres.Open(ctx, cfg.Driver, cfg.DSN,
		postgres.WithTableName(cfg.Table),
		postgres.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	return store, nil
}

func (a *App) buildSink(override telemetry.Sink) (telemetry.Sink, error) {
	if override != nil {
		return override, nil
	}
	switch a.cfg.Telemetry.Metrics {
	case config.MetricsPrometheus:
		a.prometheus = telemetry.NewPrometheus()
		return a.prometheus, nil
	case config.MetricsOTel:
		sink, err := telemetry.NewOTel(otel.GetMeterProvider(), telemetry.MetricsConfig{
			Service:     a.cfg.Telemetry.ServiceName,
			Environment: a.cfg.Telemetry.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("create otel metrics: %w", err)
		}
		return sink, nil
	default:
		return telemetry.Noop{}, nil
	}
}

func (a *App) buildRegistry() error {
	fragment, err := users.OpenAPI()
	if err != nil {
		return err
	}
	docsHandler, err := docs.NewHandler(docs.DefaultInfo, fragment)
	if err != nil {
		return err
	}

	svc := users.NewService(a.repo, users.WithPageSizes(a.cfg.Limits.DefaultPageSize, a.cfg.Limits.MaxPageSize))

	a.registry = router.Registry{}
	if err := a.registry.Register(users.Domain, users.NewController(svc)); err != nil {
		return err
	}
	return a.registry.Register(docs.Domain, docsHandler)
}

func (a *App) buildStages(ctx context.Context, sink telemetry.Sink) ([]pipeline.Stage, error) {
	cors := a.cfg.CORS
	stages := []pipeline.Stage{
		pipeline.NewCorrelationStage(),
		pipeline.NewSizeLimitStage(a.cfg.Limits.MaxBodyBytes),
		pipeline.NewCORSStage(pipeline.CORSConfig{
			AllowedOrigins:   cors.AllowedOrigins,
			AllowedMethods:   cors.AllowedMethods,
			AllowedHeaders:   cors.AllowedHeaders,
			ExposedHeaders:   cors.ExposedHeaders,
			AllowCredentials: cors.AllowCredentials,
			MaxAge:           cors.MaxAge,
		}),
		pipeline.NewSecurityHeadersStage(),
	}

	if a.cfg.Policy.Enabled() {
		mode, err := policy.ParseMode(a.cfg.Policy.FailureMode)
		if err != nil {
			return nil, err
		}
		var onReload func(string)
		if a.prometheus != nil {
			onReload = a.prometheus.RecordPolicyReload
		}
		a.policy, err = policy.NewStore(ctx, policy.StoreOptions{
			Path:       a.cfg.Policy.File,
			Entrypoint: a.cfg.Policy.Entrypoint,
			Mode:       mode,
			Logger:     a.logger,
			OnReload:   onReload,
		})
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		stages = append(stages, pipeline.NewAuthorizationStage(a.policy))
	}

	return append(stages,
		pipeline.NewMetricsStage(sink, a.registry.Domains()...),
		pipeline.NewErrorTranslationStage(),
	), nil
}

func (a *App) route(ctx context.Context, req *api.Request) (*api.Response, error) {
	return router.Route(ctx, req, a.registry)
}

// Handle runs one gateway event through the pipeline. It always returns a response.
func (a *App) Handle(ctx context.Context, ev *api.Event) *api.Response {
	return a.chain.Handle(ctx, ev)
}

// Domains lists the registered routing keys.
func (a *App) Domains() []string {
	return a.registry.Domains()
}

// HTTPHandler exposes the application over HTTP.
func (a *App) HTTPHandler() http.Handler {
	var metrics http.Handler
	if a.prometheus != nil {
		metrics = a.prometheus.Handler()
	}
	return gateway.NewHandler(a, gateway.Options{
		MaxBodyBytes: a.cfg.Limits.MaxBodyBytes,
		Metrics:      metrics,
		Logger:       a.logger,
	})
}

// Start launches background work: the policy file watcher when enabled.
func (a *App) Start(ctx context.Context) error {
	if a.policy == nil || !a.cfg.Policy.Watch {
		return nil
	}
	watcher, err := policy.NewWatcher(a.policy, a.logger)
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start policy watcher: %w", err)
	}
	a.watcher = watcher
	return nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
