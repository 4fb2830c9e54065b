// Package predator provides a high-level façade that wires the orchestration
// stack from a config.Config: the event log (in-memory or SQLite), the tool
// registry, the decision oracle, remote agents reached over the a2a protocol,
// log compaction, logging and Prometheus metrics. Most applications interact
// with this package by:
//  1. Creating an App via New() with their tools (and optionally an oracle)
//  2. Running tasks with Run / RunSync and answering pending confirmations
//  3. Optionally publishing the App to peers via Server
//
// All defaults are safe for local development and testing.
package predator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/predator/a2a"
	"github.com/hupe1980/predator/config"
	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/sales"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/metrics"
	"github.com/hupe1980/predator/model"
	"github.com/hupe1980/predator/model/anthropic"
	"github.com/hupe1980/predator/model/openai"
	"github.com/hupe1980/predator/oracle"
	"github.com/hupe1980/predator/runner"
	"github.com/hupe1980/predator/session"
	"github.com/hupe1980/predator/session/sqlite"
	"github.com/hupe1980/predator/tool"
)

// Options configures an App.
type Options struct {
	// Config drives every component. Defaults to config.Default().
	Config config.Config

	// Tools are registered with the local tool registry.
	Tools []tool.Tool
	// Agents are remote agents used in addition to Config.Remotes.
	Agents []core.RemoteAgent

	// Oracle overrides Config.Oracle.
	Oracle core.Oracle
	// Model overrides the model built from Config.Oracle for model-backed
	// providers.
	Model model.Model
	// Summarizer overrides the compaction summarizer.
	Summarizer core.Summarizer

	// Registry, when set, receives the Prometheus collectors and is served on
	// /metrics by Server.
	Registry *prometheus.Registry
	// HTTPClient is used for remote agent calls.
	HTTPClient *http.Client

	// Logger (defaults to one built from Config.Logging)
	Logger logging.Logger
}

// App is the high-level façade aggregating the runner and its services.
type App struct {
	opts   Options
	log    core.EventLog
	closer io.Closer
	runner *runner.Runner
	client *a2a.Client
	logger logging.Logger
}

// New creates an App. Any unset service is derived from the configuration.
func New(optFns ...func(o *Options)) (*App, error) {
	opts := Options{Config: config.Default()}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		level, _ := logging.ParseLevel(cfg.Logging.Level)
		logger = logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Logging.Format, Component: "predator"})
	}

	rec := metrics.Nop()
	if opts.Registry != nil {
		prom, err := metrics.NewPrometheusRecorder(opts.Registry)
		if err != nil {
			return nil, err
		}
		rec = prom
	}

	app := &App{opts: opts, logger: logger}

	if err := app.openStore(cfg.Store); err != nil {
		return nil, err
	}

	registry, err := tool.NewRegistry(opts.Tools, tool.WithLogger(component(logger, "tool")))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.client, err = a2a.NewClient(
		a2a.WithHTTPClient(opts.HTTPClient),
		a2a.WithTimeout(cfg.Remote.Timeout),
		a2a.WithRetry(cfg.Remote.MaxAttempts, cfg.Remote.InitialBackoff, cfg.Remote.MaxBackoff),
		func(o *a2a.ClientOptions) { o.CacheSize = cfg.Remote.CacheSize },
		a2a.WithClientLogger(component(logger, "a2a")),
		a2a.WithClientMetrics(rec),
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	agents := append([]core.RemoteAgent(nil), opts.Agents...)
	for _, r := range cfg.Remotes {
		agents = append(agents, a2a.NewRemoteAgent(app.client, r.Name, r.BaseURL, r.Description))
	}

	orc, summarizer, err := buildOracle(opts, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	runnerOpts := []func(o *runner.Options){
		runner.WithMaxSteps(cfg.Runner.MaxSteps),
		runner.WithAgents(agents...),
		runner.WithLogger(component(logger, "runner")),
		runner.WithMetrics(rec),
	}
	if !cfg.Compaction.Disabled {
		runnerOpts = append(runnerOpts, runner.WithCompactor(session.NewCompactor(app.log, summarizer,
			session.WithInterval(cfg.Compaction.Interval),
			session.WithOverlap(cfg.Compaction.Overlap),
			session.WithLogger(component(logger, "compactor")),
			session.WithMetrics(rec),
		)))
	}

	app.runner = runner.New(app.log, orc, registry, runnerOpts...)

	return app, nil
}

func (a *App) openStore(cfg config.StoreConfig) error {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		a.log, a.closer = store, store
	default:
		a.log = session.NewInMemoryStore()
	}
	return nil
}

// buildOracle resolves the oracle and the compaction summarizer.
func buildOracle(opts Options, logger logging.Logger) (core.Oracle, core.Summarizer, error) {
	var summarizer core.Summarizer = session.TranscriptSummarizer{MaxPayload: 500}
	if opts.Summarizer != nil {
		summarizer = opts.Summarizer
	}

	if opts.Oracle != nil {
		return opts.Oracle, summarizer, nil
	}

	cfg := opts.Config.Oracle
	m := opts.Model
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if m == nil {
			m = openai.NewModel(openai.WithModel(cfg.Model))
		}
	case config.ProviderAnthropic:
		if m == nil {
			m = anthropic.NewModel(anthropic.WithModel(cfg.Model))
		}
	case config.ProviderPlaybook:
		return sales.Playbook{}, summarizer, nil
	default:
		return nil, nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}

	if opts.Summarizer == nil {
		summarizer = oracle.NewModelSummarizer(m)
	}
	return oracle.NewModelOracle(m,
		oracle.WithPersona(cfg.Persona),
		oracle.WithLogger(component(logger, "oracle")),
	), summarizer, nil
}

// Run starts or resumes a task, streaming its events.
func (a *App) Run(ctx context.Context, taskID string, msg core.Message) (<-chan core.Event, <-chan error, error) {
	return a.runner.Run(ctx, taskID, msg)
}

// RunSync runs a task to its halt and returns the events of the turn.
func (a *App) RunSync(ctx context.Context, taskID string, msg core.Message) ([]core.Event, error) {
	return a.runner.RunSync(ctx, taskID, msg)
}

// Pending returns the confirmations a task is waiting for.
func (a *App) Pending(ctx context.Context, taskID string) ([]core.PendingConfirmation, error) {
	return a.runner.Pending(ctx, taskID)
}

// Events returns the full log of a task.
func (a *App) Events(ctx context.Context, taskID string) ([]core.Event, error) {
	return a.runner.Events(ctx, taskID)
}

// Runner returns the underlying runner.
func (a *App) Runner() *runner.Runner { return a.runner }

// Client returns the remote agent client.
func (a *App) Client() *a2a.Client { return a.client }

// Server publishes the App as a remote agent. An empty descriptor URL is
// derived from Config.Server.PublicURL.
func (a *App) Server(descriptor core.AgentDescriptor) *a2a.Server {
	if descriptor.URL == "" {
		descriptor.URL = strings.TrimRight(a.opts.Config.Server.PublicURL, "/") + a2a.InvokePath
	}

	serverOpts := []func(o *a2a.ServerOptions){a2a.WithServerLogger(component(a.logger, "a2a.server"))}
	if a.opts.Registry != nil {
		serverOpts = append(serverOpts, a2a.WithMetricsHandler(promhttp.HandlerFor(a.opts.Registry, promhttp.HandlerOpts{})))
	}

	return a2a.NewServer(descriptor, a.runner, serverOpts...)
}

// Close releases the event log.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func component(l logging.Logger, name string) logging.Logger {
	if tl, ok := l.(*logging.TaskLogger); ok {
		return tl.WithComponent(name)
	}
	return l
}

// WithConfig sets the configuration.
func WithConfig(cfg config.Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithTools registers local tools.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithAgents adds remote agents.
func WithAgents(agents ...core.RemoteAgent) func(o *Options) {
	return func(o *Options) { o.Agents = append(o.Agents, agents...) }
}

// WithOracle overrides the configured oracle.
func WithOracle(orc core.Oracle) func(o *Options) {
	return func(o *Options) { o.Oracle = orc }
}

// WithModel overrides the model of model-backed oracle providers.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithSummarizer overrides the compaction summarizer.
func WithSummarizer(s core.Summarizer) func(o *Options) {
	return func(o *Options) { o.Summarizer = s }
}

// WithPrometheus records metrics on reg and serves them on /metrics.
func WithPrometheus(reg *prometheus.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = reg }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
