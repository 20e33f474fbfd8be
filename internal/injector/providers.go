package injector

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/factorysim/internal/config"
	"github.com/zeusync/factorysim/internal/core/engine"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/telemetry"
	"github.com/zeusync/factorysim/internal/server"
)

// ConfigPath is the YAML file to load; empty means defaults.
type ConfigPath string

// ProviderSet builds an App from a ConfigPath.
var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEventBus,
	ProvideRegistry,
	ProvideExporter,
	ProvideEngine,
	ProvideServer,
	NewApp,
)

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

func ProvideLogger(cfg *config.Config) (*log.Logger, func(), error) {
	logger, err := log.New(cfg.LoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideExporter(reg *prometheus.Registry, events bus.EventBus) (*telemetry.Exporter, func(), error) {
	exp, err := telemetry.NewExporter(reg)
	if err != nil {
		return nil, nil, err
	}
	if err = exp.Attach(events); err != nil {
		return nil, nil, err
	}
	return exp, exp.Detach, nil
}

func ProvideEngine(cfg *config.Config, events bus.EventBus, exp *telemetry.Exporter, logger log.Log) (*engine.Engine, func(), error) {
	opts := cfg.EngineOptions()
	opts.Observer = exp
	eng, err := engine.New(opts, events, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, eng.Close, nil
}

func ProvideServer(cfg *config.Config, eng *engine.Engine, events bus.EventBus, reg *prometheus.Registry, logger log.Log) *server.Server {
	sc := server.DefaultServerConfig()
	sc.ListenAddr = cfg.Server.ListenAddr
	sc.BroadcastInterval = cfg.Server.BroadcastInterval
	sc.ReadLimit = cfg.Server.ReadLimit
	if cfg.Metrics.Enabled {
		sc.MetricsPath = cfg.Metrics.Path
		sc.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	} else {
		sc.MetricsPath = ""
	}
	return server.NewServer(sc, eng, events, logger)
}

// App is the assembled process.
type App struct {
	Config *config.Config
	Logger log.Log
	Engine *engine.Engine
	Server *server.Server
}

func NewApp(cfg *config.Config, logger log.Log, eng *engine.Engine, srv *server.Server) *App {
	return &App{Config: cfg, Logger: logger, Engine: eng, Server: srv}
}

// Run drives the engine and serves clients until ctx is done or either
// fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Engine.Run(ctx) })
	g.Go(func() error { return a.Server.Run(ctx, a.Config.Server.ShutdownTimeout) })

	a.Logger.Info("Factory simulator started",
		log.String("listen_addr", a.Config.Server.ListenAddr),
		log.Bool("metrics", a.Config.Metrics.Enabled))
	return g.Wait()
}
