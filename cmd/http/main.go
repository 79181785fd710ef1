package main

import (
	"context"
	"expvar"
	"log"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/parley/internal/infrastructure/tracing"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	"github.com/hilthontt/parley/internal/presentation/api"
	"github.com/hilthontt/parley/internal/presentation/handler/health"
	"github.com/hilthontt/parley/internal/presentation/handler/socket"
	"go.uber.org/zap"
)

const (
	serviceName = "parley"
)

func main() {
	sugar := zap.Must(zap.NewProduction()).Sugar()
	defer sugar.Sync()

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		AppName:  serviceName,
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})

	shutdownTracer, err := tracing.InitTracer(tracing.FromConfig(serviceName, cfg.Tracing))
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(serviceName)

	activity, err := newActivityPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to set up session activity", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer activity.Close()

	registry := ws.NewRegistry()
	router := ws.NewRouter(registry, logger, m)
	dispatcher := ws.NewDispatcher(registry, router, logger,
		ws.WithNotifier(activity.Notifier()),
		ws.WithMetrics(m),
		ws.WithTracer(tracing.GetTracer(serviceName+"/ws")),
	)
	core := ws.NewCore(dispatcher, logger)

	// the core outlives the HTTP server so hijacked sockets are closed last
	coreCtx, stopCore := context.WithCancel(context.Background())
	go core.Run(coreCtx)
	defer func() {
		stopCore()
		<-core.Done()
	}()

	limiter, err := ratelimiter.FromConfig(cfg.RateLimiter, newRedisClient(cfg, logger))
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to set up rate limiter", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer limiter.Close()

	upgrader := ws.NewUpgrader(cfg.WS.ReadBufferSize, cfg.WS.WriteBufferSize, cfg.HTTP.AllowedOrigins)
	clientCfg := ws.ClientConfig{
		SendQueueSize:  cfg.WS.SendQueueSize,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		WriteWait:      cfg.WS.WriteWait,
		PongWait:       cfg.WS.PongWait,
		PingPeriod:     cfg.WS.PingPeriod,
	}

	app := api.NewApplication(
		*cfg,
		health.NewHandler(core),
		socket.NewHandler(core, upgrader, clientCfg, logger),
		m,
		logger,
		sugar,
		limiter,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("ws_connections", expvar.Func(func() any {
		return core.ActiveConnections()
	}))

	if err := app.Run(ctx, app.Mount()); err != nil {
		sugar.Errorw("server error", "error", err)
	}
}
