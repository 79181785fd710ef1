package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/parley/internal/presentation/handler/health"
	socketHandler "github.com/hilthontt/parley/internal/presentation/handler/socket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName     = "parley-http"
	shutdownTimeout = 5 * time.Second
)

type Application struct {
	config        configs.Config
	healthHandler *healthHandler.Handler
	socketHandler *socketHandler.Handler
	metrics       *metrics.Metrics
	logger        logging.Logger
	sugar         *zap.SugaredLogger
	ratelimiter   ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	healthHandler *healthHandler.Handler,
	socketHandler *socketHandler.Handler,
	metrics *metrics.Metrics,
	logger logging.Logger,
	sugar *zap.SugaredLogger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		healthHandler: healthHandler,
		socketHandler: socketHandler,
		metrics:       metrics,
		logger:        logger,
		sugar:         sugar,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.recoverer)
	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.NotFound(json.WriteNotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		json.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
	})

	r.Handle("/metrics", app.metrics.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	r.Group(func(r chi.Router) {
		r.Use(app.rateLimiterMiddleware)

		r.Get("/", app.bannerHandler)
		r.Get("/ws", app.socketHandler.ServeWS)

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", app.healthHandler.GetHealth)
			r.Get("/healthz", app.healthHandler.GetHealth)
			r.Get("/ready", app.healthHandler.GetHealth)
			r.Get("/live", app.healthHandler.GetHealth)
		})
	})

	return otelhttp.NewHandler(r, serviceName)
}

func (app *Application) bannerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API is running"))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Hijacked websocket connections are not tracked by the server; the realtime
// core closes those.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  app.config.HTTP.IdleTimeout,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()
		app.healthHandler.SetHealthy(false)
		app.sugar.Infow("shutdown requested", "addr", srv.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.sugar.Infow("server has started", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.sugar.Infow("server has stopped", "addr", srv.Addr)
	return nil
}
