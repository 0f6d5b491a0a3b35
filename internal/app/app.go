package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
	"github.com/xenking/levels-catalog/internal/handler"
	"github.com/xenking/levels-catalog/internal/imagecodec"
	"github.com/xenking/levels-catalog/internal/storage/media"
	"github.com/xenking/levels-catalog/internal/storage/postgres"
	"github.com/xenking/levels-catalog/pkg/health"
	"github.com/xenking/levels-catalog/pkg/httpmiddleware"
)

const serviceName = "levels-catalog"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("media_root", cfg.Media.Root),
		zap.Bool("debug", cfg.Debug),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store, err := media.New(cfg.Media.Root, cfg.Media.BaseURL)
	if err != nil {
		return errors.Wrap(err, "create media store")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("media", time.Second, health.DirWritableCheck(cfg.Media.Root),
		health.WithThresholds(2, 1),
	)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second),
		health.WithThresholds(3, 1),
	)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)

	// Domain services.
	meter := m.MeterProvider().Meter(serviceName)
	codec := imagecodec.New(cfg.Media.ImagesEnabled)
	if !codec.Enabled() {
		lg.Warn("Base64 image decoding disabled")
	}
	productService, err := product.NewService(productRepo, store, codec, meter)
	if err != nil {
		return errors.Wrap(err, "create product service")
	}
	catalogService, err := catalog.NewService(productRepo, meter)
	if err != nil {
		return errors.Wrap(err, "create catalog service")
	}
	authService := auth.NewService(accountRepo)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			Debug:        cfg.Debug,
			MediaURL:     store.URL,
			MaxBodyBytes: cfg.Media.MaxBodyBytes,
		},
		productService,
		catalogService,
		authService,
		healthSvc,
	)

	// Mux: probes, stored media and API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("GET /media/", http.StripPrefix("/media", store.Handler()))
	h.Register(mux, "/api")
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
