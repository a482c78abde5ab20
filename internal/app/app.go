// Package app wires configuration, storage, domain services, and the HTTP
// server into a runnable application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/deliverymart/internal/domain/catalog"
	"github.com/xenking/deliverymart/internal/domain/coupon"
	"github.com/xenking/deliverymart/internal/domain/order"
	"github.com/xenking/deliverymart/internal/domain/pricing"
	"github.com/xenking/deliverymart/internal/domain/zone"
	"github.com/xenking/deliverymart/internal/handler"
	"github.com/xenking/deliverymart/internal/notify"
	"github.com/xenking/deliverymart/internal/storage/postgres"
	"github.com/xenking/deliverymart/pkg/health"
	"github.com/xenking/deliverymart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	settingsRepo := postgres.NewSettingsRepository(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)
	zoneRepo := postgres.NewZoneRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	deliveryRepo := postgres.NewDeliveryRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	reasonRepo := postgres.NewReasonRepository(pool)
	txManager := postgres.NewTxManager(pool)

	// Post-commit notifier: Kafka when brokers are configured, no-op
	// otherwise.
	var notifier order.Notifier = notify.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewSyncProducer(cfg.KafkaBrokers)
		if err != nil {
			return errors.Wrap(err, "create kafka producer")
		}
		defer producer.Close()
		notifier = notify.NewDispatcher(producer, settingsRepo, nil)
	}

	// Domain services.
	orderService := order.NewService(
		settingsRepo,
		storeRepo,
		catalog.NewResolver(catalogRepo),
		zone.NewValidator(zoneRepo),
		zoneRepo,
		coupon.NewValidator(couponRepo),
		deliveryRepo,
		customerRepo,
		orderRepo,
		txManager,
		notifier,
		pricing.NewRounder(cfg.CurrencyPrecision),
	)

	// HTTP routes: health endpoints + order API on one router.
	router := mux.NewRouter()
	router.HandleFunc("/livez", healthSvc.LiveEndpoint)
	router.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(orderService, reasonRepo).Register(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Customer-Id", "X-Zone-Ids", "X-Module-Id"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Logging(),
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
