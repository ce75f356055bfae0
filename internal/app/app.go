package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hallmart/storefront/internal/domain/cart"
	"github.com/hallmart/storefront/internal/domain/order"
	"github.com/hallmart/storefront/internal/domain/pricing"
	"github.com/hallmart/storefront/internal/handler"
	"github.com/hallmart/storefront/internal/notify"
	"github.com/hallmart/storefront/internal/storage/postgres"
	"github.com/hallmart/storefront/pkg/health"
	"github.com/hallmart/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	shippingRate, err := decimal.NewFromString(cfg.Checkout.ShippingFlatRate)
	if err != nil {
		return errors.Wrap(err, "parse shipping flat rate")
	}
	freeOver, err := decimal.NewFromString(cfg.Checkout.FreeShippingOver)
	if err != nil {
		return errors.Wrap(err, "parse free shipping threshold")
	}
	taxRate, err := decimal.NewFromString(cfg.Checkout.TaxRatePercent)
	if err != nil {
		return errors.Wrap(err, "parse tax rate")
	}

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
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	variantRepo := postgres.NewVariantRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	cartSvc := cart.NewService(cartRepo, variantRepo)
	notifier, err := notify.NewMetricNotifier(m.MeterProvider(), notify.NewLogNotifier())
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}
	factory := order.NewFactory(
		order.FactoryConfig{
			PolicyTimeout: cfg.Checkout.PolicyTimeout,
			NotifyTimeout: cfg.Checkout.NotifyTimeout,
		},
		cartSvc,
		variantRepo,
		orderRepo,
		pricing.NewPromoDiscountPolicy(promoRepo),
		pricing.FlatRateShipping{Rate: shippingRate, FreeOver: freeOver},
		pricing.SingleRateTax{RatePercent: taxRate},
		notifier,
	)
	lifecycle := order.NewLifecycle(orderRepo)

	// HTTP handlers: health endpoints + API routes on one mux.
	h := handler.NewHandler(cartSvc, factory, lifecycle, orderRepo, apikeyRepo, []byte(cfg.APIKeyPepper))
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-API-Key", "X-Customer-ID", "X-Session-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
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
