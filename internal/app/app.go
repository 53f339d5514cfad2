// Package app wires the order server together: storage, collaborator
// clients, domain services, HTTP surface, and background jobs.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ayurmed/orders/internal/checkout"
	"github.com/ayurmed/orders/internal/client"
	"github.com/ayurmed/orders/internal/domain/cart"
	"github.com/ayurmed/orders/internal/domain/coupon"
	"github.com/ayurmed/orders/internal/domain/order"
	"github.com/ayurmed/orders/internal/domain/pricing"
	"github.com/ayurmed/orders/internal/handler"
	"github.com/ayurmed/orders/internal/jobs"
	"github.com/ayurmed/orders/internal/payment"
	"github.com/ayurmed/orders/internal/repository"
	"github.com/ayurmed/orders/pkg/health"
	"github.com/ayurmed/orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the auto-delivery
// sweep, and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional Redis for the catalog price cache.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	cartRepo := repository.NewCartRepository(pool)
	addressRepo := repository.NewAddressRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	checkoutStore := repository.NewCheckoutStore(pool)

	// Collaborator clients.
	catalogClient := client.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, rdb, cfg.Catalog.CacheTTL)
	notifier := client.NewNotificationDispatcher(ctx,
		cfg.Notification.BaseURL, cfg.Notification.Timeout,
		cfg.Notification.Workers, cfg.Notification.QueueSize, lg)
	defer notifier.Close()
	gatewayClient := client.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)

	// Domain services.
	pricingCfg := pricing.Config{
		FreeShippingThreshold: decimal.NewFromFloat(cfg.Pricing.FreeShippingThreshold),
		FlatShippingFee:       decimal.NewFromFloat(cfg.Pricing.FlatShippingFee),
		TaxRate:               decimal.NewFromFloat(cfg.Pricing.TaxRate),
	}
	cartService := cart.NewService(cartRepo)
	couponEngine := coupon.NewEngine(couponRepo)
	orderService := order.NewService(orderRepo, notifier)
	checkoutService := checkout.NewService(cartRepo, addressRepo, catalogClient, couponEngine, checkoutStore, notifier, pricingCfg)
	paymentService := payment.NewService(gatewayClient, orderRepo, []byte(cfg.Gateway.KeySecret))

	// Auto-delivery sweep.
	sweep := jobs.NewAutoDelivery(orderRepo, orderService,
		cfg.AutoDeliver.Grace, cfg.AutoDeliver.Interval, cfg.AutoDeliver.InitialDelay)
	go func() {
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("auto-delivery sweep stopped", zap.Error(err))
		}
	}()

	// HTTP surface: health endpoints + API routes on one server.
	h := handler.NewHandler(cartService, addressRepo, checkoutService, couponRepo, couponEngine, orderService, paymentService)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	instrumented := otelhttp.NewHandler(mux, "orders-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Role"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
