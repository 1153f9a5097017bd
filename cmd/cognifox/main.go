package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CogniFox/app/controllers"
	"github.com/ManuelReschke/CogniFox/app/repository"
	apiv1 "github.com/ManuelReschke/CogniFox/internal/api/v1"
	"github.com/ManuelReschke/CogniFox/internal/pkg/billing"
	"github.com/ManuelReschke/CogniFox/internal/pkg/cache"
	"github.com/ManuelReschke/CogniFox/internal/pkg/config"
	"github.com/ManuelReschke/CogniFox/internal/pkg/database"
	"github.com/ManuelReschke/CogniFox/internal/pkg/env"
	"github.com/ManuelReschke/CogniFox/internal/pkg/identity"
	"github.com/ManuelReschke/CogniFox/internal/pkg/mail"
	"github.com/ManuelReschke/CogniFox/internal/pkg/metrics"
	"github.com/ManuelReschke/CogniFox/internal/pkg/paymentguard"
	"github.com/ManuelReschke/CogniFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CogniFox/internal/pkg/router"
	"github.com/ManuelReschke/CogniFox/views"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	app, cleanup, err := NewApplication(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[Main] startup failed: %v", err)
	}
	defer cleanup()

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Errorf("[Main] server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Main] shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Main] shutdown: %v", err)
	}
}

// NewApplication wires every dependency and returns the ready fiber app plus
// a cleanup func releasing the database and cache connections.
func NewApplication(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	db, err := database.Open(cfg.Database, env.IsDev())
	if err != nil {
		return nil, nil, err
	}

	redisClient := cache.NewClient(ctx, cfg.Cache)
	statusCache := cache.NewStatusCache(redisClient, cfg.Cache.StatusTTL)

	identities, err := newIdentityProvider(ctx, cfg.Identity)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	billingMetrics := metrics.MustNewBilling(registry)

	engine := views.NewEngine()
	serviceOptions := []billing.Option{
		billing.WithStatusCache(statusCache),
		billing.WithRecorder(billingMetrics),
	}
	if cfg.Mail.Host != "" {
		serviceOptions = append(serviceOptions, billing.WithNotifier(mail.NewSMTPMailer(cfg.Mail, engine)))
	} else {
		log.Info("[Mail] SMTP_HOST not set, billing notifications disabled")
	}

	svc := billing.NewService(
		billing.NewRepository(db),
		billing.NewStripeProcessor(cfg.Stripe.SecretKey),
		identities,
		billing.Options{
			PriceID:       cfg.Stripe.PriceID,
			TrialDays:     cfg.Stripe.TrialDays,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		},
		serviceOptions...,
	)

	repos := repository.NewFactory(db)
	guard := paymentguard.New(svc, cfg.Guard.Interval, cfg.Guard.MaxAttempts)

	app := fiber.New(fiber.Config{
		Views:   engine,
		AppName: "CogniFox",
		// Client addresses from the proxy header are used only when the
		// request comes from a trusted proxy.
		ProxyHeader:             cfg.App.ProxyHeader,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.App.TrustedProxies,
		EnableIPValidation:      true,
	})
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.App.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(swagger.New(swagger.Config{
		BasePath:    "/docs/api/",
		FileContent: apiv1.OpenAPISpec,
		Path:        "v1",
		Title:       "CogniFox API",
	}))

	var metricsUsers map[string]string
	if cfg.App.MetricsUser != "" && cfg.App.MetricsPassword != "" {
		metricsUsers = map[string]string{cfg.App.MetricsUser: cfg.App.MetricsPassword}
	}

	router.InstallRouter(app, router.Dependencies{
		Billing:      controllers.NewBillingController(svc, identities),
		Checkout:     controllers.NewCheckoutController(repos.GetUserRepository(), svc, guard),
		Users:        controllers.NewUserController(repos.GetUserRepository()),
		Results:      controllers.NewResultsController(repos.GetTestResultRepository(), svc),
		Identities:   identities,
		Limiter:      ratelimit.New(cfg.Cache.LimiterMax, cfg.Cache.LimiterSpan, ratelimit.NewRedisStorage(cfg.Cache)),
		Metrics:      registry,
		MetricsUsers: metricsUsers,
	})

	cleanup := func() {
		closeRedis(redisClient)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return app, cleanup, nil
}

func newIdentityProvider(ctx context.Context, cfg config.IdentityConfig) (identity.Provider, error) {
	switch cfg.Provider {
	case config.IdentityProviderFirebase:
		return identity.NewFirebaseProvider(ctx, cfg.CredentialsFile, cfg.ProjectID)
	case config.IdentityProviderJWT:
		log.Warn("[Identity] using local JWT provider; accounts are not deleted upstream")
		return identity.NewJWTProvider(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
	}
}

func closeRedis(c *redis.Client) {
	if err := c.Close(); err != nil {
		log.Warnf("[Cache] close: %v", err)
	}
}
