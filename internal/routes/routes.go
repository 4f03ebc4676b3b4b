package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/config"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/funding"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/gateway"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/ledger"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/metrics"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/middleware"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/notification"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; Exchanger overrides the configured gateway client.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Publisher notification.Publisher
	Metrics   *metrics.Recorder
	Exchanger gateway.Exchanger
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	svc, err := buildService(d)
	if err != nil {
		return err
	}
	h := funding.NewHandler(svc, d.Cfg.Gateway.ReturnURL)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.HTTPMetrics(d.Metrics))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Metrics)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes. The gateway redirects the browser here without a session;
	// the state parameter identifies the user.
	RegisterCallbackRoute(api, h, middleware.RateLimit(d.Cache, "gateway_callback", d.Cfg.CallbackRateLimit))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth([]byte(d.Cfg.JWTSecret)))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterWalletRoutes(protected, h)
	RegisterTransactionRoutes(protected, h)
	RegisterGatewayRoutes(protected, h)

	return nil
}

func buildService(d Deps) (*funding.Service, error) {
	deferred := make([]ledger.Type, 0, len(d.Cfg.DeferredTypes))
	for _, name := range d.Cfg.DeferredTypes {
		t, err := ledger.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("DEFERRED_SETTLEMENT_TYPES: %w", err)
		}
		deferred = append(deferred, t)
	}

	sealer, err := gateway.NewSealer(d.Cfg.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY: %w", err)
	}

	deps := funding.Deps{
		Exchanger: d.Exchanger,
		Sealer:    sealer,
		Authorize: gateway.AuthorizeConfig{
			AuthorizeURL: d.Cfg.Gateway.AuthorizeURL,
			ClientID:     d.Cfg.Gateway.ClientID,
			RedirectURL:  d.Cfg.Gateway.RedirectURL,
			Scope:        d.Cfg.Gateway.Scope,
		},
		Publisher:     d.Publisher,
		Metrics:       d.Metrics,
		Logger:        d.Logger,
		DeferredTypes: deferred,
	}
	if deps.Exchanger == nil {
		if d.Cfg.Gateway.Static {
			deps.Exchanger = gateway.StaticExchanger{}
		} else {
			deps.Exchanger = gateway.NewHTTPExchanger(gateway.HTTPConfig{
				BaseURL:      d.Cfg.Gateway.BaseURL,
				ClientSecret: d.Cfg.Gateway.ClientSecret,
				Timeout:      d.Cfg.Gateway.Timeout,
			})
		}
	}

	if d.DB != nil {
		deps.Wallets = wallet.NewPostgresRepository(d.DB)
		deps.Ledger = ledger.NewPostgresLedger(d.DB)
		deps.Vault = gateway.NewPostgresVault(d.DB)
	} else {
		walletRepo := wallet.NewMemoryRepository()
		deps.Wallets = walletRepo
		deps.Ledger = ledger.NewInMemory(walletRepo)
		deps.Vault = gateway.NewMemoryVault()
	}
	// the OAuth state and code guard live in Redis only
	if d.Cache != nil {
		deps.States = gateway.NewStateStore(d.Cache, d.Cfg.Gateway.StateTTL)
		deps.Codes = gateway.NewCodeGuard(d.Cache, 0)
	}

	return funding.NewService(deps)
}
