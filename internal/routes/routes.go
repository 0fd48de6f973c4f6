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

	"github.com/loyalty-pay/balance_ledger/internal/audit"
	"github.com/loyalty-pay/balance_ledger/internal/config"
	"github.com/loyalty-pay/balance_ledger/internal/deposit"
	"github.com/loyalty-pay/balance_ledger/internal/infra"
	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/middleware"
	"github.com/loyalty-pay/balance_ledger/internal/notification"
	"github.com/loyalty-pay/balance_ledger/internal/purchase"
	"github.com/loyalty-pay/balance_ledger/internal/topup"
	"github.com/loyalty-pay/balance_ledger/internal/webhook"
	"github.com/loyalty-pay/balance_ledger/internal/wiring"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
	Broker   infra.BrokerStatus
	Intents  topup.IntentCreator
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	stores, err := wiring.NewStores(d.Cfg, d.DB, d.Cache)
	if err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDevelopment() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.AccessLog(d.Logger))

	RegisterHealthRoutes(app, infra.Health{DB: d.DB, Cache: d.Cache, Broker: d.Broker, Timeout: d.Cfg.StoreTimeout})

	// Settlement: processor webhook -> deposit -> ledger credit.
	recorder := deposit.NewRecorder(stores.Deposits, d.Cfg.BalanceCeiling, d.Logger)
	settlement := deposit.NewService(recorder, stores.Ledger, d.Notifier, d.Logger)
	dispatcher := webhook.NewDispatcher(d.Logger)
	webhook.NewPaymentHandlers(settlement, d.Logger).Register(dispatcher)
	verifier := webhook.NewVerifier(d.Cfg.StripeWebhookSecret, d.Cfg.WebhookTolerance)
	RegisterWebhookRoutes(app, webhook.NewHandler(verifier, dispatcher, d.Logger), middleware.StoreDeadline(d.Cfg.StoreTimeout))

	// Client API.
	purchaseSvc := purchase.NewService(stores.Purchases, stores.Ledger, d.Notifier, d.Cfg.Currency, d.Logger)
	topupSvc := topup.NewService(d.Intents, d.Cfg.Currency, d.Cfg.BalanceCeiling, d.Logger)

	api := app.Group("/api/v1", middleware.StoreDeadline(d.Cfg.StoreTimeout))
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.LocalRequestID).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api
	if d.Cfg.JWTSecret != "" {
		protected = api.Group("", middleware.JWTAuth([]byte(d.Cfg.JWTSecret)))
	} else {
		d.Logger.Warn("JWT_SECRET not set, client routes are unauthenticated")
	}
	replay := middleware.Idempotency(d.Cache, middleware.IdempotencyOptions{
		TTL:          d.Cfg.IdempotencyTTL,
		StoreTimeout: d.Cfg.StoreTimeout,
	}, d.Logger)

	RegisterBalanceRoutes(protected, ledger.NewHandler(stores.Ledger))
	RegisterPurchaseRoutes(protected, purchase.NewHandler(purchaseSvc),
		middleware.RateLimit(d.Cache, "purchase", d.Cfg.PurchaseLimit), replay)
	RegisterTopUpRoutes(protected, topup.NewHandler(topupSvc), replay)

	// Operators.
	auditor := audit.NewAuditor(stores.Ledger, stores.Deposits, stores.Purchases, d.Logger)
	RegisterAuditRoutes(app, audit.NewHandler(auditor), middleware.OperatorKey(d.Cfg.OperatorKeyHash))

	return nil
}
