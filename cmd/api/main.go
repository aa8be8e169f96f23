package main

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/broker"
	"github.com/promptdeck/billing/db"
	"github.com/promptdeck/billing/external"
	"github.com/promptdeck/billing/gateway"
	"github.com/promptdeck/billing/membership"
	"github.com/promptdeck/billing/order"
	"github.com/promptdeck/billing/payment"
	"github.com/promptdeck/billing/plan"
	resp "github.com/promptdeck/billing/response"
	"github.com/promptdeck/billing/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot initialize zapsentry",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	stripeClient := external.NewStripeClient(os.Getenv("STRIPE_KEY"))

	dbConn, err := db.New(logger, os.Getenv("POSTGRES_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	amqpBroker, err := broker.NewAMQPBroker(os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	catalog, err := loadCatalog()
	if err != nil {
		logger.Fatal("Cannot load plan catalog",
			zap.Error(err),
		)
	}

	gatewayManager, err := gateway.NewManager(gateway.ManagerOptions{
		StripeClient: stripeClient,
		Logger:       logger,
		Enabled:      enabledProviders(),
	})
	if err != nil {
		logger.Fatal("Cannot initialize GatewayManager",
			zap.Error(err),
		)
	}

	authManager, err := auth.New(auth.Options{
		Logger:      logger,
		Environment: authEnvironment,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	orderManager, err := order.NewManager(logger, dbConn)
	if err != nil {
		logger.Fatal("Cannot initialize OrderManager",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(logger, dbConn)
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	membershipManager, err := membership.NewManager(membership.ManagerOptions{
		DB:      dbConn,
		Redis:   rdb,
		Logger:  logger,
		Catalog: catalog,
	})
	if err != nil {
		logger.Fatal("Cannot initialize MembershipManager",
			zap.Error(err),
		)
	}

	processor, err := payment.NewProcessor(payment.ProcessorOptions{
		OrderStore:        orderManager,
		SubscriptionStore: subscriptionManager,
		MembershipStore:   membershipManager,
		Gateway:           gatewayManager,
		Producer:          amqpBroker,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize payment Processor",
			zap.Error(err),
		)
	}

	orderRouter, err := order.NewService(order.ServiceOptions{
		OrderManager: orderManager,
		Orchestrator: processor,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Order Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		SubscriptionManager: subscriptionManager,
		Producer:            amqpBroker,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	membershipRouter, err := membership.NewService(membership.ServiceOptions{
		MembershipManager: membershipManager,
		Producer:          amqpBroker,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Membership Service Router",
			zap.Error(err),
		)
	}

	paymentRouter, err := payment.NewService(payment.ServiceOptions{
		Processor: processor,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Payment Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", auth.HeaderUserID, auth.HeaderUserEmail},
		AllowCredentials: true,
	}))

	rootRouter.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
		resp.WriteResponse(w, r, catalog.ListDefinedPlans())
	})

	// provider callbacks carry no caller identity
	rootRouter.Mount("/payments/callback", paymentRouter.CallbackRouter())

	rootRouter.Group(func(r chi.Router) {
		r.Use(authManager.Middleware())
		r.Use(authManager.ClaimCheck())
		r.Mount("/orders", orderRouter.Router())
		r.Mount("/subscriptions", subscriptionRouter.Router())
		r.Mount("/memberships", membershipRouter.Router())
		r.Mount("/payments", paymentRouter.Router())
	})

	rootRouter.HandleFunc("/pprof/*", pprof.Index)
	rootRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	rootRouter.HandleFunc("/pprof/profile", pprof.Profile)
	rootRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	rootRouter.HandleFunc("/pprof/trace", pprof.Trace)

	addr := os.Getenv("API_ADDR")
	if len(addr) == 0 {
		addr = ":42069"
	}

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    addr,
	}

	logger.Info("API started",
		zap.String("Addr", addr),
	)

	logger.Fatal("API server exited",
		zap.Error(srv.ListenAndServe()),
	)
}

// loadCatalog returns the plan catalog from PLANS_JSON when set, the built-in
// defaults otherwise
func loadCatalog() (*plan.Catalog, error) {
	plansFile := os.Getenv("PLANS_JSON")
	if len(plansFile) == 0 {
		return plan.NewCatalog(nil), nil
	}
	return plan.LoadCatalogFromFile(plansFile)
}

// enabledProviders parses the GATEWAY_ENABLED comma separated list. An empty
// list enables every supported provider.
func enabledProviders() []gateway.Provider {
	raw := os.Getenv("GATEWAY_ENABLED")
	if len(raw) == 0 {
		return []gateway.Provider{
			gateway.ProviderAlipay,
			gateway.ProviderWechat,
			gateway.ProviderApplePay,
			gateway.ProviderStripe,
			gateway.ProviderPayPal,
		}
	}
	providers := make([]gateway.Provider, 0, 5)
	for _, part := range strings.Split(raw, ",") {
		providers = append(providers, gateway.Provider(strings.TrimSpace(part)))
	}
	return providers
}
