package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/auth"
	"github.com/imrishuroy/sellapp-orderflow/internal/aws"
	"github.com/imrishuroy/sellapp-orderflow/internal/config"
	"github.com/imrishuroy/sellapp-orderflow/internal/handlers"
	"github.com/imrishuroy/sellapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
	"github.com/imrishuroy/sellapp-orderflow/internal/metrics"
	"github.com/imrishuroy/sellapp-orderflow/internal/orders"
	"github.com/imrishuroy/sellapp-orderflow/internal/payment"
	"github.com/imrishuroy/sellapp-orderflow/internal/sellapp"
	"github.com/imrishuroy/sellapp-orderflow/internal/validation"
)

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Registry
	limiter *handlers.RateLimiter
	routes  handlers.HandlerConfig
}

func setupRouter(a app) (*gin.Engine, error) {
	r := gin.New()
	// The rate limiter keys on ClientIP, so forwarded headers only count
	// from configured proxies.
	if err := r.SetTrustedProxies(a.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog(a.log))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	limited := r.Group("/", a.limiter.Middleware())
	handlers.RegisterWebhookRoutes(limited, a.routes)
	handlers.RegisterCheckoutRoutes(limited, a.routes)

	return r, nil
}

func buildApp(cfg *config.Config, logger *zap.Logger, clients *aws.AWSClients) app {
	m := metrics.NewRegistry()

	client := sellapp.NewClient(sellapp.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Store:   cfg.XStore,
		Debug:   cfg.Debug,
	}, logger)

	var alerts sellapp.Alerter
	if cfg.AlertsQueueURL != "" {
		alerts = aws.NewPublisher(clients.SQS, cfg.AlertsQueueURL)
	}
	verifier := sellapp.NewVerifier(client, alerts, logger)

	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)

	var deliveries payment.DeliveryLog
	if cfg.IdempotencyTable != "" {
		deliveries = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	// nil without a secret: no nonce is issued and any presented nonce is refused.
	nonces := auth.NewNonceSigner(cfg.WebhookSecret, cfg.WebhookTokenTTL)

	checkout := payment.CheckoutConfig{
		ChargeDescription: cfg.ChargeDescription,
		WebhookURL:        cfg.WebhookURL,
		ReturnURL:         cfg.ReturnURL,
		CheckoutURL:       cfg.CheckoutURL,
		StoreURL:          cfg.StoreURL,
		Origin:            cfg.Origin,
		Charges:           client,
		Orders:            orderStore,
		Logger:            logger,
		Metrics:           m,
	}
	if nonces != nil {
		checkout.Nonces = nonces
	}

	return app{
		cfg:     cfg,
		log:     logger,
		metrics: m,
		limiter: handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		routes: handlers.HandlerConfig{
			Webhooks: payment.NewWebhookHandler(payment.WebhookConfig{
				ChargeDescription: cfg.ChargeDescription,
				Verifier:          verifier,
				Orders:            orderStore,
				Deliveries:        deliveries,
				StaleAfter:        5 * time.Minute,
				Logger:            logger,
				Metrics:           m,
			}),
			Checkouts: payment.NewInitiator(checkout),
			Nonces:    nonces,
			Validator: validation.New(),
			Logger:    logger,
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := setupRouter(buildApp(cfg, logger, clients))
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		logger.Info("running local server", zap.String("addr", cfg.ListenAddr))
		if err := r.Run(cfg.ListenAddr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
