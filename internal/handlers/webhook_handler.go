package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
	"github.com/imrishuroy/sellapp-orderflow/internal/payment"
	"github.com/imrishuroy/sellapp-orderflow/internal/validation"
)

// maxWebhookBody caps the webhook body read into memory.
const maxWebhookBody = 1 << 20

// WebhookProcessor reconciles a parsed notification.
type WebhookProcessor interface {
	Handle(ctx context.Context, n payment.Notification) payment.Result
}

// CheckoutProcessor starts a payment session for an order.
type CheckoutProcessor interface {
	Checkout(ctx context.Context, orderID int64) (payment.CheckoutResult, error)
}

// NonceVerifier checks the sellappnonce parameter against the order it was issued for.
type NonceVerifier interface {
	Verify(token string, orderID int64) error
}

// HandlerConfig groups dependencies for the payment routes.
type HandlerConfig struct {
	Webhooks  WebhookProcessor
	Checkouts CheckoutProcessor
	// Nonces may be nil; a request carrying a nonce is then rejected.
	Nonces    NonceVerifier
	Validator *validatorv10.Validate
	Logger    *zap.Logger
}

// RegisterWebhookRoutes registers the processor's webhook endpoint.
func RegisterWebhookRoutes(r gin.IRoutes, cfg HandlerConfig) {
	v := cfg.Validator
	if v == nil {
		v = validation.New()
	}
	log := logging.OrNop(cfg.Logger).Named("webhook_handler")

	r.POST("/webhooks/sellapp", func(c *gin.Context) {
		ctx := c.Request.Context()
		reqLog := requestLogger(c, log)

		requestOrderID := payment.ParseRequestOrderID(c.Query("wc_id"))

		// Token check runs before anything else is looked at.
		if nonce, ok := c.GetQuery("sellappnonce"); ok {
			if cfg.Nonces == nil || cfg.Nonces.Verify(nonce, requestOrderID) != nil {
				reqLog.Warn("webhook nonce rejected", zap.Int64("wc_id", requestOrderID))
				c.String(http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			reqLog.Warn("webhook body unreadable", zap.Error(err))
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		n, err := payment.ParseNotification(body, requestOrderID, v)
		if err != nil {
			var mi *payment.MalformedInputError
			reason := "Invalid webhook payload"
			if errors.As(err, &mi) {
				reqLog.Error("malformed webhook", zap.String("reason", mi.Reason), zap.Error(mi.Err))
			}
			c.String(http.StatusBadRequest, reason)
			return
		}

		res := cfg.Webhooks.Handle(ctx, n)
		if res.Kind == payment.Rejected {
			reqLog.Info("webhook rejected", zap.Int("code", res.Code), zap.String("reason", res.Reason))
		}
		c.String(res.Code, res.Reason)
	})
}

// RegisterCheckoutRoutes registers payment session initiation.
func RegisterCheckoutRoutes(r gin.IRoutes, cfg HandlerConfig) {
	v := cfg.Validator
	if v == nil {
		v = validation.New()
	}
	log := logging.OrNop(cfg.Logger).Named("checkout_handler")

	r.POST("/orders/:order_id/checkout", func(c *gin.Context) {
		var uri validation.CheckoutURI
		if err := validation.BindURIAndValidate(c, &uri, v); err != nil {
			// BindURIAndValidate already wrote a 400
			return
		}

		res, err := cfg.Checkouts.Checkout(c.Request.Context(), uri.OrderID)
		if errors.Is(err, payment.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		if errors.Is(err, payment.ErrOrderAlreadyPaid) {
			c.JSON(http.StatusConflict, gin.H{"error": "order_already_paid"})
			return
		}
		if err != nil {
			requestLogger(c, log).Error("checkout failed", zap.Int64("order_id", uri.OrderID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout_failed"})
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
