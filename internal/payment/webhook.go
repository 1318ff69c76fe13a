package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
	"github.com/imrishuroy/sellapp-orderflow/internal/metrics"
	"github.com/imrishuroy/sellapp-orderflow/internal/orders"
	"github.com/imrishuroy/sellapp-orderflow/internal/sellapp"
	"github.com/imrishuroy/sellapp-orderflow/internal/validation"
)

// Notification is an inbound webhook after parsing. Nothing in it is trusted:
// ChargeID selects which charge to verify, Reference and RequestOrderID select
// the order, Status is only logged.
type Notification struct {
	ChargeID       string
	Reference      string
	Status         string
	RequestOrderID int64
}

// ParseNotification decodes and validates a webhook body. requestOrderID is
// the already-parsed wc_id request parameter.
func ParseNotification(body []byte, requestOrderID int64, v *validatorv10.Validate) (Notification, error) {
	var payload validation.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Notification{}, &MalformedInputError{Reason: "invalid JSON", Err: err}
	}
	if payload.Data != nil {
		payload.Data.ID = sellapp.Text(sanitizeText(string(payload.Data.ID)))
		payload.Data.Reference = sanitizeText(payload.Data.Reference)
		payload.Data.Status = sanitizeText(payload.Data.Status)
	}
	if err := v.Struct(payload); err != nil {
		return Notification{}, &MalformedInputError{Reason: "missing or invalid data.id", Err: err}
	}
	return Notification{
		ChargeID:       string(payload.Data.ID),
		Reference:      payload.Data.Reference,
		Status:         payload.Data.Status,
		RequestOrderID: requestOrderID,
	}, nil
}

// sanitizeText drops control characters and surrounding whitespace.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ResultKind tags a webhook Result.
type ResultKind int

const (
	Acknowledged ResultKind = iota
	Rejected
)

// Result is what the transport layer turns into a response.
type Result struct {
	Kind       ResultKind
	Code       int
	Reason     string
	OrderID    int64
	Transition TransitionKind
	Duplicate  bool
}

func acknowledge(orderID int64, kind TransitionKind) Result {
	return Result{Kind: Acknowledged, Code: http.StatusOK, Reason: "OK", OrderID: orderID, Transition: kind}
}

func reject(code int, reason string) Result {
	return Result{Kind: Rejected, Code: code, Reason: reason}
}

// ChargeVerifier fetches authoritative charge state; nil means unverified.
type ChargeVerifier interface {
	Verify(ctx context.Context, chargeID string) *sellapp.Charge
}

// DeliveryLog deduplicates webhook deliveries. Optional.
type DeliveryLog interface {
	CreateIfNotExists(ctx context.Context, key string, orderID int64, chargeID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	Reclaim(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key, outcome string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// WebhookConfig groups dependencies for the webhook handler.
type WebhookConfig struct {
	// ChargeDescription is the reference prefix used when the request carries no order id.
	ChargeDescription string
	Verifier          ChargeVerifier
	Orders            OrderStore
	Deliveries        DeliveryLog
	// StaleAfter lets an IN_PROGRESS delivery be retried once it is this old.
	StaleAfter time.Duration
	Logger     *zap.Logger
	Metrics    *metrics.Registry
}

// WebhookHandler reconciles orders from webhook notifications.
type WebhookHandler struct {
	cfg        WebhookConfig
	reconciler *Reconciler
	log        *zap.Logger
	nowFunc    func() time.Time
}

// NewWebhookHandler wires a handler from cfg.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	cfg.Logger = logging.OrNop(cfg.Logger)
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	log := cfg.Logger.Named("webhook")
	return &WebhookHandler{
		cfg:        cfg,
		reconciler: NewReconciler(cfg.Orders, log, cfg.Metrics),
		log:        log,
		nowFunc:    time.Now,
	}
}

// Handle verifies the claimed charge, resolves the order and applies one
// transition. The notification's own status is never acted on.
func (h *WebhookHandler) Handle(ctx context.Context, n Notification) Result {
	res := h.handle(ctx, n)
	h.cfg.Metrics.ObserveWebhook(res.Code)
	return res
}

func (h *WebhookHandler) handle(ctx context.Context, n Notification) Result {
	log := h.log.With(zap.String("charge_id", n.ChargeID))
	log.Debug("webhook received",
		zap.String("reference", n.Reference),
		zap.String("claimed_status", n.Status),
		zap.Int64("wc_id", n.RequestOrderID))

	charge := h.cfg.Verifier.Verify(ctx, n.ChargeID)
	if charge == nil {
		log.Error("could not verify charge with the API")
		return reject(http.StatusBadRequest, "Could not verify charge")
	}
	if charge.ID == "" {
		charge.ID = sellapp.Text(n.ChargeID)
	}
	log.Debug("SellApp API verified charge data", zap.Any("charge", charge))

	orderID := ResolveOrderID(n.RequestOrderID, n.Reference, h.cfg.ChargeDescription)
	if orderID == 0 {
		log.Error("could not determine order id from request or reference",
			zap.Int64("wc_id", n.RequestOrderID), zap.String("reference", n.Reference))
		return reject(http.StatusBadRequest, "Could not determine Order ID")
	}
	log = log.With(zap.Int64("order_id", orderID))

	order, err := h.cfg.Orders.Get(ctx, orderID)
	if err != nil {
		log.Error("order lookup failed", zap.Error(err))
		return reject(http.StatusInternalServerError, "Order lookup failed")
	}
	if order == nil {
		log.Error("order not found")
		return reject(http.StatusNotFound, "Order not found")
	}

	log.Info("processing order for SellApp charge", zap.String("api_status", charge.Status))

	key := idempotency.WebhookKey(n.ChargeID, charge.Status)
	if !h.begin(ctx, log, key, orderID, n.ChargeID) {
		h.cfg.Metrics.ObserveDuplicate()
		res := acknowledge(orderID, PlanTransition(charge.Status, n.ChargeID).Kind)
		res.Duplicate = true
		return res
	}

	t, err := h.reconciler.Apply(ctx, orderID, charge)
	if err != nil {
		log.Error("reconciliation failed", zap.Error(err))
		h.finish(ctx, log, key, "", err)
		if errors.Is(err, orders.ErrNotFound) {
			return reject(http.StatusNotFound, "Order not found")
		}
		return reject(http.StatusInternalServerError, "Order update failed")
	}
	h.finish(ctx, log, key, string(t.Kind), nil)
	return acknowledge(orderID, t.Kind)
}

// begin claims key for this delivery and reports whether the transition
// should run. Dedup failures never block reconciliation: the transitions are
// idempotent on their own.
func (h *WebhookHandler) begin(ctx context.Context, log *zap.Logger, key string, orderID int64, chargeID string) bool {
	if h.cfg.Deliveries == nil {
		return true
	}
	created, err := h.cfg.Deliveries.CreateIfNotExists(ctx, key, orderID, chargeID)
	if err != nil {
		log.Warn("delivery log unavailable, applying without dedup", zap.Error(err))
		return true
	}
	if created {
		return true
	}

	rec, err := h.cfg.Deliveries.Get(ctx, key)
	if err != nil || rec == nil {
		log.Warn("delivery record unreadable, applying without dedup", zap.Error(err))
		return true
	}
	switch rec.Status {
	case idempotency.StatusDone:
		log.Info("duplicate delivery, already reconciled", zap.String("outcome", rec.Outcome))
		return false
	case idempotency.StatusFailed:
		ok, err := h.cfg.Deliveries.Reclaim(ctx, key)
		if err != nil {
			log.Warn("reclaim failed, applying without dedup", zap.Error(err))
			return true
		}
		return ok
	default:
		if h.nowFunc().Sub(rec.UpdatedAt) > h.cfg.StaleAfter {
			log.Warn("stale in-progress delivery, re-applying", zap.Time("updated_at", rec.UpdatedAt))
			return true
		}
		log.Info("delivery already in progress")
		return false
	}
}

func (h *WebhookHandler) finish(ctx context.Context, log *zap.Logger, key, outcome string, applyErr error) {
	if h.cfg.Deliveries == nil {
		return
	}
	var err error
	if applyErr != nil {
		err = h.cfg.Deliveries.MarkFailed(ctx, key, applyErr.Error())
	} else {
		err = h.cfg.Deliveries.MarkDone(ctx, key, outcome, http.StatusOK)
	}
	switch {
	case errors.Is(err, idempotency.ErrNoRecord):
		log.Warn("delivery was never claimed, outcome not recorded", zap.String("key", key))
	case err != nil:
		log.Warn("could not record delivery outcome", zap.Error(err))
	}
}
