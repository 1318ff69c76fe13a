package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
	"github.com/imrishuroy/sellapp-orderflow/internal/metrics"
	"github.com/imrishuroy/sellapp-orderflow/internal/orders"
	"github.com/imrishuroy/sellapp-orderflow/internal/sellapp"
)

// OrderStore is the commerce system's order collaborator.
type OrderStore interface {
	Get(ctx context.Context, orderID int64) (*orders.Order, error)
	// PaymentComplete must be a no-op returning (false, nil) on an already-paid order.
	PaymentComplete(ctx context.Context, orderID int64, transactionID, note string) (bool, error)
	UpdateStatus(ctx context.Context, orderID int64, status orders.Status, note string) error
	AddNote(ctx context.Context, orderID int64, note string) error
}

// TransitionKind names the effect a verified charge status has on an order.
type TransitionKind string

const (
	TransitionPaid      TransitionKind = "paid"
	TransitionOnHold    TransitionKind = "on-hold"
	TransitionFailed    TransitionKind = "failed"
	TransitionCancelled TransitionKind = "cancelled"
	TransitionNote      TransitionKind = "note"
	TransitionIgnored   TransitionKind = "ignored"
)

// Transition is the planned (and, after Apply, executed) effect of one
// verified notification.
type Transition struct {
	Kind   TransitionKind
	Status orders.Status // target status; empty for note/ignored
	Note   string
	// Applied is false when the store reported nothing to do (already paid)
	// or the status was ignored.
	Applied bool
}

// PlanTransition maps a verified charge status to exactly one transition.
// Unknown statuses map to TransitionIgnored.
func PlanTransition(status, chargeID string) Transition {
	switch sellapp.NormalizeStatus(status) {
	case sellapp.StatusCompleted:
		return Transition{Kind: TransitionPaid, Status: orders.StatusProcessing,
			Note: fmt.Sprintf("Payment completed via SellApp (Charge: %s)", chargeID)}
	case sellapp.StatusPending:
		return Transition{Kind: TransitionOnHold, Status: orders.StatusOnHold,
			Note: fmt.Sprintf("Payment is pending verification (SellApp Charge: %s)", chargeID)}
	case sellapp.StatusWaitingForConfirmations:
		return Transition{Kind: TransitionOnHold, Status: orders.StatusOnHold,
			Note: fmt.Sprintf("Awaiting crypto currency confirmations (SellApp Charge: %s)", chargeID)}
	case sellapp.StatusPartial:
		return Transition{Kind: TransitionOnHold, Status: orders.StatusOnHold,
			Note: fmt.Sprintf("Cryptocurrency payment only partially paid (SellApp Charge: %s)", chargeID)}
	case sellapp.StatusVoided:
		return Transition{Kind: TransitionFailed, Status: orders.StatusFailed,
			Note: fmt.Sprintf("Payment has been voided (SellApp Charge: %s)", chargeID)}
	case sellapp.StatusCanceled, sellapp.StatusCancelled:
		return Transition{Kind: TransitionCancelled, Status: orders.StatusCancelled,
			Note: fmt.Sprintf("Payment has been cancelled (SellApp Charge: %s)", chargeID)}
	case sellapp.StatusRefunded:
		return Transition{Kind: TransitionNote,
			Note: fmt.Sprintf("Payment has been refunded via SellApp (Charge: %s)", chargeID)}
	default:
		return Transition{Kind: TransitionIgnored}
	}
}

// Reconciler applies verified charge statuses to orders.
type Reconciler struct {
	orders  OrderStore
	log     *zap.Logger
	metrics *metrics.Registry
}

// NewReconciler returns a Reconciler. log and m may be nil.
func NewReconciler(store OrderStore, log *zap.Logger, m *metrics.Registry) *Reconciler {
	return &Reconciler{orders: store, log: logging.OrNop(log), metrics: m}
}

// Apply performs the single transition for charge on orderID. charge must come
// from the verifier. Ignored statuses return a TransitionIgnored with no error
// and no store call.
func (r *Reconciler) Apply(ctx context.Context, orderID int64, charge *sellapp.Charge) (Transition, error) {
	chargeID := string(charge.ID)
	t := PlanTransition(charge.Status, chargeID)
	log := r.log.With(zap.Int64("order_id", orderID), zap.String("charge_id", chargeID), zap.String("api_status", charge.Status))

	var err error
	switch t.Kind {
	case TransitionPaid:
		t.Applied, err = r.orders.PaymentComplete(ctx, orderID, chargeID, t.Note)
		if err == nil && !t.Applied {
			log.Info("order already paid, completion skipped")
		}
	case TransitionOnHold, TransitionFailed, TransitionCancelled:
		err = r.orders.UpdateStatus(ctx, orderID, t.Status, t.Note)
		t.Applied = err == nil
	case TransitionNote:
		err = r.orders.AddNote(ctx, orderID, t.Note)
		t.Applied = err == nil
	default:
		log.Warn("received unknown status from SellApp API")
		r.metrics.ObserveTransition(string(t.Kind))
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("apply %s transition to order %d: %w", t.Kind, orderID, err)
	}

	log.Info("order reconciled", zap.String("transition", string(t.Kind)), zap.Bool("applied", t.Applied))
	r.metrics.ObserveTransition(string(t.Kind))
	return t, nil
}
