package sellapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// AlertSubject is used for operator alerts raised when verification cannot reach the API.
const AlertSubject = "Unable to verify order via SellApp API"

// Alerter notifies an operator out of band.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

type chargeFetcher interface {
	FetchCharge(ctx context.Context, chargeID string) (*Response, error)
}

// Verifier fetches the authoritative state of a charge.
type Verifier struct {
	client chargeFetcher
	alerts Alerter
	log    *zap.Logger
}

// NewVerifier returns a Verifier. alerts may be nil.
func NewVerifier(client chargeFetcher, alerts Alerter, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{client: client, alerts: alerts, log: log.Named("verifier")}
}

// Verify returns the processor's snapshot of chargeID, or nil when it cannot be
// established: transport failure (an operator alert is raised), any status
// other than 200, or a body without a data object.
func (v *Verifier) Verify(ctx context.Context, chargeID string) *Charge {
	resp, err := v.client.FetchCharge(ctx, chargeID)
	if err != nil {
		v.log.Warn("charge verification failed", zap.String("charge_id", chargeID), zap.Error(err))
		var te *TransportError
		if errors.As(err, &te) && v.alerts != nil {
			if aerr := v.alerts.Alert(ctx, AlertSubject, chargeID); aerr != nil {
				v.log.Error("operator alert failed", zap.String("charge_id", chargeID), zap.Error(aerr))
			}
		}
		return nil
	}

	v.log.Debug("order validation returned",
		zap.String("charge_id", chargeID),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", resp.Body))

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		v.log.Warn("undecodable verification response", zap.String("charge_id", chargeID), zap.Error(err))
		return nil
	}
	return env.Data
}
