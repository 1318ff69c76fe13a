package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
	"github.com/imrishuroy/sellapp-orderflow/internal/metrics"
	"github.com/imrishuroy/sellapp-orderflow/internal/orders"
	"github.com/imrishuroy/sellapp-orderflow/internal/sellapp"
)

// ChargeCreator creates charges on the processor.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req sellapp.CreateChargeRequest) (*sellapp.Response, error)
}

// NonceIssuer signs the nonce appended to webhook URLs. Optional.
type NonceIssuer interface {
	Issue(orderID int64) (string, error)
}

// CheckoutConfig groups settings and dependencies for the initiator.
type CheckoutConfig struct {
	ChargeDescription string
	WebhookURL        string
	ReturnURL         string
	// CheckoutURL is where a failed checkout sends the buyer back to.
	CheckoutURL string
	StoreURL    string
	Origin      string

	Charges ChargeCreator
	Orders  OrderStore
	Nonces  NonceIssuer
	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// CheckoutResult mirrors what the checkout page needs: where to send the buyer
// and, on failure, the message to show.
type CheckoutResult struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

// Initiator starts hosted payment sessions.
type Initiator struct {
	cfg CheckoutConfig
	log *zap.Logger
}

// NewInitiator wires an Initiator from cfg.
func NewInitiator(cfg CheckoutConfig) *Initiator {
	cfg.Logger = logging.OrNop(cfg.Logger)
	if cfg.Origin == "" {
		cfg.Origin = "ORDERFLOW"
	}
	return &Initiator{cfg: cfg, log: cfg.Logger.Named("checkout")}
}

// MinorUnits converts a two-decimal amount to the processor's integer unit,
// rounding half away from zero.
func MinorUnits(total orders.Amount) int64 {
	return total.Shift(2).Round(0).IntPart()
}

// customerData returns the buyer profile with only the fields that are set.
func (i *Initiator) customerData(o *orders.Order) *sellapp.CustomerData {
	b := o.Billing
	return &sellapp.CustomerData{
		Name:       strings.TrimSpace(b.FirstName + " " + b.LastName),
		Email:      strings.TrimSpace(b.Email),
		Phone:      strings.TrimSpace(b.Phone),
		Country:    strings.TrimSpace(b.Country),
		State:      strings.TrimSpace(b.State),
		CustomerID: o.CustomerID,
		OrderID:    o.OrderID,
		StoreURL:   i.cfg.StoreURL,
	}
}

func (i *Initiator) webhookURL(orderID int64) (string, error) {
	u, err := url.Parse(i.cfg.WebhookURL)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	q := u.Query()
	q.Set("wc_id", strconv.FormatInt(orderID, 10))
	if i.cfg.Nonces != nil {
		nonce, err := i.cfg.Nonces.Issue(orderID)
		if err != nil {
			return "", err
		}
		q.Set("sellappnonce", nonce)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (i *Initiator) returnURL(orderID int64) string {
	if i.cfg.ReturnURL == "" {
		return ""
	}
	u, err := url.Parse(i.cfg.ReturnURL)
	if err != nil {
		return i.cfg.ReturnURL
	}
	q := u.Query()
	q.Set("order_id", strconv.FormatInt(orderID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildChargeRequest assembles the charge creation body for o.
func (i *Initiator) BuildChargeRequest(o *orders.Order) (sellapp.CreateChargeRequest, error) {
	webhook, err := i.webhookURL(o.OrderID)
	if err != nil {
		return sellapp.CreateChargeRequest{}, err
	}
	return sellapp.CreateChargeRequest{
		Reference:            o.Reference(i.cfg.ChargeDescription),
		Currency:             o.Currency,
		Total:                MinorUnits(o.Total),
		UseAllPaymentMethods: true,
		ReturnURL:            i.returnURL(o.OrderID),
		Webhook:              webhook,
		Email:                o.Billing.Email,
		CustomerData:         i.customerData(o),
		Metadata: sellapp.Metadata{
			Origin:        i.cfg.Origin,
			Platform:      "Go " + runtime.Version(),
			PluginVersion: sellapp.Version,
		},
	}, nil
}

// Initiate creates a charge for o and returns the hosted payment page URL.
// Every failure is a *PaymentError.
func (i *Initiator) Initiate(ctx context.Context, o *orders.Order) (string, error) {
	req, err := i.BuildChargeRequest(o)
	if err != nil {
		return "", &PaymentError{Kind: EmptyResponse, Message: "Payment error: could not build the payment request.", Err: err}
	}
	i.log.Debug("payment request", zap.Int64("order_id", o.OrderID), zap.Any("params", req))

	resp, err := i.cfg.Charges.CreateCharge(ctx, req)
	if err != nil {
		var te *sellapp.TransportError
		msg := err.Error()
		if errors.As(err, &te) {
			msg = te.Err.Error()
		}
		i.log.Debug("API error", zap.Error(err))
		return "", &PaymentError{Kind: TransportFailure, Message: "Payment error: " + msg, Err: err}
	}

	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return "", emptyResponse(nil)
	}

	var env sellapp.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return "", emptyResponse(err)
	}
	if e := env.ErrorText(); e != "" {
		msg := "Payment Gateway Error: " + e
		if st := env.StatusText(); st != "" {
			msg = "Payment Gateway Error: " + st + "-" + e
		}
		return "", &PaymentError{Kind: ProcessorFailure, Message: msg}
	}
	if env.Data == nil || env.Data.URL == "" {
		return "", emptyResponse(nil)
	}
	return env.Data.URL, nil
}

func emptyResponse(err error) *PaymentError {
	return &PaymentError{Kind: EmptyResponse, Message: "Payment Gateway Error: Empty response received.", Err: err}
}

// Checkout loads orderID, initiates a payment session and reports the outcome
// the way the checkout page consumes it. Only a missing, already paid or
// unreadable order is returned as an error.
func (i *Initiator) Checkout(ctx context.Context, orderID int64) (CheckoutResult, error) {
	o, err := i.cfg.Orders.Get(ctx, orderID)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o == nil {
		return CheckoutResult{}, ErrOrderNotFound
	}
	if o.Status.IsPaid() {
		i.log.Info("checkout refused, order already paid", zap.Int64("order_id", orderID), zap.String("status", string(o.Status)))
		i.cfg.Metrics.ObserveCheckout("already_paid")
		return CheckoutResult{}, ErrOrderAlreadyPaid
	}

	redirect, err := i.Initiate(ctx, o)
	if err != nil {
		var pe *PaymentError
		msg := err.Error()
		kind := "error"
		if errors.As(err, &pe) {
			msg = pe.Message
			kind = string(pe.Kind)
		}
		i.log.Info("checkout failed", zap.Int64("order_id", orderID), zap.String("kind", kind), zap.String("message", msg))
		i.cfg.Metrics.ObserveCheckout("failure_" + kind)
		return CheckoutResult{Result: "failure", Redirect: i.cfg.CheckoutURL, Message: msg}, nil
	}

	i.log.Debug("charge request returned", zap.Int64("order_id", orderID), zap.String("redirect", redirect))
	i.cfg.Metrics.ObserveCheckout("success")
	return CheckoutResult{Result: "success", Redirect: redirect}, nil
}
