package sellapp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Charge statuses reported by the processor.
const (
	StatusCompleted               = "COMPLETED"
	StatusPending                 = "PENDING"
	StatusWaitingForConfirmations = "WAITING_FOR_CONFIRMATIONS"
	StatusPartial                 = "PARTIAL"
	StatusVoided                  = "VOIDED"
	StatusCanceled                = "CANCELED"
	StatusCancelled               = "CANCELLED"
	StatusRefunded                = "REFUNDED"
)

// NormalizeStatus trims and upper-cases a status for comparison.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Text decodes a JSON string or number into a string. Charge ids have been
// seen as both.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

// Charge is a snapshot of the processor's record. URL is only set on creation.
type Charge struct {
	ID        Text   `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
	URL       string `json:"url,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// CustomerData is the optional buyer profile. Only populated fields are sent.
type CustomerData struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Country    string `json:"country,omitempty"`
	State      string `json:"state,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	OrderID    int64  `json:"order_id,omitempty"`
	StoreURL   string `json:"store_url,omitempty"`
}

// Metadata identifies the integration that created the charge.
type Metadata struct {
	Origin        string `json:"origin"`
	Platform      string `json:"platform"`
	PluginVersion string `json:"plugin_version"`
}

// CreateChargeRequest is the body of POST /v2/charges. Total is in minor units.
type CreateChargeRequest struct {
	Reference            string        `json:"reference"`
	Currency             string        `json:"currency"`
	Total                int64         `json:"total"`
	UseAllPaymentMethods bool          `json:"use_all_payment_methods"`
	ReturnURL            string        `json:"return_url,omitempty"`
	Webhook              string        `json:"webhook"`
	Email                string        `json:"email,omitempty"`
	CustomerData         *CustomerData `json:"customer_data,omitempty"`
	Metadata             Metadata      `json:"metadata"`
}

// Envelope is the processor's response wrapper. Error is set instead of Data
// when the request was rejected.
type Envelope struct {
	Data   *Charge         `json:"data"`
	Error  json.RawMessage `json:"error,omitempty"`
	Status json.RawMessage `json:"status,omitempty"`
}

// ErrorText renders the error field, or "" when it is absent or empty.
func (e *Envelope) ErrorText() string {
	return rawText(e.Error)
}

// StatusText renders the status field, or "" when absent.
func (e *Envelope) StatusText() string {
	return rawText(e.Status)
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", `""`, "false", "{}", "[]":
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
