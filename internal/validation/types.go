package validation

import "github.com/imrishuroy/sellapp-orderflow/internal/sellapp"

// WebhookData is the charge claim carried by a webhook. Only ID is required;
// the rest is informational and never actioned directly.
type WebhookData struct {
	ID        sellapp.Text `json:"id" validate:"required,chargeid"`
	Reference string       `json:"reference,omitempty" validate:"max=255"`
	Status    string       `json:"status,omitempty" validate:"max=64"`
}

// WebhookPayload is the body of POST /webhooks/sellapp.
type WebhookPayload struct {
	Data *WebhookData `json:"data" validate:"required"`
}

// CheckoutURI binds the order id path parameter of POST /orders/:order_id/checkout.
type CheckoutURI struct {
	OrderID int64 `uri:"order_id" validate:"required,gt=0"`
}
