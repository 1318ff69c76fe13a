package payment

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when a checkout targets a missing order.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderAlreadyPaid is returned when a checkout targets an order whose
// payment has already been recorded.
var ErrOrderAlreadyPaid = errors.New("order already paid")

// FailureKind classifies a PaymentError.
type FailureKind string

const (
	// TransportFailure: the processor could not be reached.
	TransportFailure FailureKind = "transport"
	// ProcessorFailure: the processor answered with an error field.
	ProcessorFailure FailureKind = "processor"
	// EmptyResponse: nothing usable came back.
	EmptyResponse FailureKind = "empty_response"
)

// PaymentError is a checkout failure whose Message is safe to show the buyer.
type PaymentError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PaymentError) Error() string { return e.Message }

func (e *PaymentError) Unwrap() error { return e.Err }

// MalformedInputError rejects a webhook body before any lookup happens.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed webhook: %s: %v", e.Reason, e.Err)
	}
	return "malformed webhook: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
