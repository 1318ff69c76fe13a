package orders

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order in the commerce store.
type Status string

// Order statuses
const (
	StatusPending    Status = "pending"
	StatusOnHold     Status = "on-hold"
	StatusProcessing Status = "processing" // paid, awaiting fulfilment
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsPaid reports whether payment has already been recorded for the order.
func (s Status) IsPaid() bool {
	return s == StatusProcessing || s == StatusCompleted
}

// payableStatuses may transition to paid. Anything else is already paid or terminal.
var payableStatuses = []Status{StatusPending, StatusOnHold, StatusFailed, StatusCancelled}

// Billing holds the buyer details read at charge creation.
type Billing struct {
	FirstName string `dynamodbav:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string `dynamodbav:"last_name,omitempty" json:"last_name,omitempty"`
	Email     string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone     string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Country   string `dynamodbav:"country,omitempty" json:"country,omitempty"`
	State     string `dynamodbav:"state,omitempty" json:"state,omitempty"`
}

// Amount is a decimal stored as a DynamoDB number.
type Amount struct {
	decimal.Decimal
}

// NewAmount parses a decimal string such as "12.50".
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d}, nil
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (a Amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (a *Amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		a.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.Decimal = d
	return nil
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID       int64      `dynamodbav:"order_id"` // PK
	CustomerID    int64      `dynamodbav:"customer_id,omitempty"`
	Status        Status     `dynamodbav:"status"`
	Currency      string     `dynamodbav:"currency"`
	Total         Amount     `dynamodbav:"total"`
	Billing       Billing    `dynamodbav:"billing"`
	TransactionID string     `dynamodbav:"transaction_id,omitempty"`
	Notes         []string   `dynamodbav:"notes,omitempty"`
	PaidAt        *time.Time `dynamodbav:"paid_at,omitempty"`
	CreatedAt     time.Time  `dynamodbav:"created_at"`
	UpdatedAt     time.Time  `dynamodbav:"updated_at"`
}

// Reference is the charge reference sent to the processor: prefix followed by the order id.
func (o *Order) Reference(prefix string) string {
	return prefix + strconv.FormatInt(o.OrderID, 10)
}
