package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

func seedOrder(t *testing.T, mock *mockDynamo, o Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}
	k, err := keyOf(item)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	mock.items[k] = item
}

func testOrder(id int64, status Status) Order {
	total, _ := NewAmount("25.50")
	now := time.Now().UTC().Round(time.Second)
	return Order{
		OrderID:  id,
		Status:   status,
		Currency: "USD",
		Total:    total,
		Billing: Billing{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGet_FoundAndMissing(t *testing.T) {
	mock := newMockDynamo()
	seedOrder(t, mock, testOrder(77, StatusPending))
	store := NewStore(mock, "orders")

	o, err := store.Get(context.Background(), 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o == nil || o.OrderID != 77 {
		t.Fatalf("expected order 77, got %+v", o)
	}
	if o.Total.String() != "25.5" {
		t.Fatalf("total round trip mismatch: %s", o.Total.String())
	}
	if o.Billing.Email != "ada@example.com" {
		t.Fatalf("billing mismatch: %+v", o.Billing)
	}

	missing, err := store.Get(context.Background(), 78)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing order")
	}
}

func TestGet_WrapsClientError(t *testing.T) {
	mock := newMockDynamo()
	mock.failWith = errors.New("throttled")
	store := NewStore(mock, "orders")

	if _, err := store.Get(context.Background(), 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPaymentComplete_IsIdempotent(t *testing.T) {
	mock := newMockDynamo()
	seedOrder(t, mock, testOrder(77, StatusOnHold))
	store := NewStore(mock, "orders")
	ctx := context.Background()

	applied, err := store.PaymentComplete(ctx, 77, "c1", "paid (c1)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatalf("expected first completion to apply")
	}
	first, _ := store.Get(ctx, 77)

	applied, err = store.PaymentComplete(ctx, 77, "c1", "paid (c1)")
	if err != nil {
		t.Fatalf("unexpected error on repeat: %v", err)
	}
	if applied {
		t.Fatalf("expected repeat completion to be a no-op")
	}
	second, _ := store.Get(ctx, 77)

	if second.Status != StatusProcessing || second.TransactionID != "c1" {
		t.Fatalf("unexpected final state: %+v", second)
	}
	if len(first.Notes) != 1 || len(second.Notes) != 1 {
		t.Fatalf("repeat completion must not add notes: %v / %v", first.Notes, second.Notes)
	}
	if second.PaidAt == nil {
		t.Fatalf("paid_at not recorded")
	}
}

func TestPaymentComplete_MissingOrderIsNoop(t *testing.T) {
	store := NewStore(newMockDynamo(), "orders")

	applied, err := store.PaymentComplete(context.Background(), 5, "c1", "n")
	if err != nil || applied {
		t.Fatalf("expected (false, nil), got (%v, %v)", applied, err)
	}
}

func TestUpdateStatus_AppendsNote(t *testing.T) {
	mock := newMockDynamo()
	seedOrder(t, mock, testOrder(10, StatusPending))
	store := NewStore(mock, "orders")
	ctx := context.Background()

	if err := store.UpdateStatus(ctx, 10, StatusCancelled, "cancelled (c9)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, _ := store.Get(ctx, 10)
	if o.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", o.Status)
	}
	if len(o.Notes) != 1 || o.Notes[0] != "cancelled (c9)" {
		t.Fatalf("unexpected notes: %v", o.Notes)
	}

	if err := store.UpdateStatus(ctx, 11, StatusFailed, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddNote_KeepsStatus(t *testing.T) {
	mock := newMockDynamo()
	seedOrder(t, mock, testOrder(12, StatusProcessing))
	store := NewStore(mock, "orders")
	ctx := context.Background()

	if err := store.AddNote(ctx, 12, "refunded (c2)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, _ := store.Get(ctx, 12)
	if o.Status != StatusProcessing {
		t.Fatalf("status changed: %s", o.Status)
	}
	if len(o.Notes) != 1 {
		t.Fatalf("expected one note, got %v", o.Notes)
	}
}

func TestReference(t *testing.T) {
	o := Order{OrderID: 123}
	if got := o.Reference("Charge #"); got != "Charge #123" {
		t.Fatalf("unexpected reference %q", got)
	}
}
