package payment

import (
	"context"
	"time"

	"github.com/imrishuroy/sellapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/sellapp-orderflow/internal/orders"
	"github.com/imrishuroy/sellapp-orderflow/internal/sellapp"
)

// fakeOrders is an in-memory OrderStore that follows the DynamoDB store's
// conditions: payment completion is a no-op on paid orders.
type fakeOrders struct {
	items     map[int64]*orders.Order
	getErr    error
	updateErr error
	calls     []string
}

func newFakeOrders(list ...*orders.Order) *fakeOrders {
	f := &fakeOrders{items: map[int64]*orders.Order{}}
	for _, o := range list {
		f.items[o.OrderID] = o
	}
	return f
}

func (f *fakeOrders) Get(_ context.Context, id int64) (*orders.Order, error) {
	f.calls = append(f.calls, "get")
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Notes = append([]string(nil), o.Notes...)
	return &cp, nil
}

func (f *fakeOrders) PaymentComplete(_ context.Context, id int64, tx, note string) (bool, error) {
	f.calls = append(f.calls, "payment_complete")
	if f.updateErr != nil {
		return false, f.updateErr
	}
	o, ok := f.items[id]
	if !ok || o.Status.IsPaid() {
		return false, nil
	}
	o.Status = orders.StatusProcessing
	o.TransactionID = tx
	o.Notes = append(o.Notes, note)
	return true, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id int64, status orders.Status, note string) error {
	f.calls = append(f.calls, "update_status")
	if f.updateErr != nil {
		return f.updateErr
	}
	o, ok := f.items[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	o.Notes = append(o.Notes, note)
	return nil
}

func (f *fakeOrders) AddNote(_ context.Context, id int64, note string) error {
	f.calls = append(f.calls, "add_note")
	if f.updateErr != nil {
		return f.updateErr
	}
	o, ok := f.items[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Notes = append(o.Notes, note)
	return nil
}

func (f *fakeOrders) mutations() int {
	n := 0
	for _, c := range f.calls {
		if c != "get" {
			n++
		}
	}
	return n
}

type fakeVerifier struct {
	charges map[string]*sellapp.Charge
	calls   []string
}

func (f *fakeVerifier) Verify(_ context.Context, id string) *sellapp.Charge {
	f.calls = append(f.calls, id)
	c, ok := f.charges[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

type fakeDeliveries struct {
	records   map[string]*idempotency.Record
	createErr error
	now       time.Time
}

func newFakeDeliveries(now time.Time) *fakeDeliveries {
	return &fakeDeliveries{records: map[string]*idempotency.Record{}, now: now}
}

func (f *fakeDeliveries) CreateIfNotExists(_ context.Context, key string, orderID int64, chargeID string) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = &idempotency.Record{IdempotencyKey: key, Status: idempotency.StatusInProgress,
		OrderID: orderID, ChargeID: chargeID, CreatedAt: f.now, UpdatedAt: f.now}
	return true, nil
}

func (f *fakeDeliveries) Get(_ context.Context, key string) (*idempotency.Record, error) {
	r, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeDeliveries) Reclaim(_ context.Context, key string) (bool, error) {
	r, ok := f.records[key]
	if !ok || r.Status != idempotency.StatusFailed {
		return false, nil
	}
	r.Status = idempotency.StatusInProgress
	r.UpdatedAt = f.now
	return true, nil
}

func (f *fakeDeliveries) MarkDone(_ context.Context, key, outcome string, code int) error {
	r, ok := f.records[key]
	if !ok {
		return idempotency.ErrNoRecord
	}
	r.Status = idempotency.StatusDone
	r.Outcome = outcome
	r.ResponseStatus = code
	return nil
}

func (f *fakeDeliveries) MarkFailed(_ context.Context, key, note string) error {
	r, ok := f.records[key]
	if !ok {
		return idempotency.ErrNoRecord
	}
	r.Status = idempotency.StatusFailed
	r.Note = note
	return nil
}

func pendingOrder(id int64) *orders.Order {
	total, _ := orders.NewAmount("25.50")
	return &orders.Order{
		OrderID:  id,
		Status:   orders.StatusPending,
		Currency: "USD",
		Total:    total,
		Billing:  orders.Billing{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}
}
