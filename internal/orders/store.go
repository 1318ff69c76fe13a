package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/sellapp-orderflow/internal/aws"
)

// ErrNotFound is returned by mutations that target a missing order.
var ErrNotFound = errors.New("order not found")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func orderKey(orderID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(orderID, 10)},
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID int64) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// PaymentComplete marks the order paid (status processing), records the
// transaction id and appends note. The update is conditional on the order being
// in a payable status, so calling it on an already-paid order is a no-op that
// returns (false, nil).
func (s *Store) PaymentComplete(ctx context.Context, orderID int64, transactionID, note string) (bool, error) {
	now := s.nowFunc().UTC().Format(time.RFC3339)
	values := map[string]types.AttributeValue{
		":paid":  &types.AttributeValueMemberS{Value: string(StatusProcessing)},
		":tx":    &types.AttributeValueMemberS{Value: transactionID},
		":pa":    &types.AttributeValueMemberS{Value: now},
		":ua":    &types.AttributeValueMemberS{Value: now},
		":note":  noteList(note),
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
	}
	inList := ""
	for i, st := range payableStatuses {
		ph := fmt.Sprintf(":s%d", i)
		values[ph] = &types.AttributeValueMemberS{Value: string(st)}
		if i > 0 {
			inList += ", "
		}
		inList += ph
	}

	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          awsString("SET #s = :paid, transaction_id = :tx, paid_at = :pa, updated_at = :ua, notes = list_append(if_not_exists(notes, :empty), :note)"),
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s IN (" + inList + ")"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return false, nil
		}
		return false, fmt.Errorf("update item (payment complete): %w", err)
	}
	return true, nil
}

// UpdateStatus sets the order status and appends note. Returns ErrNotFound if
// the order does not exist.
func (s *Store) UpdateStatus(ctx context.Context, orderID int64, newStatus Status, note string) error {
	now := s.nowFunc().UTC().Format(time.RFC3339)
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(orderID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua, notes = list_append(if_not_exists(notes, :empty), :note)"),
		ConditionExpression:      awsString("attribute_exists(order_id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":   &types.AttributeValueMemberS{Value: string(newStatus)},
			":ua":    &types.AttributeValueMemberS{Value: now},
			":note":  noteList(note),
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
	}
	return s.update(ctx, input, "update status")
}

// AddNote appends an informational note without touching the status.
func (s *Store) AddNote(ctx context.Context, orderID int64, note string) error {
	now := s.nowFunc().UTC().Format(time.RFC3339)
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET updated_at = :ua, notes = list_append(if_not_exists(notes, :empty), :note)"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ua":    &types.AttributeValueMemberS{Value: now},
			":note":  noteList(note),
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
	}
	return s.update(ctx, input, "add note")
}

func (s *Store) update(ctx context.Context, input *dyn.UpdateItemInput, op string) error {
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrNotFound
		}
		return fmt.Errorf("update item (%s): %w", op, err)
	}
	return nil
}

func noteList(note string) types.AttributeValue {
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberS{Value: note},
	}}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
