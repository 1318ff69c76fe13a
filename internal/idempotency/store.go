// Package idempotency records webhook deliveries so a redelivered notification
// is acknowledged without re-applying its order transition.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/sellapp-orderflow/internal/aws"
)

// ErrNoRecord is returned when marking a delivery whose record does not exist.
var ErrNoRecord = errors.New("delivery record not found")

// Store keeps delivery records in a DynamoDB table keyed by idempotency_key.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // records expire this long after creation
	nowFunc   func() time.Time
}

// NewStore returns a Store writing to tableName. ttlWindow is typically 48h.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// WebhookKey is the dedup key of a webhook delivery. Redeliveries of the same
// verified charge state share a key; a later state change gets a new one.
func WebhookKey(chargeID, verifiedStatus string) string {
	return "sellapp:" + chargeID + ":" + strings.ToUpper(strings.TrimSpace(verifiedStatus))
}

func isConditionFailure(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func (s *Store) key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: k},
	}
}

// CreateIfNotExists claims key with an IN_PROGRESS record. It reports false,
// without error, when a record already exists; the caller inspects it with Get.
func (s *Store) CreateIfNotExists(ctx context.Context, key string, orderID int64, chargeID string) (bool, error) {
	now := s.nowFunc()
	item, err := attributevalue.MarshalMap(Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		ChargeID:       chargeID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String("attribute_not_exists(idempotency_key)"),
	})
	switch {
	case err == nil:
		return true, nil
	case isConditionFailure(err):
		return false, nil
	default:
		return false, fmt.Errorf("put delivery %s: %w", key, err)
	}
}

// Get returns the record for key, or (nil, nil) when there is none.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(key),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal delivery %s: %w", key, err)
	}
	return &rec, nil
}

// setStatus moves an existing record to status and sets the extra attributes.
// When from is non-empty the record must currently be in that status. A missing
// record is a condition failure; the update never creates one.
func (s *Store) setStatus(ctx context.Context, key, status, from string, extra map[string]types.AttributeValue) error {
	set := []string{"#s = :st", "updated_at = :ua"}
	values := map[string]types.AttributeValue{
		":st": &types.AttributeValueMemberS{Value: status},
		":ua": &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
	}
	names := map[string]string{"#s": "status"}
	for attr, v := range extra {
		ph := ":" + attr
		set = append(set, "#"+attr+" = "+ph)
		names["#"+attr] = attr
		values[ph] = v
	}

	cond := "attribute_exists(idempotency_key)"
	if from != "" {
		cond += " AND #s = :expected"
		values[":expected"] = &types.AttributeValueMemberS{Value: from}
	}

	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(key),
		UpdateExpression:          sdkaws.String("SET " + strings.Join(set, ", ")),
		ConditionExpression:       sdkaws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	_, err := s.client.UpdateItem(ctx, input)
	return err
}

// Reclaim moves a FAILED record back to IN_PROGRESS so the delivery can be
// re-applied. It reports false when the record is no longer FAILED.
func (s *Store) Reclaim(ctx context.Context, key string) (bool, error) {
	err := s.setStatus(ctx, key, StatusInProgress, StatusFailed, nil)
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("reclaim delivery %s: %w", key, err)
	}
	return true, nil
}

// MarkDone records the applied transition and the response sent. It returns
// ErrNoRecord when the delivery was never claimed.
func (s *Store) MarkDone(ctx context.Context, key, outcome string, responseStatus int) error {
	err := s.setStatus(ctx, key, StatusDone, "", map[string]types.AttributeValue{
		"outcome":         &types.AttributeValueMemberS{Value: outcome},
		"response_status": &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
	})
	if isConditionFailure(err) {
		return fmt.Errorf("mark delivery %s done: %w", key, ErrNoRecord)
	}
	if err != nil {
		return fmt.Errorf("mark delivery %s done: %w", key, err)
	}
	return nil
}

// MarkFailed records why applying the delivery failed.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	err := s.setStatus(ctx, key, StatusFailed, "", map[string]types.AttributeValue{
		"note": &types.AttributeValueMemberS{Value: note},
	})
	if isConditionFailure(err) {
		return fmt.Errorf("mark delivery %s failed: %w", key, ErrNoRecord)
	}
	if err != nil {
		return fmt.Errorf("mark delivery %s failed: %w", key, err)
	}
	return nil
}
