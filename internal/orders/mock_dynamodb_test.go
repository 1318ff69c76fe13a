package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory orders table keyed by order_id. It understands
// only the update and condition expressions the Store issues.
type mockDynamo struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	updateCalls int
	failWith    error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(key map[string]types.AttributeValue) (string, error) {
	v, ok := key["order_id"].(*types.AttributeValueMemberN)
	if !ok {
		return "", errors.New("missing numeric order_id key")
	}
	return v.Value, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	m.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.items[k]
	cond := ""
	if params.ConditionExpression != nil {
		cond = *params.ConditionExpression
	}
	if strings.Contains(cond, "attribute_exists(order_id)") && !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if strings.Contains(cond, "#s IN (") {
		curr, _ := item["status"].(*types.AttributeValueMemberS)
		allowed := false
		for ph, v := range params.ExpressionAttributeValues {
			if !strings.HasPrefix(ph, ":s") {
				continue
			}
			if s, ok := v.(*types.AttributeValueMemberS); ok && curr != nil && s.Value == curr.Value {
				allowed = true
			}
		}
		if !allowed {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	vals := params.ExpressionAttributeValues
	for ph, attr := range map[string]string{":paid": "status", ":new": "status", ":tx": "transaction_id", ":pa": "paid_at", ":ua": "updated_at"} {
		if v, ok := vals[ph]; ok {
			item[attr] = v
		}
	}
	if v, ok := vals[":note"].(*types.AttributeValueMemberL); ok {
		existing, _ := item["notes"].(*types.AttributeValueMemberL)
		var notes []types.AttributeValue
		if existing != nil {
			notes = append(notes, existing.Value...)
		}
		notes = append(notes, v.Value...)
		item["notes"] = &types.AttributeValueMemberL{Value: notes}
	}
	m.items[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}
