package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memoryTable is an in-memory stand-in for the deliveries table. It understands
// the existence and status conditions the store uses and applies SET clauses of the form
// "#name = :placeholder" or "attr = :placeholder".
type memoryTable struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	failWith    error
}

func newMemoryTable() *memoryTable {
	return &memoryTable{table: map[string]map[string]types.AttributeValue{}}
}

func keyOf(key map[string]types.AttributeValue) (string, error) {
	k, ok := key["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}
	return k.Value, nil
}

func (m *memoryTable) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key)" {
		if _, exists := m.table[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *memoryTable) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	return &dyn.GetItemOutput{Item: m.table[k]}, nil
}

func (m *memoryTable) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
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
	cond := ""
	if params.ConditionExpression != nil {
		cond = *params.ConditionExpression
	}
	item, ok := m.table[k]
	if !ok {
		if strings.Contains(cond, "attribute_exists(idempotency_key)") {
			return nil, &types.ConditionalCheckFailedException{}
		}
		// unconditional update upserts, as DynamoDB does
		item = map[string]types.AttributeValue{"idempotency_key": &types.AttributeValueMemberS{Value: k}}
		m.table[k] = item
	}
	vals := params.ExpressionAttributeValues
	if strings.Contains(cond, "#s = :expected") {
		curr, _ := item["status"].(*types.AttributeValueMemberS)
		want := vals[":expected"].(*types.AttributeValueMemberS)
		if curr == nil || curr.Value != want.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	clauses := strings.Split(strings.TrimPrefix(*params.UpdateExpression, "SET "), ",")
	for _, c := range clauses {
		parts := strings.SplitN(strings.TrimSpace(c), " = ", 2)
		if len(parts) != 2 {
			return nil, errors.New("unsupported update expression")
		}
		attr := parts[0]
		if strings.HasPrefix(attr, "#") {
			attr = params.ExpressionAttributeNames[attr]
		}
		item[attr] = vals[parts[1]]
	}
	return &dyn.UpdateItemOutput{}, nil
}
