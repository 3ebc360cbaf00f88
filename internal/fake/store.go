// Package fake implements an in-memory DynamoAPI for tests, grounded on
// the teacher's dynamodb/ddbstore.mockStore/mockTable but reduced to a
// plain map (no B-tree, no real sort-key ordering fidelity) since full
// scan-order emulation is out of scope.
package fake

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// TableSchema declares the key shape of one table (and, optionally, its
// secondary indexes) for Store's constructor — the fake needs to know
// hash/range attribute names up front the way the real service derives
// them from CreateTable, since it has no schema of its own to infer them
// from.
type TableSchema struct {
	Name     string
	HashKey  string
	RangeKey string
	Indexes  map[string]IndexKeys
}

type IndexKeys struct {
	HashKey  string
	RangeKey string
}

type tableData struct {
	schema TableSchema
	items  map[string]map[string]ddbtypes.AttributeValue
}

// Store is a sync.Mutex-guarded in-memory DynamoAPI implementation.
type Store struct {
	mu       sync.Mutex
	tables   map[string]*tableData
	throttle map[string]int
}

// New builds a Store pre-populated with the given table schemas. Tables
// not listed here can still come into existence via CreateTable, the
// path InitSchema exercises.
func New(schemas ...TableSchema) *Store {
	s := &Store{tables: map[string]*tableData{}, throttle: map[string]int{}}
	for _, sc := range schemas {
		s.tables[sc.Name] = &tableData{schema: sc, items: map[string]map[string]ddbtypes.AttributeValue{}}
	}
	return s
}

// ThrottleNext makes the next n operations against table fail with a
// ThrottlingException, for exercising the retry wrapper's back-off loop.
func (s *Store) ThrottleNext(table string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle[table] = n
}

func (s *Store) checkThrottle(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.throttle[table] > 0 {
		s.throttle[table]--
		return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "fake: injected throttle"}
	}
	return nil
}

func notFound(table string) error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: fmt.Sprintf("table %q not found", table)}
}

func (s *Store) table(name string) (*tableData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	return t, nil
}

func encodeScalar(av ddbtypes.AttributeValue) string {
	switch v := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return "S:" + v.Value
	case *ddbtypes.AttributeValueMemberN:
		return "N:" + v.Value
	case *ddbtypes.AttributeValueMemberB:
		return "B:" + base64.StdEncoding.EncodeToString(v.Value)
	default:
		return fmt.Sprintf("?:%v", av)
	}
}

func primaryKeyOf(schema TableSchema, item map[string]ddbtypes.AttributeValue) (string, error) {
	hv, ok := item[schema.HashKey]
	if !ok {
		return "", fmt.Errorf("fake: item missing hash key %q", schema.HashKey)
	}
	key := encodeScalar(hv)
	if schema.RangeKey != "" {
		rv, ok := item[schema.RangeKey]
		if !ok {
			return "", fmt.Errorf("fake: item missing range key %q", schema.RangeKey)
		}
		key += "|" + encodeScalar(rv)
	}
	return key, nil
}

func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := primaryKeyOf(t.schema, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := primaryKeyOf(t.schema, params.Item)
	if err != nil {
		return nil, err
	}
	existing, had := t.items[key]
	if params.ConditionExpression != nil {
		var evalItem map[string]ddbtypes.AttributeValue
		if had {
			evalItem = existing
		}
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, evalItem)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "ConditionalCheckFailedException", Message: "the conditional request failed"}
		}
	}
	t.items[key] = copyItem(params.Item)
	out := &dynamodb.PutItemOutput{}
	if had && params.ReturnValues == ddbtypes.ReturnValueAllOld {
		out.Attributes = existing
	}
	return out, nil
}

func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := primaryKeyOf(t.schema, params.Key)
	if err != nil {
		return nil, err
	}
	existing, had := t.items[key]
	delete(t.items, key)
	out := &dynamodb.DeleteItemOutput{}
	if had && params.ReturnValues == ddbtypes.ReturnValueAllOld {
		out.Attributes = existing
	}
	return out, nil
}

func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := primaryKeyOf(t.schema, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[key]
	if !ok {
		item = copyItem(params.Key)
	}
	updated, err := applyAdd(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
	if err != nil {
		return nil, err
	}
	t.items[key] = updated

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == ddbtypes.ReturnValueUpdatedNew || params.ReturnValues == ddbtypes.ReturnValueAllNew {
		out.Attributes = copyItem(updated)
	}
	return out, nil
}

func (s *Store) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]ddbtypes.AttributeValue{},
		UnprocessedKeys: map[string]ddbtypes.KeysAndAttributes{},
	}
	for tableName, keys := range params.RequestItems {
		if err := s.checkThrottle(tableName); err != nil {
			return nil, err
		}
		t, err := s.table(tableName)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		for _, k := range keys.Keys {
			key, err := primaryKeyOf(t.schema, k)
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}
			if item, ok := t.items[key]; ok {
				out.Responses[tableName] = append(out.Responses[tableName], copyItem(item))
			}
		}
		s.mu.Unlock()
	}
	return out, nil
}

func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	unprocessed := map[string][]ddbtypes.WriteRequest{}
	for tableName, reqs := range params.RequestItems {
		if err := s.checkThrottle(tableName); err != nil {
			return nil, err
		}
		for _, req := range reqs {
			switch {
			case req.PutRequest != nil:
				if _, err := s.PutItem(ctx, &dynamodb.PutItemInput{TableName: &tableName, Item: req.PutRequest.Item}); err != nil {
					unprocessed[tableName] = append(unprocessed[tableName], req)
				}
			case req.DeleteRequest != nil:
				if _, err := s.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: &tableName, Key: req.DeleteRequest.Key}); err != nil {
					unprocessed[tableName] = append(unprocessed[tableName], req)
				}
			default:
				return nil, fmt.Errorf("fake: empty write request, must be put or delete")
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	all := sortedItems(t.items)
	s.mu.Unlock()

	var matched []map[string]ddbtypes.AttributeValue
	for _, item := range all {
		ok, err := evalCondition(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if params.FilterExpression != nil {
			fOK, err := evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !fOK {
				continue
			}
		}
		matched = append(matched, item)
	}
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		reverse(matched)
	}
	return paginate(matched, params.ExclusiveStartKey, params.Limit, t.schema)
}

func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := s.checkThrottle(*params.TableName); err != nil {
		return nil, err
	}
	t, err := s.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	all := sortedItems(t.items)
	s.mu.Unlock()

	var matched []map[string]ddbtypes.AttributeValue
	for _, item := range all {
		if params.FilterExpression != nil {
			ok, err := evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, item)
	}
	out, err := paginate(matched, params.ExclusiveStartKey, params.Limit, t.schema)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{Items: out.Items, LastEvaluatedKey: out.LastEvaluatedKey}, nil
}

func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[*params.TableName]; exists {
		return nil, &smithy.GenericAPIError{Code: "ResourceInUseException", Message: "table already exists"}
	}
	schema := TableSchema{Name: *params.TableName}
	for _, ks := range params.KeySchema {
		switch ks.KeyType {
		case ddbtypes.KeyTypeHash:
			schema.HashKey = *ks.AttributeName
		case ddbtypes.KeyTypeRange:
			schema.RangeKey = *ks.AttributeName
		}
	}
	s.tables[*params.TableName] = &tableData{schema: schema, items: map[string]map[string]ddbtypes.AttributeValue{}}
	status := ddbtypes.TableStatusActive
	return &dynamodb.CreateTableOutput{TableDescription: &ddbtypes.TableDescription{TableName: params.TableName, TableStatus: status}}, nil
}

func (s *Store) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[*params.TableName]; !ok {
		return nil, notFound(*params.TableName)
	}
	delete(s.tables, *params.TableName)
	return &dynamodb.DeleteTableOutput{}, nil
}

func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[*params.TableName]; !ok {
		return nil, notFound(*params.TableName)
	}
	return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
		TableName:   params.TableName,
		TableStatus: ddbtypes.TableStatusActive,
	}}, nil
}

func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return &dynamodb.ListTablesOutput{TableNames: names}, nil
}

func copyItem(item map[string]ddbtypes.AttributeValue) map[string]ddbtypes.AttributeValue {
	out := make(map[string]ddbtypes.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func sortedItems(items map[string]map[string]ddbtypes.AttributeValue) []map[string]ddbtypes.AttributeValue {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]ddbtypes.AttributeValue, len(keys))
	for i, k := range keys {
		out[i] = items[k]
	}
	return out
}

func reverse(items []map[string]ddbtypes.AttributeValue) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func paginate(items []map[string]ddbtypes.AttributeValue, startKey map[string]ddbtypes.AttributeValue, limit *int32, schema TableSchema) (*dynamodb.QueryOutput, error) {
	start := 0
	if len(startKey) > 0 {
		startPK, err := primaryKeyOf(schema, startKey)
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			pk, err := primaryKeyOf(schema, item)
			if err != nil {
				return nil, err
			}
			if pk == startPK {
				start = i + 1
				break
			}
		}
	}
	if start >= len(items) {
		return &dynamodb.QueryOutput{}, nil
	}
	remaining := items[start:]
	pageSize := len(remaining)
	if limit != nil && int(*limit) < pageSize {
		pageSize = int(*limit)
	}
	page := remaining[:pageSize]
	out := &dynamodb.QueryOutput{Items: page, Count: int32(len(page)), ScannedCount: int32(len(page))}
	if pageSize < len(remaining) {
		last := page[len(page)-1]
		key := map[string]ddbtypes.AttributeValue{schema.HashKey: last[schema.HashKey]}
		if schema.RangeKey != "" {
			key[schema.RangeKey] = last[schema.RangeKey]
		}
		out.LastEvaluatedKey = key
	}
	return out, nil
}
