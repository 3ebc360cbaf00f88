package pocodynamo

import (
	"context"
	"reflect"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/codec"
	"github.com/pocodynamo/pocodynamo/internal/predicate"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// PutItem writes a single item, unconditionally overwriting any existing
// item with the same key. There is no condition attached by default —
// see PutItemIf, named the way ddb_unsafe_update.go names its own
// unconditional counterpart.
func PutItem[T any](ctx context.Context, c *Client, item T) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}
	av, err := codec.EncodeItem(reflect.ValueOf(item), desc, c.hooks)
	if err != nil {
		return err
	}
	tableName := tableNameFor(desc, item)
	return c.exec(ctx, tableName, nil, func() error {
		_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &tableName,
			Item:      av,
		})
		return err
	})
}

// PutItemIf writes item only if cond holds against the existing item (or
// its absence, via AttrNotExists), generalizing the teacher's
// ddb_put_safety.go condition-attached Put across the shared predicate
// DSL (§3 SUPPLEMENTED FEATURES). A failed condition surfaces as a
// PermanentStoreError wrapping ConditionalCheckFailedException.
func PutItemIf[T any](ctx context.Context, c *Client, item T, cond predicate.Predicate) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}
	av, err := codec.EncodeItem(reflect.ValueOf(item), desc, c.hooks)
	if err != nil {
		return err
	}
	compiled, err := predicate.CompileFilter(cond)
	if err != nil {
		return err
	}
	tableName := tableNameFor(desc, item)
	return c.exec(ctx, tableName, nil, func() error {
		_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 &tableName,
			Item:                      av,
			ConditionExpression:       &compiled.Expression,
			ExpressionAttributeNames:  compiled.Names,
			ExpressionAttributeValues: compiled.Values,
		})
		return err
	})
}

// PutItems writes multiple items via BatchWriteItem, chunking into
// batches of up to 25 and re-submitting UnprocessedItems with
// exponential backoff until empty (spec §4.4 putItems).
func PutItems[T any](ctx context.Context, c *Client, items []T) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}

	const batchSize = 25
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		reqs := make([]ddbtypes.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			av, err := codec.EncodeItem(reflect.ValueOf(item), desc, c.hooks)
			if err != nil {
				return err
			}
			reqs = append(reqs, ddbtypes.WriteRequest{PutRequest: &ddbtypes.PutRequest{Item: av}})
		}
		if err := writeBatch(ctx, c, desc.Name, reqs); err != nil {
			return err
		}
	}
	return nil
}

// PutRelated stamps every child's hash field with parentHash and
// batch-puts them, requiring the child table to have a range key (spec
// §4.4 putRelated) since a child without one would collide with its
// siblings under the shared hash.
func PutRelated[T any](ctx context.Context, c *Client, parentHash any, items []T) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}
	if desc.RangeKey == nil {
		return &schema.SchemaError{Type: desc.GoType, Msg: "PutRelated requires the child table to have a range key"}
	}
	hashVal := reflect.ValueOf(parentHash)
	if hashVal.Type() != desc.HashKey.Type {
		if !hashVal.Type().ConvertibleTo(desc.HashKey.Type) {
			return &schema.SchemaError{Type: desc.GoType, Msg: "parent hash value type does not match the child table's hash field type"}
		}
		hashVal = hashVal.Convert(desc.HashKey.Type)
	}

	stamped := make([]T, len(items))
	for i, item := range items {
		v := reflect.New(desc.GoType).Elem()
		v.Set(reflect.ValueOf(item))
		desc.HashKey.Set(v, hashVal)
		stamped[i] = v.Interface().(T)
	}
	return PutItems[T](ctx, c, stamped)
}

func writeBatch(ctx context.Context, c *Client, tableName string, reqs []ddbtypes.WriteRequest) error {
	pending := map[string][]ddbtypes.WriteRequest{tableName: reqs}
	attempt := 0
	for {
		var out *dynamodb.BatchWriteItemOutput
		err := c.exec(ctx, tableName, nil, func() error {
			var innerErr error
			out, innerErr = c.ddb.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			return innerErr
		})
		if err != nil {
			return err
		}
		if len(out.UnprocessedItems) == 0 {
			return nil
		}
		pending = out.UnprocessedItems

		wait := c.cfg.Backoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
