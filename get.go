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

// GetItem retrieves a single item by primary key. A missing item returns
// the zero value of T and a nil error — "succeeds with no item" is
// modeled as a value, not an error (spec §7 User-visible behavior).
// ResourceNotFound from the store itself is propagated, not retried
// (spec §4.4).
func GetItem[T any](ctx context.Context, c *Client, hash any, rangeKey ...any) (T, error) {
	var zero T
	if err := c.checkOpen(); err != nil {
		return zero, err
	}
	rng, err := singleRange(rangeKey)
	if err != nil {
		return zero, err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return zero, err
	}
	key, err := buildKey(desc, hash, rng, c.hooks)
	if err != nil {
		return zero, err
	}

	var out *dynamodb.GetItemOutput
	err = c.exec(ctx, desc.Name, nil, func() error {
		var innerErr error
		out, innerErr = c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      &desc.Name,
			Key:            key,
			ConsistentRead: &c.cfg.ConsistentRead,
		})
		return innerErr
	})
	if err != nil {
		return zero, err
	}
	if out.Item == nil {
		return zero, nil
	}

	instance := reflect.New(desc.GoType)
	if err := codec.Populate(instance, desc, out.Item, c.hooks); err != nil {
		return zero, err
	}
	return instance.Elem().Interface().(T), nil
}

// GetItems retrieves multiple items via BatchGetItem, chunking into
// batches of up to 100 keys and re-submitting UnprocessedKeys with
// exponential backoff until empty (spec §4.4 getItems).
func GetItems[T any](ctx context.Context, c *Client, keys []Key) ([]T, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return nil, err
	}

	const batchSize = 100
	var results []T
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		items, err := getBatch[T](ctx, c, desc, keys[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, items...)
	}
	return results, nil
}

func getBatch[T any](ctx context.Context, c *Client, desc *schema.TableDescriptor, keys []Key) ([]T, error) {
	keyMaps := make([]map[string]ddbtypes.AttributeValue, 0, len(keys))
	for _, k := range keys {
		km, err := buildKey(desc, k.Hash, k.Range, c.hooks)
		if err != nil {
			return nil, err
		}
		keyMaps = append(keyMaps, km)
	}

	requestItems := map[string]ddbtypes.KeysAndAttributes{
		desc.Name: {
			Keys:           keyMaps,
			ConsistentRead: &c.cfg.ConsistentRead,
		},
	}

	var results []T
	attempt := 0
	for {
		var out *dynamodb.BatchGetItemOutput
		err := c.exec(ctx, desc.Name, nil, func() error {
			var innerErr error
			out, innerErr = c.ddb.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: requestItems})
			return innerErr
		})
		if err != nil {
			return nil, err
		}

		for _, item := range out.Responses[desc.Name] {
			instance := reflect.New(desc.GoType)
			if err := codec.Populate(instance, desc, item, c.hooks); err != nil {
				return nil, err
			}
			results = append(results, instance.Elem().Interface().(T))
		}

		if len(out.UnprocessedKeys) == 0 {
			return results, nil
		}
		requestItems = out.UnprocessedKeys

		wait := c.cfg.Backoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetRelated issues a Query for every item sharing parentHash, returning
// a lazy sequence (spec §4.4 getRelated). It requires the table to have
// a range key, the same requirement PutRelated stamps its children
// against.
func GetRelated[T any](ctx context.Context, c *Client, parentHash any) (*Iterator[T], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return nil, err
	}
	if desc.RangeKey == nil {
		return nil, &schema.SchemaError{Type: desc.GoType, Msg: "GetRelated requires the table to have a range key"}
	}
	keyExpr, err := predicate.CompileKeyCondition(predicate.Eq(desc.HashKey.Name, parentHash))
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 &desc.Name,
		KeyConditionExpression:    &keyExpr.Expression,
		ExpressionAttributeNames:  keyExpr.Names,
		ExpressionAttributeValues: keyExpr.Values,
		ConsistentRead:            &c.cfg.ConsistentRead,
		Limit:                     int32Ptr(c.cfg.PagingLimit),
	}
	return newIterator[T](c, desc, queryPageFetcher(c, desc.Name, input)), nil
}
