package pocodynamo

import (
	"context"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/codec"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// pageFetcher issues one Query or Scan request with the given
// ExclusiveStartKey and returns the page's items and LastEvaluatedKey.
// QueryBuilder and ScanBuilder each build one of these closures once,
// capturing their compiled request state, so Iterator itself doesn't
// need to know which operation it's paging through.
type pageFetcher func(ctx context.Context, exclusiveStartKey map[string]ddbtypes.AttributeValue) (items []map[string]ddbtypes.AttributeValue, lastKey map[string]ddbtypes.AttributeValue, err error)

// Iterator is a lazy, pull-based sequence over Query/Scan results (spec
// §4.4, §9 "states: fresh -> in-page -> between-pages -> done"). It
// issues the next page request only once the current page is exhausted
// and the previous response carried a non-empty LastEvaluatedKey.
type Iterator[T any] struct {
	c     *Client
	desc  *schema.TableDescriptor
	fetch pageFetcher

	page      []map[string]ddbtypes.AttributeValue
	pos       int
	lastKey   map[string]ddbtypes.AttributeValue
	started   bool
	exhausted bool
}

func newIterator[T any](c *Client, desc *schema.TableDescriptor, fetch pageFetcher) *Iterator[T] {
	return &Iterator[T]{c: c, desc: desc, fetch: fetch}
}

// Next returns the next decoded item. ok is false once the iterator is
// done; err is non-nil only on a genuine failure fetching or decoding a
// page.
func (it *Iterator[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for {
		if it.pos < len(it.page) {
			av := it.page[it.pos]
			it.pos++
			instance := reflect.New(it.desc.GoType)
			if err := codec.Populate(instance, it.desc, av, it.c.hooks); err != nil {
				return item, false, err
			}
			return instance.Elem().Interface().(T), true, nil
		}
		if it.exhausted {
			return item, false, nil
		}

		startKey := it.lastKey
		if it.started && len(startKey) == 0 {
			it.exhausted = true
			return item, false, nil
		}
		it.started = true

		page, lastKey, err := it.fetch(ctx, startKey)
		if err != nil {
			return item, false, err
		}
		it.page = page
		it.pos = 0
		it.lastKey = lastKey
		if len(lastKey) == 0 {
			it.exhausted = true
		}
		if len(page) == 0 && it.exhausted {
			return item, false, nil
		}
	}
}

// All drains the iterator to completion, checking the context for
// cancellation before pulling each item.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		item, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}

// Limit drains at most n items, per spec §4.4's "bounded variant" of
// scan/query (the caller is responsible for setting the request's own
// page-size Limit if they want that to match; Limit here just stops
// consuming once n decoded items have been produced).
func (it *Iterator[T]) Limit(ctx context.Context, n int) ([]T, error) {
	out := make([]T, 0, n)
	for len(out) < n {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// queryPageFetcher builds the pageFetcher for a compiled query request,
// retrying transient errors through c.exec the same way single-item
// operations do.
func queryPageFetcher(c *Client, tableName string, base *dynamodb.QueryInput) pageFetcher {
	return func(ctx context.Context, startKey map[string]ddbtypes.AttributeValue) ([]map[string]ddbtypes.AttributeValue, map[string]ddbtypes.AttributeValue, error) {
		input := *base
		input.ExclusiveStartKey = startKey
		var out *dynamodb.QueryOutput
		err := c.exec(ctx, tableName, nil, func() error {
			var innerErr error
			out, innerErr = c.ddb.Query(ctx, &input)
			return innerErr
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}
}

func scanPageFetcher(c *Client, tableName string, base *dynamodb.ScanInput) pageFetcher {
	return func(ctx context.Context, startKey map[string]ddbtypes.AttributeValue) ([]map[string]ddbtypes.AttributeValue, map[string]ddbtypes.AttributeValue, error) {
		input := *base
		input.ExclusiveStartKey = startKey
		var out *dynamodb.ScanOutput
		err := c.exec(ctx, tableName, nil, func() error {
			var innerErr error
			out, innerErr = c.ddb.Scan(ctx, &input)
			return innerErr
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}
}
