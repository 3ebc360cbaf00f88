package pocodynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DeleteItem deletes a single item by primary key. Deleting an item that
// doesn't exist is not an error (spec §7).
func DeleteItem[T any](ctx context.Context, c *Client, hash any, rangeKey ...any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	rng, err := singleRange(rangeKey)
	if err != nil {
		return err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}
	key, err := buildKey(desc, hash, rng, c.hooks)
	if err != nil {
		return err
	}
	return c.exec(ctx, desc.Name, nil, func() error {
		_, err := c.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &desc.Name,
			Key:       key,
		})
		return err
	})
}

// DeleteItems deletes multiple items via BatchWriteItem, chunking into
// batches of up to 25 and re-submitting UnprocessedItems the same way
// PutItems does (spec §4.4 deleteItems: "same batching rules as put").
func DeleteItems[T any](ctx context.Context, c *Client, keys []Key) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return err
	}

	const batchSize = 25
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		reqs := make([]ddbtypes.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			km, err := buildKey(desc, k.Hash, k.Range, c.hooks)
			if err != nil {
				return err
			}
			reqs = append(reqs, ddbtypes.WriteRequest{DeleteRequest: &ddbtypes.DeleteRequest{Key: km}})
		}
		if err := writeBatch(ctx, c, desc.Name, reqs); err != nil {
			return err
		}
	}
	return nil
}
