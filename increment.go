package pocodynamo

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/predicate"
)

// Increment applies an UpdateItem ADD action to a number attribute and
// returns its new value, 0 if the attribute is absent after the update
// (spec §4.4 increment). It's the primitive seq.Source builds
// autoincrement semantics on top of.
func Increment[T any](ctx context.Context, c *Client, hash any, field string, delta int64) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	desc, err := descriptorFor[T]()
	if err != nil {
		return 0, err
	}
	key, err := buildKey(desc, hash, nil, c.hooks)
	if err != nil {
		return 0, err
	}
	compiled, err := predicate.CompileUpdateAdd(field, delta)
	if err != nil {
		return 0, err
	}

	var out *dynamodb.UpdateItemOutput
	err = c.exec(ctx, desc.Name, nil, func() error {
		var innerErr error
		out, innerErr = c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &desc.Name,
			Key:                       key,
			UpdateExpression:          &compiled.Expression,
			ExpressionAttributeNames:  compiled.Names,
			ExpressionAttributeValues: compiled.Values,
			ReturnValues:              ddbtypes.ReturnValueUpdatedNew,
		})
		return innerErr
	})
	if err != nil {
		return 0, err
	}

	fd, ok := desc.Field(field)
	wireName := field
	if ok {
		wireName = fd.Name
	}
	nAttr, ok := out.Attributes[wireName]
	if !ok {
		return 0, nil
	}
	nMember, ok := nAttr.(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(nMember.Value, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}
