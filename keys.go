package pocodynamo

import (
	"fmt"
	"reflect"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/codec"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// Key identifies one item by its primary key, for the batch APIs
// (GetItems, DeleteItems) where a bare hash-only convenience wouldn't
// cover composite keys.
type Key struct {
	Hash  any
	Range any
}

func encodeKeyField(fd schema.FieldDescriptor, val any, hooks codec.Hooks) (ddbtypes.AttributeValue, error) {
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return nil, fmt.Errorf("key field %q: nil value", fd.Name)
	}
	if rv.Type() != fd.Type {
		if !rv.Type().ConvertibleTo(fd.Type) {
			return nil, fmt.Errorf("key field %q: cannot use %s as %s", fd.Name, rv.Type(), fd.Type)
		}
		rv = rv.Convert(fd.Type)
	}
	return codec.ToAttributeValue(rv, fd.Type, fd.DBType, hooks)
}

// buildKey encodes a hash (and optional range) value into the primary
// key map GetItem/DeleteItem/UpdateItem send on the wire.
func buildKey(desc *schema.TableDescriptor, hash any, rangeVal any, hooks codec.Hooks) (map[string]ddbtypes.AttributeValue, error) {
	key := make(map[string]ddbtypes.AttributeValue, 2)
	hv, err := encodeKeyField(desc.HashKey, hash, hooks)
	if err != nil {
		return nil, err
	}
	key[desc.HashKey.Name] = hv

	if desc.RangeKey != nil {
		if rangeVal == nil {
			return nil, &schema.SchemaError{Type: desc.GoType, Msg: fmt.Sprintf("table %q has a range key %q but none was given", desc.Name, desc.RangeKey.Name)}
		}
		rv, err := encodeKeyField(*desc.RangeKey, rangeVal, hooks)
		if err != nil {
			return nil, err
		}
		key[desc.RangeKey.Name] = rv
	} else if rangeVal != nil {
		return nil, &schema.SchemaError{Type: desc.GoType, Msg: fmt.Sprintf("table %q has no range key, but a range value was given", desc.Name)}
	}
	return key, nil
}

// singleRange extracts an optional variadic range-key argument, per
// spec §4.4's getItem(hash[, range]) shape.
func singleRange(rangeKey []any) (any, error) {
	switch len(rangeKey) {
	case 0:
		return nil, nil
	case 1:
		return rangeKey[0], nil
	default:
		return nil, fmt.Errorf("pocodynamo: at most one range key value may be given, got %d", len(rangeKey))
	}
}
