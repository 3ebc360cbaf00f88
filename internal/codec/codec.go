// Package codec translates between application values and DynamoDB's
// AttributeValue discriminated union (spec §4.2).
package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// EncodingError reports a value that could not be converted to its
// requested DBType, or an unsupported element type inside a collection
// (spec §7).
type EncodingError struct {
	Field string
	Msg   string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("pocodynamo: encoding error on field %q: %s", e.Field, e.Msg)
	}
	return "pocodynamo: encoding error: " + e.Msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

func encErr(field, format string, args ...any) *EncodingError {
	return &EncodingError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Hooks lets callers override field-name resolution, dbType resolution,
// encoding and decoding. A hook returning ok=false falls through to the
// default behavior (spec §4.2 "Pluggability").
type Hooks struct {
	FieldName    func(field schema.FieldDescriptor) (name string, ok bool)
	DBType       func(t reflect.Type) (dbType schema.DBType, ok bool)
	Encode       func(v reflect.Value, dbType schema.DBType) (av ddbtypes.AttributeValue, ok bool, err error)
	Decode       func(av ddbtypes.AttributeValue, target reflect.Type) (v reflect.Value, ok bool, err error)
	ConvertValue func(v any, target reflect.Type) (out any, ok bool, err error)
}

var timeType = reflect.TypeOf(time.Time{})

// EncodeItem converts a whole registered instance into a DynamoDB item map,
// iterating table.Fields (spec §4.2 Population note applies symmetrically
// to encoding: only known fields are ever written).
func EncodeItem(instance reflect.Value, table *schema.TableDescriptor, hooks Hooks) (map[string]ddbtypes.AttributeValue, error) {
	for instance.Kind() == reflect.Ptr {
		instance = instance.Elem()
	}
	item := make(map[string]ddbtypes.AttributeValue, len(table.Fields))
	for _, f := range table.Fields {
		fv := f.Get(instance)
		av, err := ToAttributeValue(fv, f.Type, f.DBType, hooks)
		if err != nil {
			return nil, &EncodingError{Field: f.Name, Msg: err.Error(), Err: err}
		}
		item[f.Name] = av
	}
	return item, nil
}

// ToAttributeValue encodes a single application value per spec §4.2.
func ToAttributeValue(v reflect.Value, fieldType reflect.Type, dbType schema.DBType, hooks Hooks) (ddbtypes.AttributeValue, error) {
	if hooks.Encode != nil {
		if av, ok, err := hooks.Encode(v, dbType); ok {
			return av, err
		}
	}

	if isNilValue(v) {
		return &ddbtypes.AttributeValueMemberNULL{Value: true}, nil
	}
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Type() == timeType {
		return &ddbtypes.AttributeValueMemberS{Value: v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)}, nil
	}

	switch dbType {
	case schema.Bool:
		return &ddbtypes.AttributeValueMemberBOOL{Value: v.Bool()}, nil
	case schema.Number:
		s, err := formatNumber(v)
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberN{Value: s}, nil
	case schema.String:
		if v.Kind() == reflect.String {
			return &ddbtypes.AttributeValueMemberS{Value: v.String()}, nil
		}
		text, err := encodeValueSerialized(v.Interface())
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberS{Value: text}, nil
	case schema.Binary:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberB{Value: b}, nil
	case schema.List:
		return encodeList(v, hooks)
	case schema.Map:
		return encodeMap(v, hooks)
	case schema.StringSet:
		ss, err := toStringSlice(v)
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberSS{Value: ss}, nil
	case schema.NumberSet:
		ns, err := toNumberStringSlice(v)
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberNS{Value: ns}, nil
	case schema.BinarySet:
		bs, err := toByteSlices(v)
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberBS{Value: bs}, nil
	default:
		return nil, fmt.Errorf("unsupported dbType %q", dbType)
	}
}

func encodeList(v reflect.Value, hooks Hooks) (ddbtypes.AttributeValue, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list-like value, got %s", v.Kind())
	}
	elems := make([]ddbtypes.AttributeValue, v.Len())
	for i := 0; i < v.Len(); i++ {
		ev := v.Index(i)
		elemType := ev.Type()
		dbType := ResolveDBType(elemType, hooks)
		av, err := ToAttributeValue(ev, elemType, dbType, hooks)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		elems[i] = av
	}
	return &ddbtypes.AttributeValueMemberL{Value: elems}, nil
}

func encodeMap(v reflect.Value, hooks Hooks) (ddbtypes.AttributeValue, error) {
	m := make(map[string]ddbtypes.AttributeValue)
	switch v.Kind() {
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface()) })
		for _, k := range keys {
			ev := v.MapIndex(k)
			dbType := ResolveDBType(ev.Type(), hooks)
			av, err := ToAttributeValue(ev, ev.Type(), dbType, hooks)
			if err != nil {
				return nil, fmt.Errorf("map key %v: %w", k.Interface(), err)
			}
			m[fmt.Sprint(k.Interface())] = av
		}
	case reflect.Struct:
		// Arbitrary nested structs go through the SDK's own marshaler
		// rather than a hand-rolled recursive reflection walk.
		av, err := attributevalue.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("marshal nested struct: %w", err)
		}
		mv, ok := av.(*ddbtypes.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("expected M attribute for nested struct, got %T", av)
		}
		return mv, nil
	default:
		return nil, fmt.Errorf("expected a map-like value, got %s", v.Kind())
	}
	return &ddbtypes.AttributeValueMemberM{Value: m}, nil
}

// ResolveDBType infers the DBType for an ad-hoc value (e.g. a list element)
// whose own field descriptor doesn't exist, honoring the DBType hook first.
func ResolveDBType(t reflect.Type, hooks Hooks) schema.DBType {
	if hooks.DBType != nil {
		if dt, ok := hooks.DBType(t); ok {
			return dt
		}
	}
	return schema.InferDBType(t)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	case reflect.Invalid:
		return true
	default:
		return false
	}
}

func formatNumber(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot encode %s as a number", v.Kind())
	}
}

func toBytes(v reflect.Value) ([]byte, error) {
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return v.Bytes(), nil
	}
	if v.Kind() == reflect.String {
		return []byte(v.String()), nil
	}
	return nil, fmt.Errorf("cannot encode %s as binary", v.Kind())
}

func toStringSlice(v reflect.Value) ([]string, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a slice for a string set, got %s", v.Kind())
	}
	out := make([]string, v.Len())
	for i := range out {
		ev := v.Index(i)
		if ev.Kind() != reflect.String {
			return nil, fmt.Errorf("string set element %d is %s, not string", i, ev.Kind())
		}
		out[i] = ev.String()
	}
	return out, nil
}

func toNumberStringSlice(v reflect.Value) ([]string, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a slice for a number set, got %s", v.Kind())
	}
	out := make([]string, v.Len())
	for i := range out {
		s, err := formatNumber(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("number set element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func toByteSlices(v reflect.Value) ([][]byte, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a slice for a binary set, got %s", v.Kind())
	}
	out := make([][]byte, v.Len())
	for i := range out {
		b, err := toBytes(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("binary set element %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
