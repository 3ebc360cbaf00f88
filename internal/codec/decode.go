package codec

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// Populate decodes attrMap into instance by iterating table.Fields, not the
// incoming map — unknown wire attributes are ignored and a missing
// attribute leaves the field's existing value in place (spec §4.2).
func Populate(instance reflect.Value, table *schema.TableDescriptor, attrMap map[string]ddbtypes.AttributeValue, hooks Hooks) error {
	for instance.Kind() == reflect.Ptr {
		instance = instance.Elem()
	}
	for _, f := range table.Fields {
		av, ok := attrMap[f.Name]
		if !ok {
			continue
		}
		v, err := FromAttributeValue(av, f.Type, hooks)
		if err != nil {
			return &EncodingError{Field: f.Name, Msg: err.Error(), Err: err}
		}
		f.Set(instance, v)
	}
	return nil
}

// FromAttributeValue decodes a single wire attribute into targetType per
// spec §4.2: pick the populated variant, convert via a uniform
// value-conversion function, NULL maps to the language zero value.
func FromAttributeValue(av ddbtypes.AttributeValue, targetType reflect.Type, hooks Hooks) (reflect.Value, error) {
	if hooks.Decode != nil {
		if v, ok, err := hooks.Decode(av, targetType); ok {
			return v, err
		}
	}

	if _, isNull := av.(*ddbtypes.AttributeValueMemberNULL); isNull || av == nil {
		return reflect.Zero(targetType), nil
	}

	baseType := targetType
	ptrDepth := 0
	for baseType.Kind() == reflect.Ptr {
		baseType = baseType.Elem()
		ptrDepth++
	}

	v, err := decodeInto(av, baseType, hooks)
	if err != nil {
		return reflect.Value{}, err
	}
	for i := 0; i < ptrDepth; i++ {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		v = p
	}
	return v, nil
}

func decodeInto(av ddbtypes.AttributeValue, t reflect.Type, hooks Hooks) (reflect.Value, error) {
	switch a := av.(type) {
	case *ddbtypes.AttributeValueMemberBOOL:
		return convert(a.Value, t, hooks)
	case *ddbtypes.AttributeValueMemberN:
		return decodeNumber(a.Value, t, hooks)
	case *ddbtypes.AttributeValueMemberS:
		if t == timeType {
			ts, err := time.Parse(time.RFC3339Nano, a.Value)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("parse time %q: %w", a.Value, err)
			}
			return reflect.ValueOf(ts), nil
		}
		if t.Kind() == reflect.String {
			return convert(a.Value, t, hooks)
		}
		// value-serialized fallback: field metadata (a non-string Go type
		// paired with an S attribute) is what identifies this format, not
		// sniffing the string contents.
		return decodeValueSerialized(a.Value, t)
	case *ddbtypes.AttributeValueMemberB:
		return convert(append([]byte(nil), a.Value...), t, hooks)
	case *ddbtypes.AttributeValueMemberSS:
		return decodeSlice(t, len(a.Value), func(i int) (reflect.Value, error) {
			return convert(a.Value[i], t.Elem(), hooks)
		})
	case *ddbtypes.AttributeValueMemberNS:
		return decodeSlice(t, len(a.Value), func(i int) (reflect.Value, error) {
			return decodeNumber(a.Value[i], t.Elem(), hooks)
		})
	case *ddbtypes.AttributeValueMemberBS:
		return decodeSlice(t, len(a.Value), func(i int) (reflect.Value, error) {
			return convert(append([]byte(nil), a.Value[i]...), t.Elem(), hooks)
		})
	case *ddbtypes.AttributeValueMemberL:
		return decodeList(a.Value, t, hooks)
	case *ddbtypes.AttributeValueMemberM:
		return decodeMap(a.Value, t, hooks)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func decodeNumber(s string, t reflect.Type, hooks Hooks) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse number %q: %w", s, err)
		}
		v := reflect.New(t).Elem()
		v.SetInt(n)
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse number %q: %w", s, err)
		}
		v := reflect.New(t).Elem()
		v.SetUint(n)
		return v, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse number %q: %w", s, err)
		}
		v := reflect.New(t).Elem()
		v.SetFloat(f)
		return v, nil
	default:
		return convert(s, t, hooks)
	}
}

func decodeSlice(t reflect.Type, n int, elem func(i int) (reflect.Value, error)) (reflect.Value, error) {
	if t.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("cannot decode a set into %s", t.Kind())
	}
	out := reflect.MakeSlice(t, n, n)
	for i := 0; i < n; i++ {
		v, err := elem(i)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("set element %d: %w", i, err)
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func decodeList(items []ddbtypes.AttributeValue, t reflect.Type, hooks Hooks) (reflect.Value, error) {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("cannot decode a list into %s", t.Kind())
	}
	elemType := t.Elem()
	out := reflect.MakeSlice(reflect.SliceOf(elemType), len(items), len(items))
	for i, av := range items {
		v, err := FromAttributeValue(av, elemType, hooks)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("list element %d: %w", i, err)
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func decodeMap(m map[string]ddbtypes.AttributeValue, t reflect.Type, hooks Hooks) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Map:
		out := reflect.MakeMapWithSize(t, len(m))
		for k, av := range m {
			v, err := FromAttributeValue(av, t.Elem(), hooks)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("map key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), v)
		}
		return out, nil
	case reflect.Struct:
		out := reflect.New(t)
		if err := attributevalue.UnmarshalMap(m, out.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("unmarshal nested struct: %w", err)
		}
		return out.Elem(), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot decode a map into %s", t.Kind())
	}
}

func convert(val any, target reflect.Type, hooks Hooks) (reflect.Value, error) {
	if hooks.ConvertValue != nil {
		if out, ok, err := hooks.ConvertValue(val, target); ok {
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(out).Convert(target), nil
		}
	}
	rv := reflect.ValueOf(val)
	if !rv.Type().ConvertibleTo(target) {
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", rv.Type(), target)
	}
	return rv.Convert(target), nil
}
