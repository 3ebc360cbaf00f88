package codec

import (
	"reflect"
	"testing"
	"time"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/schema"
)

type codecRecord struct {
	Id      string
	Age     int
	Score   float64
	Active  bool
	Tags    []string
	Weights map[string]int
	Created time.Time
	Raw     []byte
}

func fieldDescFor(t reflect.Type, name string) schema.FieldDescriptor {
	f, _ := t.FieldByName(name)
	return schema.FieldDescriptor{
		Name:   f.Name,
		GoName: f.Name,
		Index:  f.Index,
		Type:   f.Type,
		DBType: schema.InferDBType(f.Type),
	}
}

func TestToAttributeValue_Scalars(t *testing.T) {
	rt := reflect.TypeOf(codecRecord{})

	av, err := ToAttributeValue(reflect.ValueOf("hello"), rt.Field(0).Type, schema.String, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "hello", av.(*ddbtypes.AttributeValueMemberS).Value)

	av, err = ToAttributeValue(reflect.ValueOf(42), rt.Field(1).Type, schema.Number, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "42", av.(*ddbtypes.AttributeValueMemberN).Value)

	av, err = ToAttributeValue(reflect.ValueOf(true), rt.Field(3).Type, schema.Bool, Hooks{})
	require.NoError(t, err)
	assert.True(t, av.(*ddbtypes.AttributeValueMemberBOOL).Value)
}

func TestToAttributeValue_NilPointerEncodesNull(t *testing.T) {
	var p *string
	av, err := ToAttributeValue(reflect.ValueOf(p), reflect.TypeOf(p), schema.String, Hooks{})
	require.NoError(t, err)
	null, ok := av.(*ddbtypes.AttributeValueMemberNULL)
	require.True(t, ok)
	assert.True(t, null.Value)
}

func TestToAttributeValue_Time(t *testing.T) {
	now := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	av, err := ToAttributeValue(reflect.ValueOf(now), reflect.TypeOf(now), schema.String, Hooks{})
	require.NoError(t, err)
	s, ok := av.(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, now.Format(time.RFC3339Nano), s.Value)
}

func TestEncodeItem_RoundTrip(t *testing.T) {
	rt := reflect.TypeOf(codecRecord{})
	table := &schema.TableDescriptor{
		GoType: rt,
		Fields: []schema.FieldDescriptor{
			fieldDescFor(rt, "Id"),
			fieldDescFor(rt, "Age"),
			fieldDescFor(rt, "Score"),
			fieldDescFor(rt, "Active"),
			fieldDescFor(rt, "Tags"),
			fieldDescFor(rt, "Weights"),
			fieldDescFor(rt, "Created"),
			fieldDescFor(rt, "Raw"),
		},
	}
	original := codecRecord{
		Id:      "abc",
		Age:     30,
		Score:   3.5,
		Active:  true,
		Tags:    []string{"a", "b"},
		Weights: map[string]int{"x": 1, "y": 2},
		Created: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		Raw:     []byte{1, 2, 3},
	}

	item, err := EncodeItem(reflect.ValueOf(original), table, Hooks{})
	require.NoError(t, err)

	var decoded codecRecord
	err = Populate(reflect.ValueOf(&decoded), table, item, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestPopulate_UnknownAttributesIgnored(t *testing.T) {
	rt := reflect.TypeOf(codecRecord{})
	table := &schema.TableDescriptor{
		GoType: rt,
		Fields: []schema.FieldDescriptor{fieldDescFor(rt, "Id")},
	}
	item := map[string]ddbtypes.AttributeValue{
		"Id":      &ddbtypes.AttributeValueMemberS{Value: "known"},
		"Unknown": &ddbtypes.AttributeValueMemberS{Value: "ignored"},
	}
	var decoded codecRecord
	err := Populate(reflect.ValueOf(&decoded), table, item, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "known", decoded.Id)
}

func TestPopulate_MissingAttributeLeavesExistingValue(t *testing.T) {
	rt := reflect.TypeOf(codecRecord{})
	table := &schema.TableDescriptor{
		GoType: rt,
		Fields: []schema.FieldDescriptor{fieldDescFor(rt, "Id"), fieldDescFor(rt, "Age")},
	}
	item := map[string]ddbtypes.AttributeValue{
		"Id": &ddbtypes.AttributeValueMemberS{Value: "only-id"},
	}
	decoded := codecRecord{Age: 99}
	err := Populate(reflect.ValueOf(&decoded), table, item, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "only-id", decoded.Id)
	assert.Equal(t, 99, decoded.Age, "absent attribute must not touch the existing field value")
}

func TestFromAttributeValue_NullDecodesToZeroValue(t *testing.T) {
	v, err := FromAttributeValue(&ddbtypes.AttributeValueMemberNULL{Value: true}, reflect.TypeOf(0), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Interface())
}

func TestHooks_EncodeOverride(t *testing.T) {
	hooks := Hooks{
		Encode: func(v reflect.Value, dbType schema.DBType) (ddbtypes.AttributeValue, bool, error) {
			if dbType == schema.String && v.Kind() == reflect.String && v.String() == "redact-me" {
				return &ddbtypes.AttributeValueMemberS{Value: "***"}, true, nil
			}
			return nil, false, nil
		},
	}
	av, err := ToAttributeValue(reflect.ValueOf("redact-me"), reflect.TypeOf(""), schema.String, hooks)
	require.NoError(t, err)
	assert.Equal(t, "***", av.(*ddbtypes.AttributeValueMemberS).Value)

	av, err = ToAttributeValue(reflect.ValueOf("normal"), reflect.TypeOf(""), schema.String, hooks)
	require.NoError(t, err)
	assert.Equal(t, "normal", av.(*ddbtypes.AttributeValueMemberS).Value, "hook returning ok=false falls through to default behavior")
}

func TestResolveDBType_HookOverride(t *testing.T) {
	hooks := Hooks{
		DBType: func(t reflect.Type) (schema.DBType, bool) {
			if t.Kind() == reflect.Int {
				return schema.String, true
			}
			return "", false
		},
	}
	assert.Equal(t, schema.String, ResolveDBType(reflect.TypeOf(0), hooks))
	assert.Equal(t, schema.String, ResolveDBType(reflect.TypeOf(""), hooks))
}
