// Package schema builds and holds the process-wide table descriptors that
// map a registered Go type onto a DynamoDB table.
package schema

import (
	"fmt"
	"reflect"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DBType is one of the wire-level attribute kinds a field can be stored as.
type DBType string

const (
	String    DBType = "S"
	Number    DBType = "N"
	Bool      DBType = "BOOL"
	Binary    DBType = "B"
	List      DBType = "L"
	Map       DBType = "M"
	StringSet DBType = "SS"
	NumberSet DBType = "NS"
	BinarySet DBType = "BS"
)

// ScalarAttributeType maps a key-eligible DBType to the SDK's key schema type.
func (d DBType) ScalarAttributeType() (ddbtypes.ScalarAttributeType, error) {
	switch d {
	case String:
		return ddbtypes.ScalarAttributeTypeS, nil
	case Number:
		return ddbtypes.ScalarAttributeTypeN, nil
	case Binary:
		return ddbtypes.ScalarAttributeTypeB, nil
	default:
		return "", fmt.Errorf("dbtype %q cannot be used as a key attribute", d)
	}
}

// FieldDescriptor describes one serialized attribute of a registered type.
type FieldDescriptor struct {
	// Name is the wire attribute name.
	Name string
	// GoName is the struct field name.
	GoName string
	// Index is the reflect.Value.FieldByIndex path to this field, including
	// through any embedded structs it was promoted from.
	Index []int
	// Type is the field's Go type.
	Type reflect.Type
	// DBType is the wire representation this field is encoded as.
	DBType DBType
}

// Get returns the field's reflect.Value on instance, which must be a struct
// (addressable if the field is to be Set).
func (f FieldDescriptor) Get(instance reflect.Value) reflect.Value {
	return instance.FieldByIndex(f.Index)
}

// Set assigns v into the field on instance, which must be addressable.
func (f FieldDescriptor) Set(instance reflect.Value, v reflect.Value) {
	instance.FieldByIndex(f.Index).Set(v)
}

// ProjectionType controls which attributes an index carries.
type ProjectionType string

const (
	ProjectionKeysOnly ProjectionType = "KEYS_ONLY"
	ProjectionInclude  ProjectionType = "INCLUDE"
	ProjectionAll      ProjectionType = "ALL"
)

// IndexDescriptor describes one local or global secondary index.
type IndexDescriptor struct {
	Name            string
	HashKey         string
	RangeKey        string
	Global          bool
	ProjectionType  ProjectionType
	ProjectedFields []string
	ReadCapacity    int64
	WriteCapacity   int64
}

// TableDescriptor is the immutable, process-wide schema derived from a
// registered Go type's reflected shape and ddb tags.
type TableDescriptor struct {
	Name          string
	GoType        reflect.Type
	HashKey       FieldDescriptor
	RangeKey      *FieldDescriptor
	Fields        []FieldDescriptor
	FieldsByName  map[string]FieldDescriptor
	FieldsByGo    map[string]FieldDescriptor
	LocalIndexes  map[string]IndexDescriptor
	GlobalIndexes map[string]IndexDescriptor
	ReadCapacity  int64
	WriteCapacity int64
	TTLField      string
}

// Field looks up a field descriptor by wire attribute name.
func (t *TableDescriptor) Field(name string) (FieldDescriptor, bool) {
	f, ok := t.FieldsByName[name]
	return f, ok
}

// FieldByGoName looks up a field descriptor by Go struct field name.
func (t *TableDescriptor) FieldByGoName(name string) (FieldDescriptor, bool) {
	f, ok := t.FieldsByGo[name]
	return f, ok
}

// Index looks up a local or global secondary index by name.
func (t *TableDescriptor) Index(name string) (IndexDescriptor, bool) {
	if idx, ok := t.LocalIndexes[name]; ok {
		return idx, true
	}
	idx, ok := t.GlobalIndexes[name]
	return idx, ok
}

// IndexOnField returns the single index (local or global) keyed on field, if
// there is exactly one. A local index has no hash key of its own — it shares
// the table's — so it matches on its range key; a global index matches on
// either. Used by the query builder's localIndex inference when no index
// name is given, and by FromQueryIndex/FromScanIndex's inference from a
// companion index type's declared hash field.
func (t *TableDescriptor) IndexOnField(field string) (IndexDescriptor, error) {
	var matches []IndexDescriptor
	for _, idx := range t.LocalIndexes {
		if idx.RangeKey == field {
			matches = append(matches, idx)
		}
	}
	for _, idx := range t.GlobalIndexes {
		if idx.HashKey == field || idx.RangeKey == field {
			matches = append(matches, idx)
		}
	}
	if len(matches) == 0 {
		return IndexDescriptor{}, fmt.Errorf("no index found keyed on %q", field)
	}
	if len(matches) > 1 {
		return IndexDescriptor{}, fmt.Errorf("ambiguous index selection: %d indexes are keyed on %q", len(matches), field)
	}
	return matches[0], nil
}
