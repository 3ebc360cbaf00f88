package schema

import (
	"reflect"
	"strings"
	"time"
)

// parsedTag is the decoded form of a `ddb:"..."` struct tag.
type parsedTag struct {
	skip     bool
	name     string
	isHash   bool
	isRange  bool
	isTTL    bool
	gsiRefs  []indexRef
	lsiRefs  []indexRef
}

type indexRef struct {
	name string
	role string // "hash" or "range"
}

// parseDDBTag decodes the `ddb:"..."` tag on a struct field. Grammar:
//
//	ddb:"-"                        skip the field entirely
//	ddb:"name=foo"                 explicit wire attribute name
//	ddb:"hash"                     field is the table's hash key
//	ddb:"range"                    field is the table's range key
//	ddb:"ttl"                      field is the item's TTL attribute
//	ddb:"gsi=ByDate:hash"          field is the hash key of global index ByDate
//	ddb:"gsi=ByDate:range"         field is the range key of global index ByDate
//	ddb:"lsi=ByTotal:range"        field is the range key of local index ByTotal
//
// Segments are comma-separated and may be combined, e.g. `ddb:"hash,name=id"`.
func parseDDBTag(tag string) parsedTag {
	var p parsedTag
	if tag == "-" {
		p.skip = true
		return p
	}
	for _, seg := range strings.Split(tag, ",") {
		seg = strings.TrimSpace(seg)
		switch {
		case seg == "":
			continue
		case seg == "hash":
			p.isHash = true
		case seg == "range":
			p.isRange = true
		case seg == "ttl":
			p.isTTL = true
		case strings.HasPrefix(seg, "name="):
			p.name = strings.TrimPrefix(seg, "name=")
		case strings.HasPrefix(seg, "gsi="):
			if ref, ok := parseIndexRef(strings.TrimPrefix(seg, "gsi=")); ok {
				p.gsiRefs = append(p.gsiRefs, ref)
			}
		case strings.HasPrefix(seg, "lsi="):
			if ref, ok := parseIndexRef(strings.TrimPrefix(seg, "lsi=")); ok {
				p.lsiRefs = append(p.lsiRefs, ref)
			}
		}
	}
	return p
}

func parseIndexRef(s string) (indexRef, bool) {
	name, role, ok := strings.Cut(s, ":")
	if !ok {
		role = "hash"
	}
	if name == "" {
		return indexRef{}, false
	}
	return indexRef{name: name, role: role}, true
}

// fieldWireName resolves a field's wire attribute name in the order spec'd
// in §4.1: explicit `ddb:"name=..."` beats a `dynamodbav` alias beats a
// `json` alias beats the declared Go field name. The dynamodbav-then-json
// fallback chain matches the teacher's own tag resolution
// (dynamodb/ddbgen/codegen/reflect.go's getTagName).
func fieldWireName(f reflect.StructField, ddb parsedTag) string {
	if ddb.name != "" {
		return ddb.name
	}
	if tag, ok := f.Tag.Lookup("dynamodbav"); ok {
		if name := tagName(tag); name != "" && name != "-" {
			return name
		}
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name := tagName(tag); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

var (
	timeType = reflect.TypeOf(time.Time{})
	byteType = reflect.TypeOf(byte(0))
)

// inferDBType determines a field's wire representation deterministically
// from its Go type, per spec §3: primitive scalars map to the matching
// scalar, time.Time to String, byte slices/arrays to Binary, other ordered
// collections to List, maps and structs to Map, and anything else falls
// back to the value-serialized string path. Set kinds are never inferred
// (Go has no native set type).
// InferDBType is the exported form of inferDBType, used by the codec when
// it needs to classify an ad-hoc value (e.g. a list element) that has no
// field descriptor of its own.
func InferDBType(t reflect.Type) DBType {
	return inferDBType(t)
}

func inferDBType(t reflect.Type) DBType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return String
	case t.Kind() == reflect.Bool:
		return Bool
	case isNumericKind(t.Kind()):
		return Number
	case t.Kind() == reflect.String:
		return String
	case t.Kind() == reflect.Slice && t.Elem() == byteType:
		return Binary
	case t.Kind() == reflect.Array && t.Elem() == byteType:
		return Binary
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		return List
	case t.Kind() == reflect.Map:
		return Map
	case t.Kind() == reflect.Struct:
		return Map
	default:
		return String // value-serialized fallback, still carried as a string attribute
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// isIDField reports whether name matches the case-insensitive `Id` or
// `<TypeName>Id` convention used as hash-key fallback #3 in spec §4.1.
func isIDField(fieldName, typeName string) bool {
	lower := strings.ToLower(fieldName)
	return lower == "id" || lower == strings.ToLower(typeName)+"id"
}

// isRangeKeyField matches the `RangeKey` fallback name from spec §4.1.
func isRangeKeyField(fieldName string) bool {
	return strings.EqualFold(fieldName, "RangeKey")
}
