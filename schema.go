package pocodynamo

import (
	"reflect"

	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// RegisterOption configures registration overrides for Register/MustRegister,
// mirroring internal/schema.Options (spec §4.1 resolution order #1).
type RegisterOption func(*schema.Options)

func WithHashField(goFieldName string) RegisterOption {
	return func(o *schema.Options) { o.HashField = goFieldName }
}

func WithRangeField(goFieldName string) RegisterOption {
	return func(o *schema.Options) { o.RangeField = goFieldName }
}

func WithTableReadCapacity(units int64) RegisterOption {
	return func(o *schema.Options) { o.ReadCapacity = units }
}

func WithTableWriteCapacity(units int64) RegisterOption {
	return func(o *schema.Options) { o.WriteCapacity = units }
}

func WithGlobalIndex(opt schema.GlobalIndexOption) RegisterOption {
	return func(o *schema.Options) { o.GlobalIndexes = append(o.GlobalIndexes, opt) }
}

func WithLocalIndex(opt schema.LocalIndexOption) RegisterOption {
	return func(o *schema.Options) { o.LocalIndexes = append(o.LocalIndexes, opt) }
}

// Table is a typed handle onto a registered record type's table
// descriptor. Register returns one; most callers never need to touch it
// directly since the package-level Get/Put/Delete/Query/Scan functions
// resolve the descriptor for T themselves.
type Table[T any] struct {
	desc *schema.TableDescriptor
}

func (t *Table[T]) Name() string { return t.desc.Name }

// Register derives a TableDescriptor for T from its reflected shape and
// `ddb:"..."` tags (spec §4.1) and caches it in the process-wide
// registry. Registering the same type twice returns the existing
// descriptor unchanged.
func Register[T any](tableName string, opts ...RegisterOption) (*Table[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	var so schema.Options
	for _, opt := range opts {
		opt(&so)
	}
	desc, err := schema.Register(t, tableName, so)
	if err != nil {
		return nil, err
	}
	return &Table[T]{desc: desc}, nil
}

// MustRegister is Register but panics on error, for use in package-level
// var initializers at application startup.
func MustRegister[T any](tableName string, opts ...RegisterOption) *Table[T] {
	tbl, err := Register[T](tableName, opts...)
	if err != nil {
		panic(err)
	}
	return tbl
}

// descriptorFor resolves the cached TableDescriptor for T, failing with a
// SchemaError if T was never registered.
func descriptorFor[T any]() (*schema.TableDescriptor, error) {
	var zero T
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	desc, ok := schema.Lookup(t)
	if !ok {
		return nil, &schema.SchemaError{Type: t, Msg: "type not registered, call pocodynamo.Register first"}
	}
	return desc, nil
}

// tableNameFor returns the physical table name an instance should be
// stored under: the TableNamer override if the type implements it,
// otherwise the descriptor's registered name (§3 SUPPLEMENTED FEATURES).
func tableNameFor(desc *schema.TableDescriptor, instance any) string {
	if namer, ok := instance.(TableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return desc.Name
}
