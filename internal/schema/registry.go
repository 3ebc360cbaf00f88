package schema

import (
	"fmt"
	"reflect"
	"sync"
)

// SchemaError reports a problem with a type's registration or its use as a
// query/index target — unregistered type, missing key, empty field set,
// unresolvable index, etc. (spec §7).
type SchemaError struct {
	Type reflect.Type
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("pocodynamo: schema error for %s: %s", e.Type, e.Msg)
	}
	return "pocodynamo: schema error: " + e.Msg
}

func newSchemaError(t reflect.Type, format string, args ...any) *SchemaError {
	return &SchemaError{Type: t, Msg: fmt.Sprintf(format, args...)}
}

// Options configures registration overrides — the "explicit composite-index
// annotation at type level" from spec §4.1 resolution order #1, expressed
// here as functional options since Go has no type-level struct tags.
type Options struct {
	TableName     string
	HashField     string // Go field name
	RangeField    string // Go field name
	ReadCapacity  int64
	WriteCapacity int64
	GlobalIndexes []GlobalIndexOption
	LocalIndexes  []LocalIndexOption
}

// GlobalIndexOption declares a global secondary index explicitly, as an
// alternative to per-field `ddb:"gsi=..."` tags.
type GlobalIndexOption struct {
	Name            string
	HashField       string
	RangeField      string
	ProjectionType  ProjectionType
	ProjectedFields []string
	ReadCapacity    int64
	WriteCapacity   int64
}

// LocalIndexOption declares a local secondary index explicitly.
type LocalIndexOption struct {
	Name            string
	RangeField      string
	ProjectionType  ProjectionType
	ProjectedFields []string
}

var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type]*TableDescriptor{}

	companionMu sync.RWMutex
	companions  = map[reflect.Type]*TableDescriptor{}
)

// Lookup returns the descriptor for a previously registered type.
func Lookup(t reflect.Type) (*TableDescriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[t]
	return d, ok
}

// All returns every table descriptor registered so far, for schema
// initialization (spec §4.4 initSchema iterates "every missing table
// discovered in the registry").
func All() []*TableDescriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*TableDescriptor, 0, len(registry))
	seen := map[string]bool{}
	for _, d := range registry {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}

// Register builds and caches the TableDescriptor for t, a struct type. On
// duplicate registration the existing descriptor is returned unchanged
// (spec §4.1).
func Register(t reflect.Type, tableName string, opts Options) (*TableDescriptor, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if d, ok := registry[t]; ok {
		return d, nil
	}

	desc, err := buildDescriptor(t, tableName, opts)
	if err != nil {
		return nil, err
	}
	registry[t] = desc
	return desc, nil
}

// RegisterCompanion builds the descriptor for a companion index type — the
// IdxT type parameter FromQueryIndex/FromScanIndex use purely to read off
// an index's hash field — without adding it to the registry All() walks.
// A companion type describes an index's key shape, not a real table, and
// must never flow into initSchema's createMissing or DescribeYAML.
func RegisterCompanion(t reflect.Type) (*TableDescriptor, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}

	companionMu.Lock()
	defer companionMu.Unlock()
	if d, ok := companions[t]; ok {
		return d, nil
	}

	desc, err := buildDescriptor(t, t.Name(), Options{})
	if err != nil {
		return nil, err
	}
	companions[t] = desc
	return desc, nil
}

// LookupCompanion returns a previously built companion descriptor.
func LookupCompanion(t reflect.Type) (*TableDescriptor, bool) {
	companionMu.RLock()
	defer companionMu.RUnlock()
	d, ok := companions[t]
	return d, ok
}

func structType(t reflect.Type) (reflect.Type, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newSchemaError(t, "registered type must be a struct, got %s", t.Kind())
	}
	return t, nil
}

// buildDescriptor does the actual field/key/index resolution shared by
// Register and RegisterCompanion. Callers hold whichever cache's lock and
// insert the result themselves.
func buildDescriptor(t reflect.Type, tableName string, opts Options) (*TableDescriptor, error) {
	if opts.TableName != "" {
		tableName = opts.TableName
	}

	fields, ttlField, err := collectFields(t)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, newSchemaError(t, "type has zero serializable fields")
	}

	fieldsByName := make(map[string]FieldDescriptor, len(fields))
	fieldsByGo := make(map[string]FieldDescriptor, len(fields))
	for _, f := range fields {
		if _, dup := fieldsByName[f.Name]; dup {
			return nil, newSchemaError(t, "duplicate wire field name %q", f.Name)
		}
		fieldsByName[f.Name] = f
		fieldsByGo[f.GoName] = f
	}

	hash, rng, err := resolveKeys(t, fields, opts)
	if err != nil {
		return nil, err
	}

	locals, globals, err := resolveIndexes(t, fields, fieldsByGo, opts)
	if err != nil {
		return nil, err
	}

	readCap, writeCap := opts.ReadCapacity, opts.WriteCapacity
	if readCap == 0 {
		readCap = 10
	}
	if writeCap == 0 {
		writeCap = 5
	}

	return &TableDescriptor{
		Name:          tableName,
		GoType:        t,
		HashKey:       hash,
		RangeKey:      rng,
		Fields:        fields,
		FieldsByName:  fieldsByName,
		FieldsByGo:    fieldsByGo,
		LocalIndexes:  locals,
		GlobalIndexes: globals,
		ReadCapacity:  readCap,
		WriteCapacity: writeCap,
		TTLField:      ttlField,
	}, nil
}

// Reset clears the process-wide registry and companion cache. Test-only
// escape hatch.
func Reset() {
	registryMu.Lock()
	registry = map[reflect.Type]*TableDescriptor{}
	registryMu.Unlock()

	companionMu.Lock()
	companions = map[reflect.Type]*TableDescriptor{}
	companionMu.Unlock()
}

func collectFields(t reflect.Type) ([]FieldDescriptor, string, error) {
	var fields []FieldDescriptor
	var ttlField string
	err := walkFields(t, nil, func(f reflect.StructField, index []int, ddb parsedTag) error {
		if ddb.skip {
			return nil
		}
		name := fieldWireName(f, ddb)
		fields = append(fields, FieldDescriptor{
			Name:   name,
			GoName: f.Name,
			Index:  append([]int(nil), index...),
			Type:   f.Type,
			DBType: inferDBType(f.Type),
		})
		if ddb.isTTL {
			ttlField = name
		}
		return nil
	})
	return fields, ttlField, err
}

// walkFields visits every exported field of t, including fields promoted
// from anonymous embedded structs at any depth, matching the promotion behavior
// attributevalue.Marshal itself relies on.
func walkFields(t reflect.Type, prefix []int, visit func(reflect.StructField, []int, parsedTag) error) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		idx := append(append([]int(nil), prefix...), i)
		ddb := parseDDBTag(f.Tag.Get("ddb"))
		if f.Anonymous && f.Type.Kind() == reflect.Struct && !ddb.skip {
			if err := walkFields(f.Type, idx, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(f, idx, ddb); err != nil {
			return err
		}
	}
	return nil
}

// resolveKeys implements the hash/range selection order from spec §4.1.
func resolveKeys(t reflect.Type, fields []FieldDescriptor, opts Options) (FieldDescriptor, *FieldDescriptor, error) {
	byGo := map[string]FieldDescriptor{}
	for _, f := range fields {
		byGo[f.GoName] = f
	}

	var hash *FieldDescriptor
	var rng *FieldDescriptor

	// #1: explicit composite-index annotation (functional-option override).
	if opts.HashField != "" {
		f, ok := byGo[opts.HashField]
		if !ok {
			return FieldDescriptor{}, nil, newSchemaError(t, "explicit hash field %q not found", opts.HashField)
		}
		hash = &f
	}
	if opts.RangeField != "" {
		f, ok := byGo[opts.RangeField]
		if !ok {
			return FieldDescriptor{}, nil, newSchemaError(t, "explicit range field %q not found", opts.RangeField)
		}
		rng = &f
	}

	// #2: field-level ddb:"hash" / ddb:"range" tags.
	if hash == nil {
		if err := walkFields(t, nil, func(f reflect.StructField, index []int, ddb parsedTag) error {
			if hash != nil || ddb.skip || !ddb.isHash {
				return nil
			}
			fd := byGo[f.Name]
			hash = &fd
			return nil
		}); err != nil {
			return FieldDescriptor{}, nil, err
		}
	}
	if rng == nil {
		if err := walkFields(t, nil, func(f reflect.StructField, index []int, ddb parsedTag) error {
			if rng != nil || ddb.skip || !ddb.isRange {
				return nil
			}
			fd := byGo[f.Name]
			rng = &fd
			return nil
		}); err != nil {
			return FieldDescriptor{}, nil, err
		}
	}

	// #3: field named case-insensitively `Id` or `<TypeName>Id`.
	if hash == nil {
		for _, f := range fields {
			if isIDField(f.GoName, t.Name()) {
				cp := f
				hash = &cp
				break
			}
		}
	}
	// range fallback: field named `RangeKey`.
	if rng == nil {
		for _, f := range fields {
			if isRangeKeyField(f.GoName) {
				cp := f
				rng = &cp
				break
			}
		}
	}

	// #4: first field in declaration order.
	if hash == nil {
		if len(fields) == 0 {
			return FieldDescriptor{}, nil, newSchemaError(t, "no fields to select a hash key from")
		}
		hash = &fields[0]
	}

	if rng != nil && rng.Name == hash.Name {
		return FieldDescriptor{}, nil, newSchemaError(t, "hash and range key resolved to the same field %q", hash.Name)
	}

	return *hash, rng, nil
}

func resolveIndexes(t reflect.Type, fields []FieldDescriptor, byGo map[string]FieldDescriptor, opts Options) (map[string]IndexDescriptor, map[string]IndexDescriptor, error) {
	locals := map[string]IndexDescriptor{}
	globals := map[string]IndexDescriptor{}

	// Explicit options first.
	for _, g := range opts.GlobalIndexes {
		hashF, ok := byGo[g.HashField]
		if !ok {
			return nil, nil, newSchemaError(t, "global index %q hash field %q not found", g.Name, g.HashField)
		}
		idx := IndexDescriptor{
			Name:            g.Name,
			HashKey:         hashF.Name,
			Global:          true,
			ProjectionType:  g.ProjectionType,
			ProjectedFields: g.ProjectedFields,
			ReadCapacity:    g.ReadCapacity,
			WriteCapacity:   g.WriteCapacity,
		}
		if g.RangeField != "" {
			rngF, ok := byGo[g.RangeField]
			if !ok {
				return nil, nil, newSchemaError(t, "global index %q range field %q not found", g.Name, g.RangeField)
			}
			idx.RangeKey = rngF.Name
		}
		if idx.ProjectionType == "" {
			idx.ProjectionType = ProjectionAll
		}
		if idx.ReadCapacity == 0 {
			idx.ReadCapacity = 10
		}
		if idx.WriteCapacity == 0 {
			idx.WriteCapacity = 5
		}
		globals[idx.Name] = idx
	}
	for _, l := range opts.LocalIndexes {
		rngF, ok := byGo[l.RangeField]
		if !ok {
			return nil, nil, newSchemaError(t, "local index %q range field %q not found", l.Name, l.RangeField)
		}
		idx := IndexDescriptor{
			Name:            l.Name,
			RangeKey:        rngF.Name,
			ProjectionType:  l.ProjectionType,
			ProjectedFields: l.ProjectedFields,
		}
		if idx.ProjectionType == "" {
			idx.ProjectionType = ProjectionAll
		}
		locals[idx.Name] = idx
	}

	// Field-level ddb:"gsi=..."/ddb:"lsi=..." tags.
	type ref struct {
		name, role, field string
	}
	var gsiRefs, lsiRefs []ref
	err := walkFields(t, nil, func(f reflect.StructField, index []int, ddb parsedTag) error {
		if ddb.skip {
			return nil
		}
		for _, r := range ddb.gsiRefs {
			gsiRefs = append(gsiRefs, ref{r.name, r.role, f.Name})
		}
		for _, r := range ddb.lsiRefs {
			lsiRefs = append(lsiRefs, ref{r.name, r.role, f.Name})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for _, r := range gsiRefs {
		idx := globals[r.name]
		idx.Name = r.name
		idx.Global = true
		fd := byGo[r.field]
		switch r.role {
		case "hash":
			idx.HashKey = fd.Name
		case "range":
			idx.RangeKey = fd.Name
		default:
			return nil, nil, newSchemaError(t, "global index %q: unknown role %q", r.name, r.role)
		}
		if idx.ProjectionType == "" {
			idx.ProjectionType = ProjectionAll
		}
		if idx.ReadCapacity == 0 {
			idx.ReadCapacity = 10
		}
		if idx.WriteCapacity == 0 {
			idx.WriteCapacity = 5
		}
		globals[r.name] = idx
	}
	for _, r := range lsiRefs {
		idx := locals[r.name]
		idx.Name = r.name
		fd := byGo[r.field]
		switch r.role {
		case "range":
			idx.RangeKey = fd.Name
		case "hash":
			return nil, nil, newSchemaError(t, "local index %q shares the table hash key implicitly, it cannot declare its own", r.name)
		default:
			return nil, nil, newSchemaError(t, "local index %q: unknown role %q", r.name, r.role)
		}
		if idx.ProjectionType == "" {
			idx.ProjectionType = ProjectionAll
		}
		locals[r.name] = idx
	}

	// Validate: every index's hash/range must appear in fields (spec §3 invariant).
	fieldSet := map[string]bool{}
	for _, f := range fields {
		fieldSet[f.Name] = true
	}
	for name, idx := range globals {
		if idx.HashKey == "" || !fieldSet[idx.HashKey] {
			return nil, nil, newSchemaError(t, "global index %q hash key %q not present in fields", name, idx.HashKey)
		}
		if idx.RangeKey != "" && !fieldSet[idx.RangeKey] {
			return nil, nil, newSchemaError(t, "global index %q range key %q not present in fields", name, idx.RangeKey)
		}
	}
	for name, idx := range locals {
		if idx.RangeKey == "" || !fieldSet[idx.RangeKey] {
			return nil, nil, newSchemaError(t, "local index %q range key %q not present in fields", name, idx.RangeKey)
		}
	}

	return locals, globals, nil
}
