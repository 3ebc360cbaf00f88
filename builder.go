package pocodynamo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pocodynamo/pocodynamo/internal/codec"
	"github.com/pocodynamo/pocodynamo/internal/predicate"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// QueryBuilder builds a Query request against T's table, fluently and
// clone-safely (spec §4.5). Zero value is not usable; construct with
// FromQuery or FromQueryIndex.
type QueryBuilder[T any] struct {
	c              *Client
	desc           *schema.TableDescriptor
	indexName      string
	global         bool
	keyCond        predicate.Predicate
	filterCond     predicate.Predicate
	selectFields   []string
	descending     bool
	pageLimit      int32
	consistentRead *bool
	err            error
}

// FromQuery seeds a query builder against T's base table. keyCond may be
// nil and supplied later via KeyCondition, but Exec fails without one.
func FromQuery[T any](c *Client, keyCond predicate.Predicate) *QueryBuilder[T] {
	desc, err := descriptorFor[T]()
	return &QueryBuilder[T]{c: c, desc: desc, keyCond: keyCond, pageLimit: c.cfg.PagingLimit, descending: !c.cfg.ScanIndexForward, err: err}
}

// FromQueryIndex infers the index to query from IdxT's own registered
// hash-key field (spec §4.5: "infer the index from the T type's index
// annotation"), and weakens the default consistent-read to best-effort
// since global secondary indexes don't support strongly consistent
// reads.
func FromQueryIndex[T, IdxT any](c *Client, keyCond predicate.Predicate) *QueryBuilder[T] {
	b := FromQuery[T](c, keyCond)
	if b.err != nil {
		return b
	}
	idx, err := resolveIndex[IdxT](b.desc)
	if err != nil {
		b.err = err
		return b
	}
	b.indexName = idx.Name
	b.global = idx.Global
	if idx.Global {
		eventuallyConsistent := false
		b.consistentRead = &eventuallyConsistent
	}
	return b
}

// resolveIndex describes IdxT (a lightweight companion type declaring its
// own hash/range fields) purely to read off its hash field name, then
// finds the single index on desc whose hash key matches it. IdxT is built
// through the schema package's companion cache rather than Register, so
// inferring an index never manufactures a phantom table entry for
// initSchema or DescribeYAML to pick up (IdxT isn't a table — it's just a
// convenient way to spell an index's key shape as a Go type).
func resolveIndex[IdxT any](desc *schema.TableDescriptor) (schema.IndexDescriptor, error) {
	var zero IdxT
	idxType := reflect.TypeOf(zero)
	for idxType.Kind() == reflect.Ptr {
		idxType = idxType.Elem()
	}
	idxDesc, ok := schema.Lookup(idxType)
	if !ok {
		idxDesc, ok = schema.LookupCompanion(idxType)
	}
	if !ok {
		var err error
		idxDesc, err = schema.RegisterCompanion(idxType)
		if err != nil {
			return schema.IndexDescriptor{}, err
		}
	}
	return desc.IndexOnField(idxDesc.HashKey.Name)
}

func (b *QueryBuilder[T]) KeyCondition(p predicate.Predicate) *QueryBuilder[T] {
	b.keyCond = p
	return b
}

func (b *QueryBuilder[T]) Filter(p predicate.Predicate) *QueryBuilder[T] {
	b.filterCond = p
	return b
}

// LocalIndex selects an index the way keyCondition does but additionally
// routes the query through it; if name is omitted, exactly one field
// referenced by p must resolve to an index (spec §4.5).
func (b *QueryBuilder[T]) LocalIndex(p predicate.Predicate, name ...string) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	// p is the range-key term the index routes on; AND it onto the
	// hash-key equality FromQuery already seeded rather than replacing
	// it, so the compiled key condition keeps its required hash-key Eq.
	if b.keyCond != nil {
		b.keyCond = predicate.AllOf(b.keyCond, p)
	} else {
		b.keyCond = p
	}
	if len(name) > 0 && name[0] != "" {
		idx, ok := b.desc.Index(name[0])
		if !ok {
			b.err = &schema.SchemaError{Type: b.desc.GoType, Msg: fmt.Sprintf("no index named %q", name[0])}
			return b
		}
		b.indexName = idx.Name
		b.global = idx.Global
		return b
	}
	fields := predicate.Referenced(p)
	if len(fields) != 1 {
		b.err = &schema.SchemaError{Type: b.desc.GoType, Msg: "LocalIndex without a name requires the predicate to reference exactly one field"}
		return b
	}
	idx, err := b.desc.IndexOnField(fields[0])
	if err != nil {
		b.err = &schema.SchemaError{Type: b.desc.GoType, Msg: err.Error()}
		return b
	}
	b.indexName = idx.Name
	b.global = idx.Global
	return b
}

// Select sets a literal projection field list.
func (b *QueryBuilder[T]) Select(fields ...string) *QueryBuilder[T] {
	b.selectFields = fields
	return b
}

// SelectTableFields projects all of the base table's fields — useful
// paired with an index that only projects a subset.
func (b *QueryBuilder[T]) SelectTableFields() *QueryBuilder[T] {
	fields := make([]string, len(b.desc.Fields))
	for i, f := range b.desc.Fields {
		fields[i] = f.Name
	}
	b.selectFields = fields
	return b
}

// SelectModel projects the intersection of M's registered fields with
// T's own wire fields (spec §4.5 select<TModel>()), for the case where
// the caller wants to read only the subset of columns a companion type
// declares without hand-listing them via Select.
func SelectModel[T, M any](b *QueryBuilder[T]) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	mdesc, err := descriptorFor[M]()
	if err != nil {
		b.err = err
		return b
	}
	var fields []string
	for _, f := range mdesc.Fields {
		if _, ok := b.desc.Field(f.Name); ok {
			fields = append(fields, f.Name)
		}
	}
	b.selectFields = fields
	return b
}

func (b *QueryBuilder[T]) OrderByAscending() *QueryBuilder[T] {
	b.descending = false
	return b
}

func (b *QueryBuilder[T]) OrderByDescending() *QueryBuilder[T] {
	b.descending = true
	return b
}

func (b *QueryBuilder[T]) PagingLimit(n int32) *QueryBuilder[T] {
	b.pageLimit = n
	return b
}

func (b *QueryBuilder[T]) EventuallyConsistent() *QueryBuilder[T] {
	v := false
	b.consistentRead = &v
	return b
}

// Clone copies the builder, with its own copy of the select-field list, so
// the copy can be mutated without disturbing the original (spec §4.5).
// Predicates are compiled afresh on each build, so no placeholder maps are
// shared between the two.
func (b *QueryBuilder[T]) Clone() *QueryBuilder[T] {
	cp := *b
	cp.selectFields = append([]string(nil), b.selectFields...)
	return &cp
}

func (b *QueryBuilder[T]) build() (*dynamodb.QueryInput, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.keyCond == nil {
		return nil, &schema.SchemaError{Type: b.desc.GoType, Msg: "query has no key condition"}
	}
	// Key condition and filter are compiled through one expression.Builder
	// (predicate.CompileKeyAndFilter) so their placeholder aliases share
	// one alias space instead of each Build() call numbering from #0/:0
	// and colliding when merged.
	compiled, err := predicate.CompileKeyAndFilter(b.keyCond, b.filterCond)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 &b.desc.Name,
		KeyConditionExpression:    &compiled.KeyCondition,
		ExpressionAttributeNames:  compiled.Names,
		ExpressionAttributeValues: compiled.Values,
		ScanIndexForward:          boolPtr(!b.descending),
		Limit:                     int32Ptr(b.pageLimit),
	}
	if compiled.Filter != "" {
		input.FilterExpression = &compiled.Filter
	}

	if b.indexName != "" {
		input.IndexName = &b.indexName
	}
	consistentRead := b.c.cfg.ConsistentRead
	if b.consistentRead != nil {
		consistentRead = *b.consistentRead
	}
	if !b.global {
		input.ConsistentRead = &consistentRead
	}

	if len(b.selectFields) > 0 {
		proj, names := buildProjection(b.selectFields)
		input.ProjectionExpression = &proj
		mergeNames(input.ExpressionAttributeNames, names)
	}

	return input, nil
}

// Exec returns a lazy Iterator over the query's results (spec §4.5
// exec()).
func (b *QueryBuilder[T]) Exec(ctx context.Context) (*Iterator[T], error) {
	input, err := b.build()
	if err != nil {
		return nil, err
	}
	return newIterator[T](b.c, b.desc, queryPageFetcher(b.c, b.desc.Name, input)), nil
}

// ExecLimit accumulates up to limit items (spec §4.5 exec(limit)). It
// narrows the request's own page-size Limit down to the bound first, on a
// clone so the receiver is left untouched, so a small limit doesn't still
// pull a full PagingLimit-sized page from the store per round trip.
func (b *QueryBuilder[T]) ExecLimit(ctx context.Context, limit int) ([]T, error) {
	cp := b
	if limit > 0 && int32(limit) < b.pageLimit {
		cp = b.Clone()
		cp.pageLimit = int32(limit)
	}
	it, err := cp.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return it.Limit(ctx, limit)
}

// ScanBuilder is QueryBuilder's scan counterpart: no key condition, only
// an optional filter, and no defined result ordering (spec §5).
type ScanBuilder[T any] struct {
	c            *Client
	desc         *schema.TableDescriptor
	indexName    string
	global       bool
	filterCond   predicate.Predicate
	selectFields []string
	pageLimit    int32
	err          error
}

func FromScan[T any](c *Client, filter predicate.Predicate) *ScanBuilder[T] {
	desc, err := descriptorFor[T]()
	return &ScanBuilder[T]{c: c, desc: desc, filterCond: filter, pageLimit: c.cfg.PagingLimit, err: err}
}

func FromScanIndex[T, IdxT any](c *Client, filter predicate.Predicate) *ScanBuilder[T] {
	b := FromScan[T](c, filter)
	if b.err != nil {
		return b
	}
	idx, err := resolveIndex[IdxT](b.desc)
	if err != nil {
		b.err = err
		return b
	}
	b.indexName = idx.Name
	b.global = idx.Global
	return b
}

func (b *ScanBuilder[T]) Filter(p predicate.Predicate) *ScanBuilder[T] {
	b.filterCond = p
	return b
}

func (b *ScanBuilder[T]) Select(fields ...string) *ScanBuilder[T] {
	b.selectFields = fields
	return b
}

func (b *ScanBuilder[T]) SelectTableFields() *ScanBuilder[T] {
	fields := make([]string, len(b.desc.Fields))
	for i, f := range b.desc.Fields {
		fields[i] = f.Name
	}
	b.selectFields = fields
	return b
}

func (b *ScanBuilder[T]) PagingLimit(n int32) *ScanBuilder[T] {
	b.pageLimit = n
	return b
}

func (b *ScanBuilder[T]) Clone() *ScanBuilder[T] {
	cp := *b
	cp.selectFields = append([]string(nil), b.selectFields...)
	return &cp
}

func (b *ScanBuilder[T]) build() (*dynamodb.ScanInput, error) {
	if b.err != nil {
		return nil, b.err
	}
	input := &dynamodb.ScanInput{
		TableName: &b.desc.Name,
		Limit:     int32Ptr(b.pageLimit),
	}
	if b.indexName != "" {
		input.IndexName = &b.indexName
	}
	if !b.global {
		consistentRead := b.c.cfg.ConsistentRead
		input.ConsistentRead = &consistentRead
	}
	if b.filterCond != nil {
		filterExpr, err := predicate.CompileFilter(b.filterCond)
		if err != nil {
			return nil, err
		}
		input.FilterExpression = &filterExpr.Expression
		input.ExpressionAttributeNames = filterExpr.Names
		input.ExpressionAttributeValues = filterExpr.Values
	}
	if len(b.selectFields) > 0 {
		proj, names := buildProjection(b.selectFields)
		input.ProjectionExpression = &proj
		if input.ExpressionAttributeNames == nil {
			input.ExpressionAttributeNames = names
		} else {
			mergeNames(input.ExpressionAttributeNames, names)
		}
	}
	return input, nil
}

func (b *ScanBuilder[T]) Exec(ctx context.Context) (*Iterator[T], error) {
	input, err := b.build()
	if err != nil {
		return nil, err
	}
	return newIterator[T](b.c, b.desc, scanPageFetcher(b.c, b.desc.Name, input)), nil
}

// ExecLimit accumulates up to limit items, narrowing the request's own
// page-size Limit down to the bound first (on a clone) the same way
// QueryBuilder.ExecLimit does.
func (b *ScanBuilder[T]) ExecLimit(ctx context.Context, limit int) ([]T, error) {
	cp := b
	if limit > 0 && int32(limit) < b.pageLimit {
		cp = b.Clone()
		cp.pageLimit = int32(limit)
	}
	it, err := cp.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return it.Limit(ctx, limit)
}

// ExecInto projects a QueryBuilder's results into a different record
// shape R (spec §4.5 execInto<R>()) — R is registered independently and
// only the intersection of T's wire fields and R's is ever populated,
// since Populate iterates R's own descriptor.
func ExecInto[T, R any](ctx context.Context, b *QueryBuilder[T]) ([]R, error) {
	rdesc, err := descriptorFor[R]()
	if err != nil {
		return nil, err
	}
	input, err := b.build()
	if err != nil {
		return nil, err
	}
	fetch := queryPageFetcher(b.c, b.desc.Name, input)
	it := newIterator[R](b.c, rdesc, fetch)
	return it.All(ctx)
}

// ExecColumn projects a single attribute from a QueryBuilder's results,
// decoded as K (spec §4.5 execColumn<K>(field)).
func ExecColumn[T, K any](ctx context.Context, b *QueryBuilder[T], field string) ([]K, error) {
	fd, ok := b.desc.Field(field)
	if !ok {
		if fd2, ok2 := b.desc.FieldByGoName(field); ok2 {
			fd = fd2
			ok = true
		}
	}
	if !ok {
		return nil, &schema.SchemaError{Type: b.desc.GoType, Msg: fmt.Sprintf("no such field %q", field)}
	}
	original := b.selectFields
	b.selectFields = []string{fd.Name}
	input, err := b.build()
	b.selectFields = original
	if err != nil {
		return nil, err
	}

	var kType reflect.Type
	{
		var zero K
		kType = reflect.TypeOf(zero)
	}

	fetch := queryPageFetcher(b.c, b.desc.Name, input)
	var out []K
	var startKey map[string]ddbtypes.AttributeValue
	for {
		items, lastKey, err := fetch(ctx, startKey)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			av, ok := item[fd.Name]
			if !ok {
				continue
			}
			v, err := codec.FromAttributeValue(av, kType, b.c.hooks)
			if err != nil {
				return nil, err
			}
			out = append(out, v.Interface().(K))
		}
		if len(lastKey) == 0 {
			return out, nil
		}
		startKey = lastKey
	}
}

// ExecIntoScan is ExecInto's ScanBuilder counterpart (spec §4.5
// execInto<R>() applies to scans too).
func ExecIntoScan[T, R any](ctx context.Context, b *ScanBuilder[T]) ([]R, error) {
	rdesc, err := descriptorFor[R]()
	if err != nil {
		return nil, err
	}
	input, err := b.build()
	if err != nil {
		return nil, err
	}
	fetch := scanPageFetcher(b.c, b.desc.Name, input)
	it := newIterator[R](b.c, rdesc, fetch)
	return it.All(ctx)
}

// ExecColumnScan is ExecColumn's ScanBuilder counterpart (spec §4.5
// execColumn<K>(field) applies to scans too).
func ExecColumnScan[T, K any](ctx context.Context, b *ScanBuilder[T], field string) ([]K, error) {
	fd, ok := b.desc.Field(field)
	if !ok {
		if fd2, ok2 := b.desc.FieldByGoName(field); ok2 {
			fd = fd2
			ok = true
		}
	}
	if !ok {
		return nil, &schema.SchemaError{Type: b.desc.GoType, Msg: fmt.Sprintf("no such field %q", field)}
	}
	original := b.selectFields
	b.selectFields = []string{fd.Name}
	input, err := b.build()
	b.selectFields = original
	if err != nil {
		return nil, err
	}

	var kType reflect.Type
	{
		var zero K
		kType = reflect.TypeOf(zero)
	}

	fetch := scanPageFetcher(b.c, b.desc.Name, input)
	var out []K
	var startKey map[string]ddbtypes.AttributeValue
	for {
		items, lastKey, err := fetch(ctx, startKey)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			av, ok := item[fd.Name]
			if !ok {
				continue
			}
			v, err := codec.FromAttributeValue(av, kType, b.c.hooks)
			if err != nil {
				return nil, err
			}
			out = append(out, v.Interface().(K))
		}
		if len(lastKey) == 0 {
			return out, nil
		}
		startKey = lastKey
	}
}

func buildProjection(fields []string) (string, map[string]string) {
	names := make(map[string]string, len(fields))
	proj := ""
	for i, f := range fields {
		alias := fmt.Sprintf("#proj%d", i)
		names[alias] = f
		if i > 0 {
			proj += ", "
		}
		proj += alias
	}
	return proj, names
}

func mergeNames(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func boolPtr(b bool) *bool     { return &b }
func int32Ptr(n int32) *int32  { return &n }
