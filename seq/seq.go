// Package seq is a counter service built atop pocodynamo (spec §4.6): a
// dedicated sequences table yields monotonic integer identifiers for
// callers whose store doesn't offer autoincrement natively, the way the
// teacher's own domain types lean on UpdateItem ADD actions rather than
// a bespoke counter primitive.
package seq

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pocodynamo/pocodynamo"
)

// Seq is the record shape backing the sequences table: one row per
// named counter.
type Seq struct {
	Key     string `ddb:"hash"`
	Counter int64
}

// Source hands out monotonic integers (or v4 UUIDs, for callers who
// don't need ordering) scoped to a dedicated sequences table.
type Source struct {
	c     *pocodynamo.Client
	table *pocodynamo.Table[Seq]
}

// NewSource registers the sequences table against c's shared metadata
// registry. Registration is idempotent, so constructing more than one
// Source against the same tableName is safe.
func NewSource(c *pocodynamo.Client, tableName string) (*Source, error) {
	tbl, err := pocodynamo.Register[Seq](tableName)
	if err != nil {
		return nil, err
	}
	return &Source{c: c, table: tbl}, nil
}

// TableName returns the physical name of the sequences table.
func (s *Source) TableName() string { return s.table.Name() }

// InitSchema idempotently creates the sequences table if it doesn't
// exist yet. pocodynamo.InitSchema on the shared client also covers this
// once a Source has been constructed, since registration adds Seq to the
// same process-wide registry. It delegates to pocodynamo.InitSchema, so it
// also creates every other missing table in that registry (spec §4.6).
func (s *Source) InitSchema(ctx context.Context) error {
	return pocodynamo.InitSchema(ctx, s.c)
}

// Current returns key's counter value without advancing it, 0 if key
// has never been incremented.
func (s *Source) Current(ctx context.Context, key string) (int64, error) {
	item, err := pocodynamo.GetItem[Seq](ctx, s.c, key)
	if err != nil {
		return 0, err
	}
	return item.Counter, nil
}

// Next advances key by one and returns the new value.
func (s *Source) Next(ctx context.Context, key string) (int64, error) {
	return pocodynamo.Increment[Seq](ctx, s.c, key, "Counter", 1)
}

// NextBlock atomically reserves n consecutive identifiers and returns
// the first one in the block — the caller owns [first, first+n).
func (s *Source) NextBlock(ctx context.Context, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("seq: block size must be positive, got %d", n)
	}
	end, err := pocodynamo.Increment[Seq](ctx, s.c, key, "Counter", n)
	if err != nil {
		return 0, err
	}
	return end - n + 1, nil
}

// NewV4Key returns a random v4 UUID, the alternative to a monotonic
// counter for callers who don't need ordered identifiers.
func NewV4Key() string {
	return uuid.NewString()
}
