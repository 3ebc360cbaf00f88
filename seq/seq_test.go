package seq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo"
	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()
	schema.Reset()
	c := pocodynamo.New(fake.New())
	src, err := NewSource(c, "sequences")
	require.NoError(t, err)
	require.NoError(t, src.InitSchema(context.Background()))
	return src
}

func TestSource_NextIsMonotonic(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	n1, err := src.Next(ctx, "orders")
	require.NoError(t, err)
	n2, err := src.Next(ctx, "orders")
	require.NoError(t, err)
	n3, err := src.Next(ctx, "orders")
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(3), n3)
}

func TestSource_CurrentReflectsLastNext(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	cur, err := src.Current(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur, "an unincremented key starts at 0")

	_, err = src.Next(ctx, "widgets")
	require.NoError(t, err)
	_, err = src.Next(ctx, "widgets")
	require.NoError(t, err)

	cur, err = src.Current(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur)
}

func TestSource_NextBlockReservesContiguousRange(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	first, err := src.NextBlock(ctx, "batch", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	cur, err := src.Current(ctx, "batch")
	require.NoError(t, err)
	assert.Equal(t, int64(10), cur)

	second, err := src.NextBlock(ctx, "batch", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), second)
}

func TestSource_NextBlockRejectsNonPositiveSize(t *testing.T) {
	src := newTestSource(t)
	_, err := src.NextBlock(context.Background(), "batch", 0)
	assert.Error(t, err)
}

func TestNewV4Key_ProducesDistinctValues(t *testing.T) {
	a := NewV4Key()
	b := NewV4Key()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestSource_TableName(t *testing.T) {
	src := newTestSource(t)
	assert.Equal(t, "sequences", src.TableName())
}
