package pocodynamo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

type Counter struct {
	Key string `ddb:"hash"`
	N   int64
}

func TestIncrement_StartsFromAbsentAndAccumulates(t *testing.T) {
	schema.Reset()
	_, err := Register[Counter]("counters")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "counters", HashKey: "Key"})

	n1, err := Increment[Counter](context.Background(), c, "hits", "N", 1)
	require.NoError(t, err)
	n2, err := Increment[Counter](context.Background(), c, "hits", "N", 1)
	require.NoError(t, err)
	n3, err := Increment[Counter](context.Background(), c, "hits", "N", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(3), n3)

	got, err := GetItem[Counter](context.Background(), c, "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.N)
}

func TestIncrement_ByArbitraryDelta(t *testing.T) {
	schema.Reset()
	_, err := Register[Counter]("counters")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "counters", HashKey: "Key"})

	n, err := Increment[Counter](context.Background(), c, "views", "N", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = Increment[Counter](context.Background(), c, "views", "N", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
