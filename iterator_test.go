package pocodynamo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/predicate"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func TestIterator_LimitYieldsAtMostN(t *testing.T) {
	c := newOrdersClient(t)
	seedOrders(t, c)

	got, err := FromQuery[Order](c, predicate.Eq("CustomerId", "7")).PagingLimit(1).ExecLimit(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIterator_LazyQueryTerminatesOnEmptyLastEvaluatedKey(t *testing.T) {
	c := newOrdersClient(t)
	seedOrders(t, c)

	it, err := FromQuery[Order](c, predicate.Eq("CustomerId", "7")).PagingLimit(1).Exec(context.Background())
	require.NoError(t, err)

	count := 0
	for {
		_, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
		if count > 100 {
			t.Fatal("iterator did not terminate")
		}
	}
	assert.Equal(t, 3, count)
}

func TestIterator_All_AccumulatesEveryPage(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})
	for i := 1; i <= 10; i++ {
		require.NoError(t, PutItem(context.Background(), c, Poco{Id: i, Name: "x"}))
	}

	it, err := FromScan[Poco](c, nil).PagingLimit(3).Exec(context.Background())
	require.NoError(t, err)
	got, err := it.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 10)
}
