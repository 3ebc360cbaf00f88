package pocodynamo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func TestDeleteItem_RemovesExisting(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"}))
	require.NoError(t, DeleteItem[Poco](context.Background(), c, 1))

	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, Poco{}, got)
}

func TestDeleteItem_MissingIsNotAnError(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	assert.NoError(t, DeleteItem[Poco](context.Background(), c, 42))
}

func TestDeleteItems_BatchOf60(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	keys := make([]Key, 0, 60)
	for i := 1; i <= 60; i++ {
		require.NoError(t, PutItem(context.Background(), c, Poco{Id: i, Name: "x"}))
		keys = append(keys, Key{Hash: i})
	}
	require.NoError(t, DeleteItems[Poco](context.Background(), c, keys))

	for i := 1; i <= 60; i++ {
		got, err := GetItem[Poco](context.Background(), c, i)
		require.NoError(t, err)
		assert.Equal(t, Poco{}, got)
	}
}

func TestDeleteItems_EmptyInputIsNoop(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})
	assert.NoError(t, DeleteItems[Poco](context.Background(), c, nil))
}
