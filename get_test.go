package pocodynamo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

type Poco struct {
	Id   int
	Name string
}

type ParentChild struct {
	ParentId string `ddb:"hash"`
	ChildId  string `ddb:"range"`
	Label    string
}

func TestGetItem_RoundTrip(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"}))

	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, Poco{Id: 1, Name: "foo"}, got)
}

func TestGetItem_MissingReturnsZeroValueNoError(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	got, err := GetItem[Poco](context.Background(), c, 999)
	require.NoError(t, err)
	assert.Equal(t, Poco{}, got)
}

func TestGetItem_ClosedClientErrors(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})
	require.NoError(t, c.Close())

	_, err = GetItem[Poco](context.Background(), c, 1)
	assert.Error(t, err)
}

func TestGetItems_BatchOf60(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	keys := make([]Key, 0, 60)
	for i := 1; i <= 60; i++ {
		require.NoError(t, PutItem(context.Background(), c, Poco{Id: i, Name: fmt.Sprintf("name-%d", i)}))
		keys = append(keys, Key{Hash: i})
	}

	got, err := GetItems[Poco](context.Background(), c, keys)
	require.NoError(t, err)
	assert.Len(t, got, 60)
	byID := map[int]string{}
	for _, p := range got {
		byID[p.Id] = p.Name
	}
	for i := 1; i <= 60; i++ {
		assert.Equal(t, fmt.Sprintf("name-%d", i), byID[i])
	}
}

func TestGetItems_EmptyInputReturnsNil(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	got, err := GetItems[Poco](context.Background(), c, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRelated_RequiresRangeKey(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	_, err = GetRelated[Poco](context.Background(), c, 1)
	assert.Error(t, err)
}

func TestGetRelated_QueriesByParentHash(t *testing.T) {
	schema.Reset()
	_, err := Register[ParentChild]("children")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "children", HashKey: "ParentId", RangeKey: "ChildId"})

	require.NoError(t, PutItem(context.Background(), c, ParentChild{ParentId: "p1", ChildId: "c1", Label: "a"}))
	require.NoError(t, PutItem(context.Background(), c, ParentChild{ParentId: "p1", ChildId: "c2", Label: "b"}))
	require.NoError(t, PutItem(context.Background(), c, ParentChild{ParentId: "p2", ChildId: "c3", Label: "z"}))

	it, err := GetRelated[ParentChild](context.Background(), c, "p1")
	require.NoError(t, err)
	items, err := it.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "p1", item.ParentId)
	}
}
