package pocodynamo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/predicate"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func TestPutItem_OverwritesExisting(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"}))
	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "bar"}))

	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, "bar", got.Name)
}

func TestPutItemIf_FailsWhenConditionUnmet(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	cond := predicate.AttrNotExists("Id")
	require.NoError(t, PutItemIf(context.Background(), c, Poco{Id: 1, Name: "first"}, cond))
	err = PutItemIf(context.Background(), c, Poco{Id: 1, Name: "second"}, cond)
	assert.Error(t, err)

	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name, "the failed conditional put must not have overwritten the item")
}

func TestPutItems_BatchOf60(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	items := make([]Poco, 0, 60)
	for i := 1; i <= 60; i++ {
		items = append(items, Poco{Id: i, Name: fmt.Sprintf("name-%d", i)})
	}
	require.NoError(t, PutItems(context.Background(), c, items))

	for i := 1; i <= 60; i++ {
		got, err := GetItem[Poco](context.Background(), c, i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("name-%d", i), got.Name)
	}
}

func TestPutItems_EmptyInputIsNoop(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})
	assert.NoError(t, PutItems[Poco](context.Background(), c, nil))
}

func TestPutRelated_StampsParentHashAndRequiresRangeKey(t *testing.T) {
	schema.Reset()
	_, err := Register[ParentChild]("children")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "children", HashKey: "ParentId", RangeKey: "ChildId"})

	children := []ParentChild{
		{ChildId: "c1", Label: "a"},
		{ChildId: "c2", Label: "b"},
	}
	require.NoError(t, PutRelated(context.Background(), c, "p1", children))

	got, err := GetItem[ParentChild](context.Background(), c, "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ParentId)
	assert.Equal(t, "a", got.Label)
}

func TestPutRelated_RequiresRangeKeyOnChildTable(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	err = PutRelated(context.Background(), c, 1, []Poco{{Name: "x"}})
	assert.Error(t, err)
}
