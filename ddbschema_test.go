package pocodynamo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func TestInitSchema_CreatesMissingTables(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	store := fake.New()
	c := New(store)

	require.NoError(t, InitSchema(context.Background(), c))
	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"}))
	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, "foo", got.Name)
}

func TestInitSchema_IsIdempotent(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	store := fake.New()
	c := New(store)

	require.NoError(t, InitSchema(context.Background(), c))
	require.NoError(t, InitSchema(context.Background(), c), "re-running InitSchema against an already-created table must not error")
}

func TestDeleteTables_RemovesTable(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	c := newTestClient(t, fake.TableSchema{Name: "pocos", HashKey: "Id"})

	require.NoError(t, DeleteTables(context.Background(), c, "pocos"))

	_, err = GetItem[Poco](context.Background(), c, 1)
	assert.Error(t, err, "operating against a deleted table must surface a not-found style error")
}

func TestDescribeYAML_IncludesRegisteredTables(t *testing.T) {
	schema.Reset()
	_, err := Register[Order]("orders")
	require.NoError(t, err)

	out, err := DescribeYAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "orders")
	assert.Contains(t, string(out), "CustomerId")
}
