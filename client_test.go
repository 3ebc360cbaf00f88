package pocodynamo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pocodynamo/pocodynamo/internal/fake"
)

func newTestClient(t *testing.T, schemas ...fake.TableSchema) *Client {
	t.Helper()
	return New(fake.New(schemas...))
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.True(t, cfg.ConsistentRead)
	assert.Equal(t, int32(1000), cfg.PagingLimit)
	assert.True(t, cfg.ScanIndexForward)
	assert.NotNil(t, cfg.Backoff)
	assert.Contains(t, cfg.RetryableErrorCodes, "ThrottlingException")
}

func TestNew_AppliesOptions(t *testing.T) {
	c := newTestClient(t, fake.TableSchema{Name: "widgets", HashKey: "Id"})
	c = New(c.ddb, WithConsistentRead(false), WithPagingLimit(5), WithRetryTimeout(time.Second))
	assert.False(t, c.cfg.ConsistentRead)
	assert.Equal(t, int32(5), c.cfg.PagingLimit)
	assert.Equal(t, time.Second, c.cfg.MaxRetryOnExceptionTimeout)
}

func TestClient_With_SharesUnderlyingHandle(t *testing.T) {
	c := newTestClient(t, fake.TableSchema{Name: "widgets", HashKey: "Id"})
	c2 := c.With(WithConsistentRead(false))
	assert.Same(t, c.ddb, c2.ddb, "With shares the underlying store, only the config differs")
	assert.True(t, c.cfg.ConsistentRead, "original client's config must be unaffected")
	assert.False(t, c2.cfg.ConsistentRead)
}

func TestClient_Close_RejectsFurtherOperations(t *testing.T) {
	c := newTestClient(t, fake.TableSchema{Name: "widgets", HashKey: "Id"})
	require := assert.New(t)
	require.NoError(c.Close())
	require.Error(c.checkOpen())
}
