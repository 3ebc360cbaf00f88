package pocodynamo

import (
	"context"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/fake"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

func noWait(int) time.Duration { return 0 }

func TestExec_RetriesThrottleUntilSuccess(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	store := fake.New(fake.TableSchema{Name: "pocos", HashKey: "Id"})
	store.ThrottleNext("pocos", 2)
	c := New(store, WithBackoff(noWait), WithRetryTimeout(time.Second))

	require.NoError(t, PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"}))
	got, err := GetItem[Poco](context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, "foo", got.Name)
}

func TestExec_TimesOutWhenThrottledPastDeadline(t *testing.T) {
	schema.Reset()
	_, err := Register[Poco]("pocos")
	require.NoError(t, err)
	store := fake.New(fake.TableSchema{Name: "pocos", HashKey: "Id"})
	store.ThrottleNext("pocos", 1000)
	c := New(store, WithBackoff(noWait), WithRetryTimeout(0))

	err = PutItem(context.Background(), c, Poco{Id: 1, Name: "foo"})
	require.Error(t, err)
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestClassify_NotFoundIsNeverRetried(t *testing.T) {
	err := classify(&smithy.GenericAPIError{Code: "ResourceNotFoundException"}, "pocos", defaultRetryableCodes)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestClassify_UnknownCodeIsPermanent(t *testing.T) {
	err := classify(&smithy.GenericAPIError{Code: "ValidationException"}, "pocos", defaultRetryableCodes)
	var perm *PermanentStoreError
	assert.ErrorAs(t, err, &perm)
}

func TestClassify_NonAPIErrorIsPermanent(t *testing.T) {
	err := classify(assert.AnError, "pocos", defaultRetryableCodes)
	var perm *PermanentStoreError
	assert.ErrorAs(t, err, &perm)
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, classify(nil, "pocos", defaultRetryableCodes))
}

func TestExponentialBackoff_NeverExceedsCap(t *testing.T) {
	backoff := ExponentialBackoff(10*time.Millisecond, 2.0, 50*time.Millisecond)
	for attempt := 0; attempt < 10; attempt++ {
		d := backoff(attempt)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
