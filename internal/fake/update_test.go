package fake

import (
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/predicate"
)

func TestApplyAdd_IncrementsAbsentAttributeFromZero(t *testing.T) {
	compiled, err := predicate.CompileUpdateAdd("Counter", int64(5))
	require.NoError(t, err)

	out, err := applyAdd(compiled.Expression, compiled.Names, compiled.Values, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", out["Counter"].(*ddbtypes.AttributeValueMemberN).Value)
}

func TestApplyAdd_IncrementsExistingAttribute(t *testing.T) {
	compiled, err := predicate.CompileUpdateAdd("Counter", int64(3))
	require.NoError(t, err)

	item := map[string]ddbtypes.AttributeValue{"Counter": numAV("10")}
	out, err := applyAdd(compiled.Expression, compiled.Names, compiled.Values, item)
	require.NoError(t, err)
	assert.Equal(t, "13", out["Counter"].(*ddbtypes.AttributeValueMemberN).Value)
}

func TestApplyAdd_DoesNotMutateInput(t *testing.T) {
	compiled, err := predicate.CompileUpdateAdd("Counter", int64(1))
	require.NoError(t, err)

	item := map[string]ddbtypes.AttributeValue{"Counter": numAV("1"), "Other": strAV("keep")}
	out, err := applyAdd(compiled.Expression, compiled.Names, compiled.Values, item)
	require.NoError(t, err)
	assert.Equal(t, "1", item["Counter"].(*ddbtypes.AttributeValueMemberN).Value, "original item map must be untouched")
	assert.Equal(t, "keep", out["Other"].(*ddbtypes.AttributeValueMemberS).Value)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "5", formatNumber(5.0))
	assert.Equal(t, "5.5", formatNumber(5.5))
	assert.Equal(t, "-3", formatNumber(-3.0))
}
