package fake

import (
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocodynamo/pocodynamo/internal/predicate"
)

func evalPredicate(t *testing.T, p predicate.Predicate, item map[string]ddbtypes.AttributeValue) bool {
	t.Helper()
	compiled, err := predicate.CompileFilter(p)
	require.NoError(t, err)
	ok, err := evalCondition(compiled.Expression, compiled.Names, compiled.Values, item)
	require.NoError(t, err)
	return ok
}

func TestEvalCondition_EmptyExpressionAlwaysTrue(t *testing.T) {
	ok, err := evalCondition("", nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalCondition_Comparisons(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{"Total": numAV("150")}
	assert.True(t, evalPredicate(t, predicate.Gt("Total", 100), item))
	assert.False(t, evalPredicate(t, predicate.Lt("Total", 100), item))
	assert.True(t, evalPredicate(t, predicate.Gte("Total", 150), item))
	assert.True(t, evalPredicate(t, predicate.Eq("Total", 150), item))
	assert.True(t, evalPredicate(t, predicate.Ne("Total", 100), item))
}

func TestEvalCondition_Between(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{"Total": numAV("50")}
	assert.True(t, evalPredicate(t, predicate.BetweenValues("Total", 10, 100), item))
	assert.False(t, evalPredicate(t, predicate.BetweenValues("Total", 60, 100), item))
}

func TestEvalCondition_In(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{"Status": strAV("open")}
	assert.True(t, evalPredicate(t, predicate.InValues("Status", "open", "pending"), item))
	assert.False(t, evalPredicate(t, predicate.InValues("Status", "closed"), item))
}

func TestEvalCondition_ExistsAndNotExists(t *testing.T) {
	present := map[string]ddbtypes.AttributeValue{"DeletedAt": strAV("now")}
	absent := map[string]ddbtypes.AttributeValue{}
	assert.True(t, evalPredicate(t, predicate.AttrExists("DeletedAt"), present))
	assert.False(t, evalPredicate(t, predicate.AttrExists("DeletedAt"), absent))
	assert.True(t, evalPredicate(t, predicate.AttrNotExists("DeletedAt"), absent))
}

func TestEvalCondition_BeginsWithAndContains(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{"Name": strAV("hello world")}
	assert.True(t, evalPredicate(t, predicate.BeginsWith("Name", "hello"), item))
	assert.False(t, evalPredicate(t, predicate.BeginsWith("Name", "world"), item))
	assert.True(t, evalPredicate(t, predicate.Contains("Name", "lo wo"), item))
}

func TestEvalCondition_AndOrNot(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{"Status": strAV("open"), "Total": numAV("150")}
	and := predicate.AllOf(predicate.Eq("Status", "open"), predicate.Gt("Total", 100))
	assert.True(t, evalPredicate(t, and, item))

	or := predicate.AnyOf(predicate.Eq("Status", "closed"), predicate.Gt("Total", 100))
	assert.True(t, evalPredicate(t, or, item))

	not := predicate.Negate(predicate.Eq("Status", "closed"))
	assert.True(t, evalPredicate(t, not, item))
}

func TestTokenize(t *testing.T) {
	toks := tokenize("#0 = :0 AND #1 > :1")
	assert.Equal(t, []string{"#0", "=", ":0", "AND", "#1", ">", ":1"}, toks)
}
