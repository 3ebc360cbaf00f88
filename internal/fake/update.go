package fake

import (
	"fmt"
	"strconv"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// applyAdd evaluates an UpdateExpression built purely from ADD actions —
// the only update shape internal/predicate.CompileUpdateAdd emits — and
// returns item with each named numeric attribute incremented by its
// paired value.
func applyAdd(exprText string, names map[string]string, values map[string]ddbtypes.AttributeValue, item map[string]ddbtypes.AttributeValue) (map[string]ddbtypes.AttributeValue, error) {
	toks := tokenize(exprText)
	if len(toks) == 0 || !strings.EqualFold(toks[0], "ADD") {
		return nil, fmt.Errorf("fake: unsupported update expression %q", exprText)
	}
	out := copyItem(item)
	for i := 1; i < len(toks); {
		nameTok := toks[i]
		if nameTok == "," {
			i++
			continue
		}
		if i+1 >= len(toks) {
			return nil, fmt.Errorf("fake: malformed ADD clause in %q", exprText)
		}
		valueTok := toks[i+1]
		i += 2

		name := nameTok
		if n, ok := names[nameTok]; ok {
			name = n
		} else {
			name = strings.TrimPrefix(nameTok, "#")
		}
		delta, ok := values[valueTok]
		if !ok {
			return nil, fmt.Errorf("fake: no value bound for placeholder %q", valueTok)
		}
		deltaN, ok := delta.(*ddbtypes.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("fake: ADD requires a numeric value for %q", name)
		}
		deltaF, err := strconv.ParseFloat(deltaN.Value, 64)
		if err != nil {
			return nil, err
		}

		current := 0.0
		if existing, ok := out[name]; ok {
			n, ok := existing.(*ddbtypes.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("fake: cannot ADD to non-numeric attribute %q", name)
			}
			current, err = strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, err
			}
		}
		out[name] = &ddbtypes.AttributeValueMemberN{Value: formatNumber(current + deltaF)}
	}
	return out, nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
