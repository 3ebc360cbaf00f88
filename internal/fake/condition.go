package fake

import (
	"fmt"
	"strconv"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// evalCondition parses and evaluates a condition/filter/key-condition
// expression against item, resolving #name / :value placeholders. It
// only needs to understand the grammar internal/predicate's compiler
// emits through the AWS SDK's own expression.Builder, not arbitrary
// hand-written DynamoDB expressions.
func evalCondition(exprText string, names map[string]string, values map[string]ddbtypes.AttributeValue, item map[string]ddbtypes.AttributeValue) (bool, error) {
	if exprText == "" {
		return true, nil
	}
	p := &condParser{
		toks:   tokenize(exprText),
		names:  names,
		values: values,
		item:   item,
	}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, fmt.Errorf("fake: unexpected trailing tokens in condition %q", exprText)
	}
	return v, nil
}

type condParser struct {
	toks   []string
	pos    int
	names  map[string]string
	values map[string]ddbtypes.AttributeValue
	item   map[string]ddbtypes.AttributeValue
}

func (p *condParser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *condParser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) expect(tok string) error {
	if !strings.EqualFold(p.peek(), tok) {
		return fmt.Errorf("fake: expected %q, got %q", tok, p.peek())
	}
	p.next()
	return nil
}

func (p *condParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *condParser) parseAnd() (bool, error) {
	left, err := p.parseNot()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *condParser) parseNot() (bool, error) {
	if strings.EqualFold(p.peek(), "NOT") {
		p.next()
		v, err := p.parseNot()
		return !v, err
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (bool, error) {
	switch tok := p.peek(); {
	case tok == "(":
		p.next()
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		return v, nil
	case strings.EqualFold(tok, "attribute_exists"):
		p.next()
		if err := p.expect("("); err != nil {
			return false, err
		}
		name := p.resolveName(p.next())
		if err := p.expect(")"); err != nil {
			return false, err
		}
		_, ok := p.item[name]
		return ok, nil
	case strings.EqualFold(tok, "attribute_not_exists"):
		p.next()
		if err := p.expect("("); err != nil {
			return false, err
		}
		name := p.resolveName(p.next())
		if err := p.expect(")"); err != nil {
			return false, err
		}
		_, ok := p.item[name]
		return !ok, nil
	case strings.EqualFold(tok, "begins_with"):
		p.next()
		if err := p.expect("("); err != nil {
			return false, err
		}
		name := p.resolveName(p.next())
		if err := p.expect(","); err != nil {
			return false, err
		}
		prefix := p.resolveValue(p.next())
		if err := p.expect(")"); err != nil {
			return false, err
		}
		s, ok := stringOf(p.item[name])
		prefixStr, _ := stringOf(prefix)
		return ok && strings.HasPrefix(s, prefixStr), nil
	case strings.EqualFold(tok, "contains"):
		p.next()
		if err := p.expect("("); err != nil {
			return false, err
		}
		name := p.resolveName(p.next())
		if err := p.expect(","); err != nil {
			return false, err
		}
		needle := p.resolveValue(p.next())
		if err := p.expect(")"); err != nil {
			return false, err
		}
		return containsValue(p.item[name], needle), nil
	default:
		return p.parseComparison()
	}
}

func (p *condParser) parseComparison() (bool, error) {
	left := p.resolveOperand(p.next())
	op := p.next()
	switch strings.ToUpper(op) {
	case "=":
		return equalValues(left, p.resolveOperand(p.next())), nil
	case "<>":
		return !equalValues(left, p.resolveOperand(p.next())), nil
	case "<", "<=", ">", ">=":
		right := p.resolveOperand(p.next())
		cmp, ok := compareValues(left, right)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "BETWEEN":
		lo := p.resolveOperand(p.next())
		if err := p.expect("AND"); err != nil {
			return false, err
		}
		hi := p.resolveOperand(p.next())
		cmpLo, ok1 := compareValues(left, lo)
		cmpHi, ok2 := compareValues(left, hi)
		return ok1 && ok2 && cmpLo >= 0 && cmpHi <= 0, nil
	case "IN":
		if err := p.expect("("); err != nil {
			return false, err
		}
		for {
			candidate := p.resolveOperand(p.next())
			if equalValues(left, candidate) {
				// drain remaining tokens up to the closing paren
				for p.peek() != ")" && !p.atEnd() {
					p.next()
				}
				p.expect(")")
				return true, nil
			}
			if p.peek() == "," {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, fmt.Errorf("fake: unsupported comparison operator %q", op)
	}
}

// resolveOperand resolves a token that is either a #name or :value
// placeholder into its underlying AttributeValue.
func (p *condParser) resolveOperand(tok string) ddbtypes.AttributeValue {
	if strings.HasPrefix(tok, "#") {
		return p.item[p.resolveName(tok)]
	}
	return p.resolveValue(tok)
}

func (p *condParser) resolveName(tok string) string {
	if n, ok := p.names[tok]; ok {
		return n
	}
	return strings.TrimPrefix(tok, "#")
}

func (p *condParser) resolveValue(tok string) ddbtypes.AttributeValue {
	return p.values[tok]
}

// tokenize splits a compiled expression into names/values/keywords/
// punctuation, matching the whitespace-tolerant text
// expression.Builder.Build() emits.
func tokenize(s string) []string {
	var toks []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			toks = append(toks, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			flush()
		case c == '(' || c == ')' || c == ',':
			flush()
			toks = append(toks, string(c))
		case c == '<' || c == '>':
			flush()
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, string(c)+"=")
				i++
			} else if c == '<' && i+1 < len(s) && s[i+1] == '>' {
				toks = append(toks, "<>")
				i++
			} else {
				toks = append(toks, string(c))
			}
		case c == '=':
			flush()
			toks = append(toks, "=")
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return toks
}

func stringOf(av ddbtypes.AttributeValue) (string, bool) {
	if s, ok := av.(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value, true
	}
	return "", false
}

func equalValues(a, b ddbtypes.AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *ddbtypes.AttributeValueMemberS:
		bv, ok := b.(*ddbtypes.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *ddbtypes.AttributeValueMemberN:
		bv, ok := b.(*ddbtypes.AttributeValueMemberN)
		if !ok {
			return false
		}
		af, aerr := strconv.ParseFloat(av.Value, 64)
		bf, berr := strconv.ParseFloat(bv.Value, 64)
		return aerr == nil && berr == nil && af == bf
	case *ddbtypes.AttributeValueMemberBOOL:
		bv, ok := b.(*ddbtypes.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *ddbtypes.AttributeValueMemberB:
		bv, ok := b.(*ddbtypes.AttributeValueMemberB)
		return ok && string(av.Value) == string(bv.Value)
	case *ddbtypes.AttributeValueMemberNULL:
		_, ok := b.(*ddbtypes.AttributeValueMemberNULL)
		return ok
	default:
		return false
	}
}

// compareValues orders two scalar attribute values. ok is false for
// non-orderable types (BOOL, NULL, sets, lists, maps).
func compareValues(a, b ddbtypes.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *ddbtypes.AttributeValueMemberS:
		bv, ok := b.(*ddbtypes.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *ddbtypes.AttributeValueMemberN:
		bv, ok := b.(*ddbtypes.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		af, aerr := strconv.ParseFloat(av.Value, 64)
		bf, berr := strconv.ParseFloat(bv.Value, 64)
		if aerr != nil || berr != nil {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case *ddbtypes.AttributeValueMemberB:
		bv, ok := b.(*ddbtypes.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(av.Value), string(bv.Value)), true
	default:
		return 0, false
	}
}

func containsValue(container, needle ddbtypes.AttributeValue) bool {
	switch c := container.(type) {
	case *ddbtypes.AttributeValueMemberS:
		n, ok := stringOf(needle)
		return ok && strings.Contains(c.Value, n)
	case *ddbtypes.AttributeValueMemberSS:
		n, ok := stringOf(needle)
		if !ok {
			return false
		}
		for _, v := range c.Value {
			if v == n {
				return true
			}
		}
		return false
	case *ddbtypes.AttributeValueMemberNS:
		nv, ok := needle.(*ddbtypes.AttributeValueMemberN)
		if !ok {
			return false
		}
		for _, v := range c.Value {
			if equalValues(&ddbtypes.AttributeValueMemberN{Value: v}, nv) {
				return true
			}
		}
		return false
	case *ddbtypes.AttributeValueMemberL:
		for _, v := range c.Value {
			if equalValues(v, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
