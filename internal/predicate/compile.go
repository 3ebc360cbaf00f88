package predicate

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExpressionError reports a predicate that uses an unsupported operator, a
// key condition shape the store doesn't allow, or otherwise fails to
// compile (spec §7).
type ExpressionError struct {
	Msg string
	Err error
}

func (e *ExpressionError) Error() string { return "pocodynamo: expression error: " + e.Msg }
func (e *ExpressionError) Unwrap() error { return e.Err }

func exprErr(format string, args ...any) *ExpressionError {
	return &ExpressionError{Msg: fmt.Sprintf(format, args...)}
}

// Result is the compiled output of a predicate tree: expression text plus
// its placeholder maps, per spec §4.3.
type Result struct {
	Expression       string
	Names            map[string]string
	Values           map[string]ddbtypes.AttributeValue
	ReferencedFields []string
}

// referencedFields walks a predicate tree collecting the ordered, unique
// set of field names it touches.
func referencedFields(p Predicate) []string {
	seen := map[string]bool{}
	var order []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			order = append(order, f)
		}
	}
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case Comparison:
			add(n.Field)
		case Between:
			add(n.Field)
		case In:
			add(n.Field)
		case Exists:
			add(n.Field)
		case NotExists:
			add(n.Field)
		case And:
			for _, op := range n.Operands {
				walk(op)
			}
		case Or:
			for _, op := range n.Operands {
				walk(op)
			}
		case Not:
			walk(n.Operand)
		}
	}
	walk(p)
	return order
}

// Referenced returns the ordered, unique set of field names p touches, for
// callers that need to inspect a predicate's shape before compiling it (the
// query builder's single-field local-index inference).
func Referenced(p Predicate) []string {
	return referencedFields(p)
}

// CompileFilter compiles p as a filter/condition expression (spec §4.3):
// any comparison, logical combinator, membership/prefix test, or
// existence check is allowed.
func CompileFilter(p Predicate) (Result, error) {
	cb, err := toCondition(p)
	if err != nil {
		return Result{}, err
	}
	expr, err := expression.NewBuilder().WithCondition(cb).Build()
	if err != nil {
		return Result{}, exprErr("build filter expression: %v", err)
	}
	return Result{
		Expression:       *expr.Condition(),
		Names:            expr.Names(),
		Values:           expr.Values(),
		ReferencedFields: referencedFields(p),
	}, nil
}

// CompileKeyCondition compiles p as a KeyConditionExpression. DynamoDB only
// allows a hash-key equality optionally ANDed with one range-key
// comparison, so this rejects anything the store itself would reject
// (spec §7 ExpressionError: "uses unsupported operators").
func CompileKeyCondition(p Predicate) (Result, error) {
	kcb, err := toKeyCondition(p)
	if err != nil {
		return Result{}, err
	}
	expr, err := expression.NewBuilder().WithKeyCondition(kcb).Build()
	if err != nil {
		return Result{}, exprErr("build key condition expression: %v", err)
	}
	return Result{
		Expression:       *expr.KeyCondition(),
		Names:            expr.Names(),
		Values:           expr.Values(),
		ReferencedFields: referencedFields(p),
	}, nil
}

// QueryExpressions is the compiled output of a key condition and an
// optional filter compiled together (spec §4.3). Sharing one
// expression.Builder call keeps their placeholder aliases from
// colliding — two independent Build() calls both start numbering at
// #0/:0, so merging their maps afterward silently overwrites one
// expression's placeholders with the other's.
type QueryExpressions struct {
	KeyCondition     string
	Filter           string
	Names            map[string]string
	Values           map[string]ddbtypes.AttributeValue
	ReferencedFields []string
}

// CompileKeyAndFilter compiles keyCond and an optional filterCond
// through a single expression.Builder, the way ddb_query.go chains
// WithKeyCondition/WithFilter on one builder rather than compiling each
// half independently.
func CompileKeyAndFilter(keyCond, filterCond Predicate) (QueryExpressions, error) {
	kcb, err := toKeyCondition(keyCond)
	if err != nil {
		return QueryExpressions{}, err
	}
	b := expression.NewBuilder().WithKeyCondition(kcb)
	referenced := referencedFields(keyCond)

	if filterCond != nil {
		cb, err := toCondition(filterCond)
		if err != nil {
			return QueryExpressions{}, err
		}
		b = b.WithFilter(cb)
		referenced = append(referenced, referencedFields(filterCond)...)
	}

	expr, err := b.Build()
	if err != nil {
		return QueryExpressions{}, exprErr("build query expression: %v", err)
	}
	out := QueryExpressions{
		KeyCondition:     *expr.KeyCondition(),
		Names:            expr.Names(),
		Values:           expr.Values(),
		ReferencedFields: referenced,
	}
	if expr.Filter() != nil {
		out.Filter = *expr.Filter()
	}
	return out, nil
}

// CompileUpdateAdd compiles a single numeric ADD update action for
// increment (spec §4.4 Increment).
func CompileUpdateAdd(field string, delta any) (Result, error) {
	ub := expression.Add(expression.Name(field), expression.Value(delta))
	expr, err := expression.NewBuilder().WithUpdate(ub).Build()
	if err != nil {
		return Result{}, exprErr("build update expression: %v", err)
	}
	return Result{
		Expression: *expr.Update(),
		Names:      expr.Names(),
		Values:     expr.Values(),
	}, nil
}

func toCondition(p Predicate) (expression.ConditionBuilder, error) {
	switch n := p.(type) {
	case Comparison:
		name := expression.Name(n.Field)
		val := expression.Value(n.Value)
		switch n.Op {
		case opEq:
			return expression.Equal(name, val), nil
		case opNe:
			return expression.NotEqual(name, val), nil
		case opLt:
			return expression.LessThan(name, val), nil
		case opLte:
			return expression.LessThanEqual(name, val), nil
		case opGt:
			return expression.GreaterThan(name, val), nil
		case opGte:
			return expression.GreaterThanEqual(name, val), nil
		case opBeginsWith:
			return expression.BeginsWith(name, fmt.Sprint(n.Value)), nil
		case opContains:
			return expression.Contains(name, fmt.Sprint(n.Value)), nil
		default:
			return expression.ConditionBuilder{}, exprErr("unsupported comparison operator %q", n.Op)
		}
	case Between:
		return expression.Between(expression.Name(n.Field), expression.Value(n.Lo), expression.Value(n.Hi)), nil
	case In:
		if len(n.Values) == 0 {
			return expression.ConditionBuilder{}, exprErr("IN predicate on field %q needs at least one value", n.Field)
		}
		vals := make([]expression.OperandBuilder, len(n.Values))
		for i, v := range n.Values {
			vals[i] = expression.Value(v)
		}
		return expression.Name(n.Field).In(vals[0], vals[1:]...), nil
	case Exists:
		return expression.AttributeExists(expression.Name(n.Field)), nil
	case NotExists:
		return expression.AttributeNotExists(expression.Name(n.Field)), nil
	case And:
		return combineAnd(n.Operands)
	case Or:
		return combineOr(n.Operands)
	case Not:
		inner, err := toCondition(n.Operand)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Not(inner), nil
	default:
		return expression.ConditionBuilder{}, exprErr("unsupported predicate node %T", p)
	}
}

func combineAnd(operands []Predicate) (expression.ConditionBuilder, error) {
	if len(operands) == 0 {
		return expression.ConditionBuilder{}, exprErr("AND with zero operands")
	}
	acc, err := toCondition(operands[0])
	if err != nil {
		return expression.ConditionBuilder{}, err
	}
	for _, op := range operands[1:] {
		next, err := toCondition(op)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		acc = acc.And(next)
	}
	return acc, nil
}

func combineOr(operands []Predicate) (expression.ConditionBuilder, error) {
	if len(operands) == 0 {
		return expression.ConditionBuilder{}, exprErr("OR with zero operands")
	}
	acc, err := toCondition(operands[0])
	if err != nil {
		return expression.ConditionBuilder{}, err
	}
	for _, op := range operands[1:] {
		next, err := toCondition(op)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		acc = acc.Or(next)
	}
	return acc, nil
}

// toKeyCondition accepts only: a single Eq (hash-only lookup), or an
// And of exactly two operands where the first is an Eq (the hash key)
// and the second is a range-key comparison from {Eq, Lt, Lte, Gt, Gte,
// BeginsWith, Between}.
func toKeyCondition(p Predicate) (expression.KeyConditionBuilder, error) {
	switch n := p.(type) {
	case Comparison:
		if n.Op != opEq {
			return expression.KeyConditionBuilder{}, exprErr("key condition on %q must be an equality unless combined with a hash-key equality", n.Field)
		}
		return expression.KeyEqual(expression.Key(n.Field), expression.Value(n.Value)), nil
	case Between:
		return expression.KeyConditionBuilder{}, exprErr("key condition on %q must be an equality unless combined with a hash-key equality", n.Field)
	case And:
		if len(n.Operands) != 2 {
			return expression.KeyConditionBuilder{}, exprErr("key condition AND must have exactly 2 operands (hash equality and one range condition), got %d", len(n.Operands))
		}
		hashCmp, ok := n.Operands[0].(Comparison)
		if !ok || hashCmp.Op != opEq {
			return expression.KeyConditionBuilder{}, exprErr("key condition's first operand must be a hash-key equality")
		}
		hashKC := expression.KeyEqual(expression.Key(hashCmp.Field), expression.Value(hashCmp.Value))
		rangeKC, err := rangeKeyCondition(n.Operands[1])
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		return hashKC.And(rangeKC), nil
	default:
		return expression.KeyConditionBuilder{}, exprErr("unsupported key condition shape %T", p)
	}
}

func rangeKeyCondition(p Predicate) (expression.KeyConditionBuilder, error) {
	switch n := p.(type) {
	case Comparison:
		name := expression.Key(n.Field)
		val := expression.Value(n.Value)
		switch n.Op {
		case opEq:
			return expression.KeyEqual(name, val), nil
		case opLt:
			return expression.KeyLessThan(name, val), nil
		case opLte:
			return expression.KeyLessThanEqual(name, val), nil
		case opGt:
			return expression.KeyGreaterThan(name, val), nil
		case opGte:
			return expression.KeyGreaterThanEqual(name, val), nil
		case opBeginsWith:
			return expression.KeyBeginsWith(name, fmt.Sprint(n.Value)), nil
		default:
			return expression.KeyConditionBuilder{}, exprErr("range key condition operator %q not allowed", n.Op)
		}
	case Between:
		return expression.KeyBetween(expression.Key(n.Field), expression.Value(n.Lo), expression.Value(n.Hi)), nil
	default:
		return expression.KeyConditionBuilder{}, exprErr("unsupported range key condition shape %T", p)
	}
}
