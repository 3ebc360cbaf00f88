// Package predicate implements the typed predicate DSL and compiler
// described in spec §4.3. Go has no lambda-AST facility to walk, so the
// predicate tree is built explicitly with combinator functions — the
// approach spec.md §9 calls for, grounded on the sort-key-strategy
// functions in the teacher's dynamodb/ddbsdk/sort_key_strategies.go
// generalized from sort keys to any field.
package predicate

// Predicate is a node in the typed predicate tree. Field names passed to
// the constructors below are wire attribute names (schema.FieldDescriptor.Name),
// resolved by the caller before building the tree — this package never
// touches reflection, only the tree shape and its compilation.
type Predicate interface {
	predicateNode()
}

type cmpOp string

const (
	opEq         cmpOp = "="
	opNe         cmpOp = "<>"
	opLt         cmpOp = "<"
	opLte        cmpOp = "<="
	opGt         cmpOp = ">"
	opGte        cmpOp = ">="
	opBeginsWith cmpOp = "begins_with"
	opContains   cmpOp = "contains"
)

// Comparison is a single field-to-value comparison.
type Comparison struct {
	Op    cmpOp
	Field string
	Value any
}

func (Comparison) predicateNode() {}

func Eq(field string, value any) Predicate         { return Comparison{opEq, field, value} }
func Ne(field string, value any) Predicate         { return Comparison{opNe, field, value} }
func Lt(field string, value any) Predicate         { return Comparison{opLt, field, value} }
func Lte(field string, value any) Predicate        { return Comparison{opLte, field, value} }
func Gt(field string, value any) Predicate         { return Comparison{opGt, field, value} }
func Gte(field string, value any) Predicate        { return Comparison{opGte, field, value} }
func BeginsWith(field string, prefix any) Predicate { return Comparison{opBeginsWith, field, prefix} }
func Contains(field string, value any) Predicate   { return Comparison{opContains, field, value} }

// Between matches lo <= field <= hi.
type Between struct {
	Field  string
	Lo, Hi any
}

func (Between) predicateNode() {}

func BetweenValues(field string, lo, hi any) Predicate { return Between{field, lo, hi} }

// In matches field against a set of candidate values.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

func InValues(field string, values ...any) Predicate { return In{field, values} }

// Exists / NotExists test attribute presence.
type Exists struct{ Field string }
type NotExists struct{ Field string }

func (Exists) predicateNode()    {}
func (NotExists) predicateNode() {}

func AttrExists(field string) Predicate    { return Exists{field} }
func AttrNotExists(field string) Predicate { return NotExists{field} }

// And / Or / Not are the logical combinators.
type And struct{ Operands []Predicate }
type Or struct{ Operands []Predicate }
type Not struct{ Operand Predicate }

func (And) predicateNode() {}
func (Or) predicateNode()  {}
func (Not) predicateNode() {}

func AllOf(preds ...Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return And{preds}
}

func AnyOf(preds ...Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return Or{preds}
}

func Negate(p Predicate) Predicate { return Not{p} }
