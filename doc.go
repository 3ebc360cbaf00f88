// Package pocodynamo is a typed object-mapping client over a
// DynamoDB-shaped store. Register a Go struct type once with Register,
// then use the free generic functions — GetItem, PutItem, DeleteItem,
// Increment, and the QueryBuilder/ScanBuilder pair — to move typed values
// in and out of it. Go has no generic methods, so every typed operation
// takes its *Client explicitly rather than hanging off one:
//
//	pocodynamo.MustRegister[Order]("orders", pocodynamo.WithRangeField("CreatedAt"))
//	c := pocodynamo.New(dynamoClient)
//	order, err := pocodynamo.GetItem[Order](ctx, c, customerID, orderID)
//
// The metadata registry (internal/schema), the attribute codec
// (internal/codec) and the predicate/expression compiler
// (internal/predicate) are process-wide and reflection-driven so that
// struct tags, not code generation, describe how a type maps onto its
// table.
package pocodynamo
