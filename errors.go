package pocodynamo

import (
	"fmt"

	"github.com/pocodynamo/pocodynamo/internal/codec"
	"github.com/pocodynamo/pocodynamo/internal/predicate"
	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// SchemaError, EncodingError and ExpressionError are produced deep inside
// the metadata registry, the codec and the expression compiler
// respectively. They're re-exported here as the public error kinds a
// caller matches against with errors.As, per spec §7.
type SchemaError = schema.SchemaError
type EncodingError = codec.EncodingError
type ExpressionError = predicate.ExpressionError

// NotFoundError marks a store error the retry wrapper never retries —
// callers decide what "absent" means at the call site (spec §7).
type NotFoundError struct {
	Table string
	Err   error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pocodynamo: not found in table %q: %v", e.Table, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransientStoreError wraps a store error whose code the retry wrapper
// recognizes as retryable (spec §7). exec() returns it unwrapped only
// when the caller's exemption check matches it; once the retry budget is
// exhausted it comes back wrapped in a TimeoutError.
type TransientStoreError struct {
	Code string
	Err  error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("pocodynamo: transient store error %s: %v", e.Code, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// PermanentStoreError wraps any store error the retry wrapper doesn't
// recognize as retryable — surfaced immediately (spec §7).
type PermanentStoreError struct {
	Err error
}

func (e *PermanentStoreError) Error() string {
	return fmt.Sprintf("pocodynamo: store error: %v", e.Err)
}

func (e *PermanentStoreError) Unwrap() error { return e.Err }

// TimeoutError reports that maxRetryOnExceptionTimeout elapsed inside the
// retry wrapper, or that a schema readiness deadline was exceeded (spec
// §7). The schema operations in ddbschema.go report a timed-out wait
// through this error; they have no boolean success result.
type TimeoutError struct {
	Msg string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pocodynamo: timeout: %s: %v", e.Msg, e.Err)
	}
	return "pocodynamo: timeout: " + e.Msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }
