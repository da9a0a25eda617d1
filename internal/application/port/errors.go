package port

import "errors"

// ErrDuplicateKey is returned by repository Create methods when a
// unique constraint rejects the row. Services translate it into their
// own idempotency semantics; it is the backstop for races the
// lookup-before-insert pattern cannot see.
var ErrDuplicateKey = errors.New("duplicate key")
