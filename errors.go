package baxend

import "github.com/baxend-go/baxend/internal/bxerr"

// AuthError is returned when the server refuses a login attempt, or
// when a later command requires privileges the session does not have.
type AuthError = bxerr.AuthError

// ProtocolError signals desynchronization of the wire protocol. It is
// fatal: the Database that produced it must be closed and not reused.
type ProtocolError = bxerr.ProtocolError

// CommandError reports a server-side failure of a plain command or a
// database mutation.
type CommandError = bxerr.CommandError

// QueryError reports a server-side failure during a query-lifecycle
// operation.
type QueryError = bxerr.QueryError

// NotFound is raised when a non-slice-shaped Table selection yields an
// empty result.
type NotFound = bxerr.NotFound

// TypeCoercionError is raised when a native Go value cannot be coerced
// to/from an XQuery wire representation.
type TypeCoercionError = bxerr.TypeCoercionError

// LockInvariantError is raised when a locking primitive detects a
// violated invariant.
type LockInvariantError = bxerr.LockInvariantError
