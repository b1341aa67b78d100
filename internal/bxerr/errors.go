// Package bxerr defines the error kinds raised across the wire, query and
// table layers. They are re-exported under stable names by the root
// package so callers never need to import this package directly.
package bxerr

import "fmt"

// AuthError is returned when the server refuses a login attempt, or when
// a later command requires privileges the session does not have.
type AuthError struct {
	User string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("access denied for user %q", e.User)
}

// ProtocolError signals desynchronization of the wire protocol: an
// unexpected status byte, leftover bytes in a buffer after a complete
// operation, or any other violation of the framing contract. It is
// fatal — the session that produced it must be closed and not reused.
type ProtocolError struct {
	Op      string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Op == "" {
		return "protocol error: " + e.Message
	}
	return fmt.Sprintf("protocol error (%s): %s", e.Op, e.Message)
}

// CommandError reports a server-side failure (status byte 1) of a plain
// command or a database mutation (CREATE/ADD/PUT/PUTBINARY/CLOSE-db).
type CommandError struct {
	Op   string
	Info string
	Args []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command error (%s): %s %v", e.Op, e.Info, e.Args)
}

// QueryError reports a server-side failure (status byte 1) during any
// query-lifecycle operation (create/bind/context/execute/results/full/
// info/options/updating/close).
type QueryError struct {
	Op   string
	Info string
	// QueryID is the server-assigned query id, when one had been
	// assigned; empty for failures during query creation itself.
	QueryID string
	// Source is the query text, echoed for QUERY-CREATE failures.
	Source string
}

func (e *QueryError) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("query error (%s, id=%s): %s", e.Op, e.QueryID, e.Info)
	}
	return fmt.Sprintf("query error (%s): %s", e.Op, e.Info)
}

// NotFound is raised when a non-slice-shaped Table selection yields an
// empty result: the user asked for exactly one key and the server had
// none matching it.
type NotFound struct {
	Key any
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("key not found: %v", e.Key)
}

// TypeCoercionError is raised when a native Go value cannot be coerced
// to/from an XQuery wire representation.
type TypeCoercionError struct {
	Value   any
	XQType  string
	Message string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %v (%T) to/from %s: %s", e.Value, e.Value, e.XQType, e.Message)
}

// LockInvariantError is raised when a locking primitive detects a
// violated invariant, such as a composite counter delta that is not
// evenly divisible across its underlying counters.
type LockInvariantError struct {
	Message string
}

func (e *LockInvariantError) Error() string {
	return "lock invariant violated: " + e.Message
}
