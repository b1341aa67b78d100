package baxend

import (
	"github.com/baxend-go/baxend/internal/wire"
)

// QueryHandle wraps a server-side query id, bound to one compiled
// query source string for its lifetime.
type QueryHandle struct {
	sess   *wire.Session
	id     string
	source string
	open   bool
}

func openQuery(sess *wire.Session, source string) (*QueryHandle, error) {
	id, err := sess.QueryCreate(source)
	if err != nil {
		return nil, err
	}
	return &QueryHandle{sess: sess, id: id, source: source, open: true}, nil
}

// IsOpen reports whether the handle still has a live server-side id.
func (h *QueryHandle) IsOpen() bool { return h.open }

// Close frees the query server-side. Idempotent.
func (h *QueryHandle) Close() error {
	if !h.open {
		return nil
	}
	h.open = false
	return h.sess.QueryClose(h.id)
}

// Bind sets an external variable.
func (h *QueryHandle) Bind(name, value, xqType string) error {
	return h.sess.QueryBind(h.id, name, value, xqType)
}

// Context sets the dynamic context item.
func (h *QueryHandle) Context(value, xqType string) error {
	return h.sess.QueryContext(h.id, value, xqType)
}

// Execute runs the query and returns its whole serialized result.
func (h *QueryHandle) Execute() (string, error) {
	return h.sess.QueryExecute(h.id)
}

// Results streams (typeid, value) pairs without XDM type metadata.
func (h *QueryHandle) Results(yield func(wire.Item) error) error {
	return h.sess.QueryResults(h.id, yield)
}

// Full streams (typeid, xdm-metadata, value) triples.
func (h *QueryHandle) Full(yield func(wire.Item) error) error {
	return h.sess.QueryFull(h.id, yield)
}

// Info returns compilation/profiling diagnostics.
func (h *QueryHandle) Info() (string, error) {
	return h.sess.QueryInfo(h.id)
}

// Options returns serialization parameters.
func (h *QueryHandle) Options() (string, error) {
	return h.sess.QueryOptions(h.id)
}

// Updating reports whether the query contains updating expressions.
func (h *QueryHandle) Updating() (bool, error) {
	return h.sess.QueryUpdating(h.id)
}
