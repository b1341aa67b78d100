package baxend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/baxend-go/baxend/internal/dom"
	"github.com/baxend-go/baxend/internal/query"
	"github.com/baxend-go/baxend/internal/wire"
)

// Table is an immutable, lazily-compiled builder over a Database's
// documents: chained path/keys/filter/product/selector operators
// describe an XQuery expression without ever constructing one by
// hand. Every builder method returns a new Table; the compiled-query
// cache is the only part that mutates, and it does so monotonically
// (memoized per mode).
type Table struct {
	db    *Database
	chain *query.Chain

	mu    sync.Mutex
	cache map[query.Mode]string
}

func newTable(db *Database, document string, xmlns map[string]string) *Table {
	return &Table{
		db:    db,
		chain: query.NewRoot(db.name, document, xmlns),
		cache: make(map[query.Mode]string),
	}
}

func (db *Database) tableFromChain(c *query.Chain) *Table {
	return &Table{db: db, chain: c, cache: make(map[query.Mode]string)}
}

func (t *Table) clone(c *query.Chain) *Table {
	return t.db.tableFromChain(c)
}

// Path appends one or more path segments to the current step. If the
// current step already has a keys-spec, a new step opens.
func (t *Table) Path(segments ...string) *Table {
	c := t.chain
	for _, seg := range segments {
		c = c.ExtendPath(seg)
	}
	return t.clone(c)
}

// KeySpec attaches the keys-spec tuple to the current step: one XQuery
// expression per subscript position, evaluated relative to the
// matched node ($this). An empty spec means "select by position".
func (t *Table) KeySpec(spec ...string) (*Table, error) {
	c, err := t.chain.AttachKeys(spec)
	if err != nil {
		return nil, err
	}
	return t.clone(c), nil
}

// Filter appends a predicate to the current step, AND-combining with
// any filter already attached.
func (t *Table) Filter(predicate string) (*Table, error) {
	c, err := t.chain.AttachFilter(predicate)
	if err != nil {
		return nil, err
	}
	return t.clone(c), nil
}

// BindVar merges one additional externally bound XQuery variable,
// coerced per the native<->XQuery value table at bind time.
func (t *Table) BindVar(name string, value any) *Table {
	return t.clone(t.chain.BindVars(query.BoundVar{Name: name, Value: value}))
}

// All specializes the current step with the "select everything" (...)
// selector.
func (t *Table) All() (*Table, error) {
	c, err := t.chain.Specialize(query.All)
	if err != nil {
		return nil, err
	}
	return t.clone(c), nil
}

// At specializes the current step with concrete key values: one per
// subscript position, each either a plain Go value (wrapped as an
// equality selector) or a query.Value built via query.Range for a
// half-open range.
func (t *Table) At(keys ...any) (*Table, error) {
	values := make([]query.Value, len(keys))
	for i, k := range keys {
		if v, ok := k.(query.Value); ok {
			values[i] = v
		} else {
			values[i] = query.Scalar(k)
		}
	}
	c, err := t.chain.Specialize(query.Of(values...))
	if err != nil {
		return nil, err
	}
	return t.clone(c), nil
}

// Product builds a Cartesian-product Table over two or more operand
// Tables, which must all belong to the same Database. At most 10-fold.
func Product(tables ...*Table) (*Table, error) {
	if len(tables) < 2 {
		panic("baxend: Product requires at least two tables")
	}
	db := tables[0].db
	chains := make([]*query.Chain, len(tables))
	for i, tb := range tables {
		if tb.db != db {
			return nil, query.ErrDifferentDatabase
		}
		chains[i] = tb.chain
	}
	c, err := query.Cartesian(chains...)
	if err != nil {
		return nil, err
	}
	return db.tableFromChain(c), nil
}

// compile returns the memoized XQuery source for mode, compiling (and
// caching) it on first reference.
func (t *Table) compile(mode query.Mode) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.cache[mode]; ok {
		return s, nil
	}
	s, err := query.Compile(t.chain, mode, t.db.sess.Logger())
	if err != nil {
		return "", err
	}
	t.cache[mode] = s
	return s, nil
}

func (t *Table) openHandle(mode query.Mode) (*QueryHandle, error) {
	src, err := t.compile(mode)
	if err != nil {
		return nil, err
	}
	return t.db.cache.Get(src)
}

func (t *Table) bindParams(h *QueryHandle) error {
	return query.BindParams(t.chain, h, t.db.sess.Logger())
}

// lockKeys returns the document name(s) this Table's queries touch,
// for coordinating with the Database's lock Coordinator.
func (t *Table) lockKeys() []string {
	if len(t.chain.Documents) > 0 {
		return t.chain.Documents
	}
	return []string{t.chain.Document}
}

// notFoundKey builds the key reported in a NotFound error for this
// Table's current selector chain.
func (t *Table) notFoundKey() any {
	if len(t.chain.Selectors) == 0 {
		return t.chain.Document
	}
	last := t.chain.Selectors[len(t.chain.Selectors)-1]
	vals := make([]any, len(last.Values))
	for i, v := range last.Values {
		vals[i] = v.Scalar
	}
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// Get executes the Table's current selection. For a non-slice-shaped
// selection (no Ellipsis or range selector), it returns the single
// matched native value (bool, int64, float64, string, or *dom.Value)
// and a NotFound error if nothing matched. For a slice-shaped
// selection it returns a []any of every matched value, possibly empty.
func (t *Table) Get(ctx context.Context) (any, error) {
	h, err := t.openHandle(query.ModeGet)
	if err != nil {
		return nil, err
	}

	var items []wire.Item
	err = t.db.locks.ReadSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		return h.Full(func(it wire.Item) error {
			items = append(items, it)
			return nil
		})
	}, t.lockKeys()...)
	if err != nil {
		return nil, err
	}

	slice := t.chain.IsSliceShaped()
	if len(items) == 0 {
		if slice {
			return []any{}, nil
		}
		return nil, &NotFound{Key: t.notFoundKey()}
	}
	if !slice {
		return decodeItem(items[0])
	}
	vals := make([]any, len(items))
	for i, it := range items {
		v, err := decodeItem(it)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// Count executes the count-wrapped query and returns the number of
// matches.
func (t *Table) Count(ctx context.Context) (int, error) {
	h, err := t.openHandle(query.ModeCount)
	if err != nil {
		return 0, err
	}

	var result string
	err = t.db.locks.ReadSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		result, err = h.Execute()
		return err
	}, t.lockKeys()...)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return 0, fmt.Errorf("baxend: count: %w", err)
	}
	return n, nil
}

// Contains reports whether this selection matches at least one item.
func (t *Table) Contains(ctx context.Context) (bool, error) {
	n, err := t.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys lists the key-tuples of the step one level past the current
// selector chain, grouped by that step's keys-spec cardinality: a
// single-key step yields one native value per match, a multi-key step
// yields a []any tuple per match.
func (t *Table) Keys(ctx context.Context) ([]any, error) {
	keySpec := t.chain.LastStepKeys()
	l := len(keySpec)
	if l == 0 {
		return nil, nil
	}

	h, err := t.openHandle(query.ModeKeys)
	if err != nil {
		return nil, err
	}

	var raw []wire.Item
	err = t.db.locks.ReadSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		return h.Full(func(it wire.Item) error {
			raw = append(raw, it)
			return nil
		})
	}, t.lockKeys()...)
	if err != nil {
		return nil, err
	}

	var out []any
	for i := 0; i < len(raw); i += l {
		group := raw[i:min(i+l, len(raw))]
		tuple := make([]any, len(group))
		for j, it := range group {
			v, err := decodeItem(it)
			if err != nil {
				return nil, err
			}
			tuple[j] = v
		}
		if l == 1 {
			out = append(out, tuple[0])
		} else {
			out = append(out, tuple)
		}
	}
	return out, nil
}

// Tag returns an element with the same name and attributes as the
// currently matched node, but no children.
func (t *Table) Tag(ctx context.Context) (*dom.Value, error) {
	h, err := t.openHandle(query.ModeGetTag)
	if err != nil {
		return nil, err
	}

	var items []wire.Item
	err = t.db.locks.ReadSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		return h.Full(func(it wire.Item) error {
			items = append(items, it)
			return nil
		})
	}, t.lockKeys()...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &NotFound{Key: t.notFoundKey()}
	}
	v, err := decodeItem(items[0])
	if err != nil {
		return nil, err
	}
	el, ok := v.(*dom.Value)
	if !ok {
		return nil, &TypeCoercionError{Value: v, XQType: "element()", Message: "tag did not return an element"}
	}
	return el, nil
}

// SetTag replaces the currently matched node's name and attributes
// with those of value, preserving its children.
func (t *Table) SetTag(ctx context.Context, value any) error {
	h, err := t.openHandle(query.ModeSetTag)
	if err != nil {
		return err
	}
	return t.db.locks.WriteSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		if err := query.BindInserted(h, value, t.chain.Xmlns, t.db.sess.Logger()); err != nil {
			return err
		}
		_, err := h.Execute()
		return err
	}, t.lockKeys()...)
}

// Delete removes every node matched by the current selection.
func (t *Table) Delete(ctx context.Context) error {
	h, err := t.openHandle(query.ModeDelete)
	if err != nil {
		return err
	}
	return t.db.locks.WriteSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		_, err := h.Execute()
		return err
	}, t.lockKeys()...)
}

// Insert inserts value as a new child under the parent path of the
// last selected step: the selection without its last selector,
// followed by that step's path minus its final segment.
func (t *Table) Insert(ctx context.Context, value any) error {
	h, err := t.openHandle(query.ModeInsert)
	if err != nil {
		return err
	}
	return t.db.locks.WriteSection(func() error {
		if err := t.bindParams(h); err != nil {
			return err
		}
		if err := query.BindInserted(h, value, t.chain.Xmlns, t.db.sess.Logger()); err != nil {
			return err
		}
		_, err := h.Execute()
		return err
	}, t.lockKeys()...)
}

// Set is the upsert convenience the dictionary-style assignment
// operators map to: delete any node already matching the current
// selection (a no-op if none match), then insert value under the
// parent path. The two operations run as one write-locked section.
func (t *Table) Set(ctx context.Context, value any) error {
	deleteHandle, err := t.openHandle(query.ModeDelete)
	if err != nil {
		return err
	}
	insertHandle, err := t.openHandle(query.ModeInsert)
	if err != nil {
		return err
	}
	return t.db.locks.WriteSection(func() error {
		if err := t.bindParams(deleteHandle); err != nil {
			return err
		}
		if _, err := deleteHandle.Execute(); err != nil {
			return err
		}
		if err := t.bindParams(insertHandle); err != nil {
			return err
		}
		if err := query.BindInserted(insertHandle, value, t.chain.Xmlns, t.db.sess.Logger()); err != nil {
			return err
		}
		_, err := insertHandle.Execute()
		return err
	}, t.lockKeys()...)
}
