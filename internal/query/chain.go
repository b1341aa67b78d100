// Package query implements the Table expression algebra: an immutable
// chain of path/keys/filter steps and selectors that compiles to
// parameterized XQuery source text, plus the parameter-binding walk
// that accompanies it.
package query

import "errors"

// Positional is the sentinel keys-spec entry meaning "select by
// position rather than by a key expression".
const Positional = ""

var (
	ErrNestedProduct     = errors.New("query: a product root's operands may not themselves be product roots")
	ErrTooManyOperands   = errors.New("query: at most 10-fold cartesian products are supported")
	ErrKeysBeforePath    = errors.New("query: attach-keys requires a path segment first")
	ErrKeysAlreadySet    = errors.New("query: this step already has a keys-spec")
	ErrFilterBeforePath  = errors.New("query: attach-filter requires an existing step")
	ErrChainExhausted    = errors.New("query: selector chain is already as long as the expression chain")
	ErrDifferentDatabase = errors.New("query: cartesian product operands must share a database")
)

// Step is one element of a Chain's expression-chain: a path extension,
// optionally keyed and filtered, or (only at index 0) a product root
// whose Path is empty and whose Product holds the operand chains.
type Step struct {
	Path    []string // path segments joined with "/"; empty for a product root
	Product []*Chain // non-nil only for a product-root step
	Keys    []string // nil = unselected; Positional entries mean "by position"
	Filter  string    // "" = none; successive attach-filter calls AND-combine
}

func (s Step) hasKeys() bool   { return s.Keys != nil }
func (s Step) isProduct() bool { return s.Product != nil }

// Value is one selector value: either a scalar or a half-open range.
// A range with both bounds nil behaves like Ellipsis for that position
// but is not expected to occur (callers should use Ellipsis instead).
type Value struct {
	IsRange    bool
	Scalar     any // bool, int64, float64, string, or a dom value
	Low, High  any // present iff non-nil; only meaningful when IsRange
}

// Scalar builds an equality selector value.
func Scalar(v any) Value { return Value{Scalar: v} }

// Range builds a half-open [low, high) selector value. Either bound
// may be nil to mean "unbounded on that side".
func Range(low, high any) Value { return Value{IsRange: true, Low: low, High: high} }

// Selector specializes one step. Ellipsis selects the whole range;
// otherwise Values must match the step's Keys in cardinality.
type Selector struct {
	Ellipsis bool
	Values   []Value
}

// All is the Ellipsis selector.
var All = Selector{Ellipsis: true}

// Of builds a selector from concrete values.
func Of(values ...Value) Selector { return Selector{Values: values} }

// BoundVar is one externally bound XQuery variable outside the
// selector chain (used by bind-vars, and internally by the insert/
// set-tag modes for $inserted).
type BoundVar struct {
	Name  string
	Value any
}

// Chain is the immutable, shareable representation of a Table's
// expression tree. Every builder method returns a new Chain; nothing
// is mutated in place except the compiled-query memoization cache,
// which Compile manages internally via a supplied cache map.
type Chain struct {
	DatabaseName string
	Document     string // single document name; empty when Documents is set
	Documents    []string // sorted, deduplicated document set (product roots)

	Steps     []Step
	Selectors []Selector

	Xmlns     map[string]string // prefix (""=default) -> namespace URI
	BoundVars []BoundVar
}

// NewRoot builds the empty chain rooted at one document.
func NewRoot(databaseName, document string, xmlns map[string]string) *Chain {
	return &Chain{DatabaseName: databaseName, Document: document, Xmlns: xmlns}
}

func (c *Chain) clone() *Chain {
	cp := *c
	cp.Steps = append([]Step(nil), c.Steps...)
	cp.Selectors = append([]Selector(nil), c.Selectors...)
	cp.BoundVars = append([]BoundVar(nil), c.BoundVars...)
	return &cp
}

func (c *Chain) lastOpenStep() (Step, bool) {
	if len(c.Steps) == 0 {
		return Step{}, false
	}
	last := c.Steps[len(c.Steps)-1]
	return last, !last.hasKeys()
}

// ExtendPath appends a path segment. If the last step already has a
// keys-spec, a new step is opened; otherwise the segment is appended
// to the current step's path (joined with "/").
func (c *Chain) ExtendPath(segment string) *Chain {
	cp := c.clone()
	if last, open := cp.lastOpenStep(); open && !last.isProduct() {
		last.Path = append(append([]string(nil), last.Path...), segment)
		cp.Steps[len(cp.Steps)-1] = last
	} else {
		cp.Steps = append(cp.Steps, Step{Path: []string{segment}})
	}
	return cp
}

// AttachKeys attaches a keys-spec to the last step. An empty spec
// becomes a single Positional entry.
func (c *Chain) AttachKeys(spec []string) (*Chain, error) {
	if len(c.Steps) == 0 {
		return nil, ErrKeysBeforePath
	}
	last := c.Steps[len(c.Steps)-1]
	if last.hasKeys() {
		return nil, ErrKeysAlreadySet
	}
	if len(spec) == 0 {
		spec = []string{Positional}
	}
	cp := c.clone()
	last.Keys = append([]string(nil), spec...)
	cp.Steps[len(cp.Steps)-1] = last
	return cp, nil
}

// AttachFilter appends a predicate to the last step, AND-combining with
// any filter already present.
func (c *Chain) AttachFilter(predicate string) (*Chain, error) {
	if len(c.Steps) == 0 {
		return nil, ErrFilterBeforePath
	}
	cp := c.clone()
	last := cp.Steps[len(cp.Steps)-1]
	if last.Filter == "" {
		last.Filter = predicate
	} else {
		last.Filter = last.Filter + " and (" + predicate + ")"
	}
	cp.Steps[len(cp.Steps)-1] = last
	return cp, nil
}

// isProductRoot reports whether c's single step is a product root.
func (c *Chain) isProductRoot() bool {
	return len(c.Steps) == 1 && c.Steps[0].isProduct() && !c.Steps[0].hasKeys() && c.Steps[0].Filter == ""
}

// Cartesian builds a product-rooted chain from operand chains
// (already subscripted with their own selectors, per the original's
// "self[...]" convention). A bare product-root operand (no keys,
// filter or further steps) is flattened into its own operands; any
// other operand whose first step is a product root is rejected with
// ErrNestedProduct (one level of nesting only).
func Cartesian(operands ...*Chain) (*Chain, error) {
	if len(operands) < 2 {
		panic("query: Cartesian requires at least two operands")
	}
	var flat []*Chain
	for _, op := range operands {
		if op.isProductRoot() {
			flat = append(flat, op.Steps[0].Product...)
		} else {
			flat = append(flat, op)
		}
	}
	if len(flat) > 10 {
		return nil, ErrTooManyOperands
	}
	for _, sub := range flat {
		if len(sub.Steps) > 0 && sub.Steps[0].isProduct() {
			return nil, ErrNestedProduct
		}
	}

	dbName := flat[0].DatabaseName
	docSet := map[string]struct{}{}
	for _, sub := range flat {
		if sub.DatabaseName != dbName {
			return nil, ErrDifferentDatabase
		}
		if sub.Document != "" {
			docSet[sub.Document] = struct{}{}
		}
		for _, d := range sub.Documents {
			docSet[d] = struct{}{}
		}
	}
	docs := make([]string, 0, len(docSet))
	for d := range docSet {
		docs = append(docs, d)
	}
	sortStrings(docs)

	return &Chain{
		DatabaseName: dbName,
		Documents:    docs,
		Steps:        []Step{{Product: flat}},
		Xmlns:        operands[0].Xmlns,
	}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// BindVars merges additional externally bound variables.
func (c *Chain) BindVars(vars ...BoundVar) *Chain {
	cp := c.clone()
	cp.BoundVars = append(cp.BoundVars, vars...)
	return cp
}

// Specialize appends one selector to the selector-chain. Fails once
// the selector chain is already as long as the expression chain.
func (c *Chain) Specialize(sel Selector) (*Chain, error) {
	if len(c.Selectors) >= len(c.Steps) {
		return nil, ErrChainExhausted
	}
	cp := c.clone()
	cp.Selectors = append(cp.Selectors, sel)
	return cp, nil
}

// IsSliceShaped reports whether any selector is Ellipsis or contains a
// range value — meaning the Table denotes a set rather than a single
// item.
func (c *Chain) IsSliceShaped() bool {
	for _, sel := range c.Selectors {
		if sel.Ellipsis {
			return true
		}
		for _, v := range sel.Values {
			if v.IsRange {
				return true
			}
		}
	}
	return false
}

// LastStepKeys returns the keys-spec of the step at the selector
// chain's current depth (the next step to be selected), used by the
// Keys mode.
func (c *Chain) LastStepKeys() []string {
	idx := len(c.Selectors)
	if idx >= len(c.Steps) {
		return nil
	}
	return c.Steps[idx].Keys
}
