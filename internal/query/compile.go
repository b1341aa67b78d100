package query

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Mode selects which XQuery shape a Chain compiles to.
type Mode int

const (
	ModeGet Mode = iota
	ModeCount
	ModeKeys
	ModeGetTag
	ModeSetTag
	ModeDelete
	ModeInsert
)

func (m Mode) String() string {
	switch m {
	case ModeGet:
		return "get"
	case ModeCount:
		return "count"
	case ModeKeys:
		return "keys"
	case ModeGetTag:
		return "get-tag"
	case ModeSetTag:
		return "set-tag"
	case ModeDelete:
		return "delete"
	case ModeInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// tupleNamespace qualifies the synthetic <tuple> elements a cartesian
// product's query text returns.
const tupleNamespace = "urn:baxend:tuple"

var numerals = [10]string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

const digits = "1234567890"

// bindName is the "$"-prefixed variable name for selector position
// (level, m, n), used both to render declarations/keyspecs and to name
// the external variable sent to Session.QueryBind — the wire name must
// match the declared name exactly.
func bindName(level string, m, n int) string {
	return fmt.Sprintf("$key%s_%d_%d", level, m, n)
}

// Compile lowers c to XQuery source text for the given mode. ModeInsert
// is built by compileInsert and needs at least one selector.
// logger may be nil, in which case compile-level detail is logged
// through slog.Default().
func Compile(c *Chain, mode Mode, logger *slog.Logger) (string, error) {
	var body string
	var err error

	switch mode {
	case ModeGet:
		body = queryExpr(c, nil, "")
	case ModeCount:
		body = fmt.Sprintf("count(%s)", queryExpr(c, nil, ""))
	case ModeKeys:
		idx := len(c.Selectors)
		if idx >= len(c.Steps) {
			return "", ErrChainExhausted
		}
		keys := c.Steps[idx].Keys
		sel := "/(" + strings.Join(keys, ",") + ")"
		body = queryExpr(c, &sel, "")
	case ModeGetTag:
		p := queryExpr(c, nil, "")
		body = fmt.Sprintf("let $e := %s return if(empty($e)) then () else element { fn:node-name($e) } { $e/@* }", p)
	case ModeSetTag:
		p := queryExpr(c, nil, "")
		body = fmt.Sprintf("let $e := %s return if(empty($e)) then () else replace node $e with element { fn:node-name($inserted) } { $inserted/@*, $e/* }", p)
	case ModeDelete:
		p := queryExpr(c, nil, "")
		body = fmt.Sprintf(`%s/(delete node ., update:output("deleted"))`, p)
	case ModeInsert:
		body, err = compileInsert(c)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("query: unsupported mode %v", mode)
	}

	decls := xmlnsDecls(c.Xmlns)
	decls = append(decls, varDecls(c, "")...)
	if mode == ModeSetTag || mode == ModeInsert {
		decls = append(decls, "declare variable $inserted external;")
	}

	lines := append(decls, body)
	src := strings.Join(lines, "\n")
	logOrDefault(logger).Debug("query: compiled", slog.String("mode", mode.String()), slog.String("query", src))
	return src, nil
}

// compileInsert builds the ModeInsert body: the parent selection
// (everything but the last selected step) plus that step's path stem
// (its path without the final segment), so the new node is inserted
// beside the nodes the last selected step matches.
func compileInsert(c *Chain) (string, error) {
	if len(c.Selectors) == 0 || len(c.Selectors) > len(c.Steps) {
		return "", fmt.Errorf("query: insert requires a fully-selected chain")
	}
	parent := c.clone()
	parent.Selectors = c.Selectors[:len(c.Selectors)-1]
	p := queryExpr(parent, nil, "")
	path := c.Steps[len(parent.Selectors)].Path
	if len(path) > 1 {
		p += "/" + strings.Join(path[:len(path)-1], "/")
	}
	return fmt.Sprintf("insert node $inserted into %s", p), nil
}

// xmlnsDecls renders namespace declarations in a stable order (the
// default, empty-prefix binding first, then the rest sorted) so that
// two Chains built from the same (possibly freshly-constructed) xmlns
// map always compile to identical text.
func xmlnsDecls(xmlns map[string]string) []string {
	prefixes := make([]string, 0, len(xmlns))
	for p := range xmlns {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if prefixes[i] == "" {
			return true
		}
		if prefixes[j] == "" {
			return false
		}
		return prefixes[i] < prefixes[j]
	})

	decls := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		uri := xmlns[prefix]
		if prefix == "" {
			decls = append(decls, fmt.Sprintf(`declare default element namespace "%s";`, uri))
		} else {
			decls = append(decls, fmt.Sprintf(`declare namespace %s = "%s";`, prefix, uri))
		}
	}
	return decls
}

// varDecls renders `declare variable ... external;` lines for every
// bound selector value and bound-var at this level, then recurses into
// a product root's operand chains with a digit appended to level.
func varDecls(c *Chain, level string) []string {
	var decls []string
	for m, sel := range c.Selectors {
		if sel.Ellipsis {
			continue
		}
		for n, v := range sel.Values {
			name := bindName(level, m, n)
			if !v.IsRange {
				decls = append(decls, fmt.Sprintf("declare variable %s external;", name))
				continue
			}
			if v.Low != nil {
				decls = append(decls, fmt.Sprintf("declare variable %s_low external;", name))
			}
			if v.High != nil {
				decls = append(decls, fmt.Sprintf("declare variable %s_high external;", name))
			}
		}
	}
	for _, bv := range c.BoundVars {
		decls = append(decls, fmt.Sprintf("declare variable $%s external;", bv.Name))
	}
	if len(c.Steps) > 0 && c.Steps[0].isProduct() {
		for k, sub := range c.Steps[0].Product {
			decls = append(decls, varDecls(sub, string(digits[k])+level)...)
		}
	}
	return decls
}

// keyspec renders the bracketed predicate for one step given its
// keys-spec and the matching selector values.
func keyspec(keys []string, vals []Value, level string, m int) string {
	var parts []string
	for n, key := range keys {
		if n >= len(vals) {
			break
		}
		val := vals[n]
		name := bindName(level, m, n)
		if key == Positional {
			if val.IsRange {
				if val.Low != nil {
					parts = append(parts, "position()>="+name+"_low")
				}
				if val.High != nil {
					parts = append(parts, "position()<"+name+"_high")
				}
			} else {
				parts = append(parts, name)
			}
			continue
		}
		if val.IsRange {
			if val.Low != nil {
				parts = append(parts, key+">="+name+"_low")
			}
			if val.High != nil {
				parts = append(parts, key+"<"+name+"_high")
			}
		} else {
			parts = append(parts, key+"="+name)
		}
	}
	return "[" + strings.Join(parts, " and ") + "]"
}

// queryExpr is the heart of the planner: it walks the expression chain
// in step with the selector chain (optionally extended by one override
// selector, used by ModeKeys to reach one step further than what has
// actually been subscripted) and produces the XQuery body text.
func queryExpr(c *Chain, override *string, level string) string {
	effLen := len(c.Selectors)
	if override != nil {
		effLen++
	}
	if effLen > len(c.Steps) {
		effLen = len(c.Steps)
	}

	p := fmt.Sprintf(`doc("%s/%s")`, c.DatabaseName, c.Document)
	var s strings.Builder
	indent := 0

	for m := 0; m < effLen; m++ {
		step := c.Steps[m]

		var ks string
		if m < len(c.Selectors) {
			sel := c.Selectors[m]
			if sel.Ellipsis {
				ks = ""
			} else {
				ks = keyspec(step.Keys, sel.Values, level, m)
			}
		} else {
			ks = *override
		}

		switch {
		case step.isProduct():
			p = compileProduct(&s, step, ks, level)
		case step.Filter == "":
			p = p + "/" + strings.Join(step.Path, "/") + ks
		default:
			ind := strings.Repeat(" ", indent)
			fmt.Fprintf(&s, "%sfor $this in %s/%s\n%s where %s\n", ind, p, strings.Join(step.Path, "/"), ind, step.Filter)
			p = "$this" + ks
			indent++
		}
	}

	if s.Len() == 0 {
		return p
	}
	return s.String() + strings.Repeat(" ", indent) + "return " + p
}

// compileProduct emits the let/for/return scaffold for a product-root
// step into s and returns the expression ("$this"+keyspec) that
// subsequent steps should continue from.
func compileProduct(s *strings.Builder, step Step, ks, level string) string {
	for k, sub := range step.Product {
		sel := ""
		subExpr := queryExpr(sub, &sel, string(digits[k])+level)
		fmt.Fprintf(s, "let $%s%s :=\n%s\n", numerals[k], level, subExpr)
	}
	for k := range step.Product {
		comma := ","
		if k == len(step.Product)-1 {
			comma = ""
		}
		if k == 0 {
			fmt.Fprintf(s, "let $this :=\nfor $%s in $%s%s%s\n", numerals[k], numerals[k], level, comma)
		} else {
			fmt.Fprintf(s, "   $%s in $%s%s%s\n", numerals[k], numerals[k], level, comma)
		}
	}
	if step.Filter != "" {
		fmt.Fprintf(s, " where %s\n", step.Filter)
	}
	var fields strings.Builder
	for k := range step.Product {
		fmt.Fprintf(&fields, "{$%s}", numerals[k])
	}
	fmt.Fprintf(s, " return <tuple xmlns=\"%s\">%s</tuple>\n", tupleNamespace, fields.String())
	return "$this" + ks
}
