package query

import (
	"log/slog"

	"github.com/baxend-go/baxend/internal/dom"
)

// Binder sends one external-variable binding to the server. The root
// package's QueryHandle.Bind satisfies it.
type Binder interface {
	Bind(name, value, xqType string) error
}

// BindParams walks c's selector chain and bound-vars, sending every
// value that varDecls declared a variable for. It must be called with
// the same chain (and therefore the same shape) that was compiled.
// logger may be nil, in which case each bind is logged through
// slog.Default().
func BindParams(c *Chain, b Binder, logger *slog.Logger) error {
	prefixes, err := prefixMap(c.Xmlns)
	if err != nil {
		return err
	}
	return bindParams(c, b, "", prefixes, logOrDefault(logger))
}

func bindParams(c *Chain, b Binder, level string, prefixes map[string]string, l *slog.Logger) error {
	bind := func(name, str, xqType string) error {
		if err := b.Bind(name, str, xqType); err != nil {
			return err
		}
		l.Debug("query: bind", slog.String("name", name), slog.String("type", xqType))
		return nil
	}

	for m, sel := range c.Selectors {
		if sel.Ellipsis {
			continue
		}
		for n, v := range sel.Values {
			name := bindName(level, m, n)
			if !v.IsRange {
				xqType, str, err := Coerce(v.Scalar, prefixes)
				if err != nil {
					return err
				}
				if err := bind(name, str, xqType); err != nil {
					return err
				}
				continue
			}
			if v.Low != nil {
				xqType, str, err := Coerce(v.Low, prefixes)
				if err != nil {
					return err
				}
				if err := bind(name+"_low", str, xqType); err != nil {
					return err
				}
			}
			if v.High != nil {
				xqType, str, err := Coerce(v.High, prefixes)
				if err != nil {
					return err
				}
				if err := bind(name+"_high", str, xqType); err != nil {
					return err
				}
			}
		}
	}

	for _, bv := range c.BoundVars {
		xqType, str, err := Coerce(bv.Value, prefixes)
		if err != nil {
			return err
		}
		if err := bind("$"+bv.Name, str, xqType); err != nil {
			return err
		}
	}

	if len(c.Steps) > 0 && c.Steps[0].isProduct() {
		for k, sub := range c.Steps[0].Product {
			subPrefixes, err := prefixMap(sub.Xmlns)
			if err != nil {
				return err
			}
			if err := bindParams(sub, b, string(digits[k])+level, subPrefixes, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// prefixMap turns a Chain's prefix->URI xmlns-bindings into the
// URI->prefix map Coerce needs to render an Element with the same
// prefixes the compiled query declares, rejecting collisions.
func prefixMap(xmlns map[string]string) (map[string]string, error) {
	t, err := dom.NewPrefixTable(xmlns)
	if err != nil {
		return nil, err
	}
	return t.Map(), nil
}

// BindInserted binds the $inserted variable used by ModeSetTag and
// ModeInsert. xmlns is the same prefix->URI map the chain compiled
// with. logger may be nil, in which case the bind is logged through
// slog.Default().
func BindInserted(b Binder, value any, xmlns map[string]string, logger *slog.Logger) error {
	prefixes, err := prefixMap(xmlns)
	if err != nil {
		return err
	}
	xqType, str, err := Coerce(value, prefixes)
	if err != nil {
		return err
	}
	if err := b.Bind("$inserted", str, xqType); err != nil {
		return err
	}
	logOrDefault(logger).Debug("query: bind", slog.String("name", "$inserted"), slog.String("type", xqType))
	return nil
}
