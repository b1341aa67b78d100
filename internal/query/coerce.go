package query

import (
	"fmt"
	"strconv"
)

// Element is satisfied by a DomValue element: canonical XML rendering
// with the caller's prefix bindings applied at emit time.
type Element interface {
	Canonical(prefixes map[string]string) string
}

// Text is satisfied by a DomValue text node.
type Text interface {
	TextContent() string
}

// Coerce converts a native Go value (as produced by Scalar/Range, or a
// bind-var) into its XQuery type name and wire-serialized string form,
// per the native<->XQuery value table. prefixes supplies the namespace
// bindings an Element should render itself with.
func Coerce(v any, prefixes map[string]string) (xqType, serialized string, err error) {
	switch val := v.(type) {
	case bool:
		if val {
			return "xs:boolean", "true", nil
		}
		return "xs:boolean", "false", nil
	case int:
		return "xs:int", strconv.Itoa(val), nil
	case int32:
		return "xs:int", strconv.FormatInt(int64(val), 10), nil
	case int64:
		return "xs:int", strconv.FormatInt(val, 10), nil
	case float32:
		return "xs:double", strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case float64:
		return "xs:double", strconv.FormatFloat(val, 'g', -1, 64), nil
	case string:
		return "xs:string", val, nil
	case Element:
		return "element()", val.Canonical(prefixes), nil
	case Text:
		return "text()", val.TextContent(), nil
	default:
		return "", "", fmt.Errorf("query: unsupported value type %T", v)
	}
}
