package baxend

import (
	"strconv"
	"strings"

	"github.com/baxend-go/baxend/internal/dom"
	"github.com/baxend-go/baxend/internal/wire"
)

// decodeItem converts one streamed result item to its native Go
// representation, per the typeid -> XDM name -> native value table:
// integer-family types parse to int64, float-family to float64,
// element/document-node to a *dom.Value, text and anything else
// unrecognized pass through as a string, boolean to bool.
func decodeItem(it wire.Item) (any, error) {
	return decodeValue(wire.XDMTypeName(it.TypeID), it.Value)
}

func decodeValue(xdmName, raw string) (any, error) {
	switch {
	case xdmName == "attribute()":
		return decodeAttributeText(raw), nil
	case xdmName == "xs:boolean":
		return raw == "true", nil
	case isIntegerXDM(xdmName):
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &TypeCoercionError{Value: raw, XQType: xdmName, Message: err.Error()}
		}
		return n, nil
	case isFloatXDM(xdmName):
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &TypeCoercionError{Value: raw, XQType: xdmName, Message: err.Error()}
		}
		return f, nil
	case xdmName == "element()", xdmName == "document-node()", xdmName == "document-node(element())":
		v, err := dom.Parse([]byte(raw))
		if err != nil {
			return nil, &TypeCoercionError{Value: raw, XQType: xdmName, Message: err.Error()}
		}
		if v.Kind == dom.KindDocument && len(v.Children) > 0 {
			return v.Children[0], nil
		}
		return v, nil
	default:
		return raw, nil
	}
}

// decodeAttributeText extracts the value out of a streamed attribute
// item rendered as `name="value"`.
func decodeAttributeText(raw string) string {
	_, v, ok := strings.Cut(raw, "=")
	if !ok {
		return raw
	}
	return strings.Trim(v, `"`)
}

func isIntegerXDM(name string) bool {
	switch name {
	case "xs:integer", "xs:int", "xs:long", "xs:short", "xs:byte",
		"xs:nonPositiveInteger", "xs:negativeInteger", "xs:nonNegativeInteger",
		"xs:unsignedLong", "xs:unsignedInt", "xs:unsignedShort", "xs:unsignedByte",
		"xs:positiveInteger":
		return true
	default:
		return false
	}
}

func isFloatXDM(name string) bool {
	switch name {
	case "xs:double", "xs:float", "xs:decimal", "xs:precisionDecimal":
		return true
	default:
		return false
	}
}
