package wire

// XDMTypeNames maps a streamed typeid byte to its XDM type name.
// Indices with no defined name are the empty string.
var XDMTypeNames = [84]string{
	7:  "function",
	8:  "node()",
	9:  "text()",
	10: "processing-instruction()",
	11: "element()",
	12: "document-node()",
	13: "document-node(element())",
	14: "attribute()",
	15: "comment()",

	32: "item()",
	33: "xs:untyped",
	34: "xs:anyType",
	35: "xs:anySimpleType",
	36: "xs:anyAtomicType",
	37: "xs:untypedAtomic",
	38: "xs:string",
	39: "xs:normalizedString",
	40: "xs:token",
	41: "xs:language",
	42: "xs:NMTOKEN",
	43: "xs:Name",
	44: "xs:NCName",
	45: "xs:ID",
	46: "xs:IDREF",
	47: "xs:ENTITY",
	48: "xs:float",
	49: "xs:double",
	50: "xs:decimal",
	51: "xs:precisionDecimal",
	52: "xs:integer",
	53: "xs:nonPositiveInteger",
	54: "xs:negativeInteger",
	55: "xs:long",
	56: "xs:int",
	57: "xs:short",
	58: "xs:byte",
	59: "xs:nonNegativeInteger",
	60: "xs:unsignedLong",
	61: "xs:unsignedInt",
	62: "xs:unsignedShort",
	63: "xs:unsignedByte",
	64: "xs:positiveInteger",
	65: "xs:duration",
	66: "xs:yearMonthDuration",
	67: "xs:dayTimeDuration",
	68: "xs:dateTime",
	69: "xs:dateTimeStamp",
	70: "xs:date",
	71: "xs:time",
	72: "xs:gYearMonth",
	73: "xs:gYear",
	74: "xs:gMonthDay",
	75: "xs:gDay",
	76: "xs:gMonth",
	77: "xs:boolean",
	78: "basex:binary",
	79: "xs:base64Binary",
	80: "xs:hexBinary",
	81: "xs:anyURI",
	82: "xs:QName",
	83: "xs:NOTATION",
}

// hasFullMetadata reports whether typeid is one whose streamed item in the Full
// results mode (opcode 0x1F) is preceded by an extra XDM metadata
// string (document URI, attribute owner, or QName text).
func hasFullMetadata(typeid byte) bool {
	switch typeid {
	case 12, 14, 82:
		return true
	default:
		return false
	}
}

// XDMTypeName returns the XDM type name for typeid, or "" if typeid is
// out of range or reserved.
func XDMTypeName(typeid byte) string {
	if int(typeid) >= len(XDMTypeNames) {
		return ""
	}
	return XDMTypeNames[typeid]
}
