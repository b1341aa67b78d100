// Package dom provides the minimal concrete XML value the in-scope
// components need to compile against. A full DOM wrapper (parse,
// serialize, attribute/child navigation) is an external collaborator's
// concern, but canonical serialization, namespace-prefix-aware
// rendering, and round-trippable parsing from server responses are
// load-bearing for the Table/Database layer above and so are
// implemented here.
package dom

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the four XDM-adjacent value shapes this package
// models.
type Kind int

const (
	KindElement Kind = iota
	KindText
	KindAttribute
	KindDocument
)

// Name is a namespace-qualified name, mirroring encoding/xml.Name.
type Name struct {
	Space string
	Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Attr is one attribute of an Element value.
type Attr struct {
	Name  Name
	Value string
}

// Value is a node in a parsed XML tree: an element, a text run, a
// standalone attribute value, or a document wrapping one root element.
type Value struct {
	Kind     Kind
	Name     Name // Element, Attribute
	Attrs    []Attr
	Children []*Value
	Text     string // Text, Attribute
}

// NewElement builds an element value.
func NewElement(name Name, attrs []Attr, children ...*Value) *Value {
	return &Value{Kind: KindElement, Name: name, Attrs: attrs, Children: children}
}

// NewText builds a text value.
func NewText(s string) *Value {
	return &Value{Kind: KindText, Text: s}
}

// TextContent implements query.Text: the concatenated text of an
// element's descendants, or a text/attribute value's own text.
func (v *Value) TextContent() string {
	switch v.Kind {
	case KindText, KindAttribute:
		return v.Text
	default:
		var sb strings.Builder
		for _, c := range v.Children {
			sb.WriteString(c.TextContent())
		}
		return sb.String()
	}
}

// AttrValue returns the value of the first attribute named local, ignoring
// namespace, and whether it was found.
func (v *Value) AttrValue(local string) (string, bool) {
	for _, a := range v.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// FirstChild returns the first child element named local, ignoring
// namespace, and whether it was found.
func (v *Value) FirstChild(local string) (*Value, bool) {
	for _, c := range v.Children {
		if c.Kind == KindElement && c.Name.Local == local {
			return c, true
		}
	}
	return nil, false
}

// Canonical implements query.Element: a deterministic XML rendering of
// v, with attributes sorted by qualified name and every element
// self-describing its own namespace via an xmlns declaration. prefixes
// maps namespace URI to preferred prefix (the reverse of a Table's
// xmlns-bindings); pass nil to always render namespaces as default
// (unprefixed) declarations, which is sufficient for equality
// comparison.
func (v *Value) Canonical(prefixes map[string]string) string {
	var sb strings.Builder
	v.writeCanonical(&sb, prefixes)
	return sb.String()
}

func (v *Value) writeCanonical(sb *strings.Builder, prefixes map[string]string) {
	switch v.Kind {
	case KindText, KindAttribute:
		sb.WriteString(escapeText(v.Text))
		return
	case KindDocument:
		for _, c := range v.Children {
			c.writeCanonical(sb, prefixes)
		}
		return
	}

	prefix, uri := "", v.Name.Space
	if uri != "" {
		if p, ok := prefixes[uri]; ok {
			prefix = p
		}
	}
	tag := v.Name.Local
	if prefix != "" {
		tag = prefix + ":" + tag
	}

	sb.WriteString("<" + tag)
	if uri != "" {
		if prefix == "" {
			fmt.Fprintf(sb, ` xmlns="%s"`, escapeAttr(uri))
		} else {
			fmt.Fprintf(sb, ` xmlns:%s="%s"`, prefix, escapeAttr(uri))
		}
	}

	attrs := append([]Attr(nil), v.Attrs...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name.String() < attrs[j].Name.String() })
	for _, a := range attrs {
		fmt.Fprintf(sb, ` %s="%s"`, a.Name.Local, escapeAttr(a.Value))
	}
	sb.WriteString(">")
	for _, c := range v.Children {
		c.writeCanonical(sb, prefixes)
	}
	sb.WriteString("</" + tag + ">")
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// Equal reports whether two values have the same canonical form,
// i.e. are XML-canonically equivalent regardless of attribute order.
// Canonical does not renormalize text, so differing Unicode
// normalization forms compare equal only for values built by Parse,
// which stores text and attribute values in NFC.
func Equal(a, b *Value) bool {
	return a.Canonical(nil) == b.Canonical(nil)
}
