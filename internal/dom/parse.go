package dom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Parse decodes a server response body into a Document value. Text
// content is normalized to NFC so that two XML-equivalent documents
// compare equal via Equal regardless of the composed/decomposed form
// the server happened to send. Whitespace-only text nodes between
// element siblings are dropped.
func Parse(data []byte) (*Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var stack []*Value
	var root *Value

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dom: parse: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Value{Kind: KindElement, Name: Name{Space: t.Name.Space, Local: t.Name.Local}}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: Name{Space: a.Name.Space, Local: a.Name.Local}, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := norm.NFC.String(string(t))
			if strings.TrimSpace(text) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Value{Kind: KindText, Text: text})
		}
	}

	if root == nil {
		return nil, fmt.Errorf("dom: parse: no root element")
	}
	return &Value{Kind: KindDocument, Children: []*Value{root}}, nil
}
