package dom

import "testing"

func TestParseRoundTripsThroughCanonical(t *testing.T) {
	src := `<person id="7"><name>Alice</name></person>`
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != KindDocument || len(doc.Children) != 1 {
		t.Fatalf("expected one root child, got %+v", doc)
	}
	root := doc.Children[0]
	if root.Name.Local != "person" {
		t.Fatalf("got root name %q", root.Name.Local)
	}
	if id, ok := root.AttrValue("id"); !ok || id != "7" {
		t.Fatalf("AttrValue(id) = %q, %v", id, ok)
	}
	name, ok := root.FirstChild("name")
	if !ok || name.TextContent() != "Alice" {
		t.Fatalf("FirstChild(name) = %+v, %v", name, ok)
	}
}

func TestParseDropsWhitespaceOnlyText(t *testing.T) {
	src := "<a>\n  <b>x</b>\n  <c>y</c>\n</a>"
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	root := doc.Children[0]
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 element children, got %d: %+v", len(root.Children), root.Children)
	}
}

func TestParsePreservesNamespace(t *testing.T) {
	src := `<person xmlns="urn:people"><name>Alice</name></person>`
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	root := doc.Children[0]
	if root.Name.Space != "urn:people" {
		t.Fatalf("got namespace %q", root.Name.Space)
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	if _, err := Parse([]byte("")); err == nil {
		t.Fatalf("expected an error for empty input")
	}
}

func TestParseNormalizesToNFC(t *testing.T) {
	// "e" (U+0065) followed by a combining acute accent (U+0301): the
	// decomposed form of U+00E9. Written with escapes, not literal bytes,
	// so the source text can't be silently renormalized by an editor.
	decomposed := "e\u0301"
	composed := "\u00e9"
	src := "<note>" + decomposed + "</note>"

	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Children[0].TextContent(); got != composed {
		t.Fatalf("got %q (% x), want %q (% x)", got, []byte(got), composed, []byte(composed))
	}
}
