package query

import "testing"

type fakeElement struct{ rendered string }

func (e fakeElement) Canonical(prefixes map[string]string) string { return e.rendered }

type fakeText struct{ s string }

func (t fakeText) TextContent() string { return t.s }

func TestCoerceScalarTypes(t *testing.T) {
	cases := []struct {
		name       string
		in         any
		wantType   string
		wantSerial string
	}{
		{"bool true", true, "xs:boolean", "true"},
		{"bool false", false, "xs:boolean", "false"},
		{"int", int(7), "xs:int", "7"},
		{"int32", int32(-3), "xs:int", "-3"},
		{"int64", int64(42), "xs:int", "42"},
		{"float32", float32(1.5), "xs:double", "1.5"},
		{"float64", float64(2.25), "xs:double", "2.25"},
		{"string", "alice", "xs:string", "alice"},
	}
	for _, c := range cases {
		gotType, gotSerial, err := Coerce(c.in, nil)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if gotType != c.wantType || gotSerial != c.wantSerial {
			t.Fatalf("%s: got (%q, %q), want (%q, %q)", c.name, gotType, gotSerial, c.wantType, c.wantSerial)
		}
	}
}

func TestCoerceElementUsesCanonicalWithPrefixes(t *testing.T) {
	prefixes := map[string]string{"urn:people": "p"}
	el := fakeElement{rendered: `<p:name xmlns:p="urn:people">Alice</p:name>`}
	xqType, serialized, err := Coerce(el, prefixes)
	if err != nil {
		t.Fatal(err)
	}
	if xqType != "element()" {
		t.Fatalf("got type %q", xqType)
	}
	if serialized != el.rendered {
		t.Fatalf("got %q", serialized)
	}
}

func TestCoerceTextUsesTextContent(t *testing.T) {
	xqType, serialized, err := Coerce(fakeText{s: "hello"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if xqType != "text()" || serialized != "hello" {
		t.Fatalf("got (%q, %q)", xqType, serialized)
	}
}

func TestCoerceRejectsUnsupportedType(t *testing.T) {
	type custom struct{}
	if _, _, err := Coerce(custom{}, nil); err == nil {
		t.Fatalf("expected an error for an unsupported type")
	}
}
