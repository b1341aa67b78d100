package query

import "testing"

type recordedBind struct {
	name, value, xqType string
}

type fakeBinder struct {
	calls []recordedBind
}

func (f *fakeBinder) Bind(name, value, xqType string) error {
	f.calls = append(f.calls, recordedBind{name, value, xqType})
	return nil
}

func TestBindParamsSendsScalarSelectorValues(t *testing.T) {
	c := t1KeyedFirst(t)
	b := &fakeBinder{}
	if err := BindParams(c, b, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 1 {
		t.Fatalf("got %d calls, want 1: %+v", len(b.calls), b.calls)
	}
	want := recordedBind{"$key_0_0", "First", "xs:string"}
	if b.calls[0] != want {
		t.Fatalf("got %+v, want %+v", b.calls[0], want)
	}
}

func TestBindParamsSkipsEllipsisSelectors(t *testing.T) {
	c, err := buildT1(t).Specialize(All)
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBinder{}
	if err := BindParams(c, b, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 0 {
		t.Fatalf("expected no binds for an Ellipsis selector, got %+v", b.calls)
	}
}

func TestBindParamsSendsRangeLowAndHighSeparately(t *testing.T) {
	c, err := buildT1(t).Specialize(Of(Range(int64(1), int64(3))))
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBinder{}
	if err := BindParams(c, b, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(b.calls), b.calls)
	}
	if b.calls[0] != (recordedBind{"$key_0_0_low", "1", "xs:int"}) {
		t.Fatalf("got %+v", b.calls[0])
	}
	if b.calls[1] != (recordedBind{"$key_0_0_high", "3", "xs:int"}) {
		t.Fatalf("got %+v", b.calls[1])
	}
}

func TestBindParamsOmitsUnboundedRangeSide(t *testing.T) {
	c, err := buildT1(t).Specialize(Of(Range(nil, int64(3))))
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBinder{}
	if err := BindParams(c, b, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 1 {
		t.Fatalf("got %d calls, want 1: %+v", len(b.calls), b.calls)
	}
	if b.calls[0] != (recordedBind{"$key_0_0_high", "3", "xs:int"}) {
		t.Fatalf("got %+v", b.calls[0])
	}
}

func TestBindParamsSendsBoundVars(t *testing.T) {
	c := buildT1(t).BindVars(BoundVar{Name: "threshold", Value: int64(10)})
	b := &fakeBinder{}
	if err := BindParams(c, b, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 1 || b.calls[0] != (recordedBind{"$threshold", "10", "xs:int"}) {
		t.Fatalf("got %+v", b.calls)
	}
}

func TestBindParamsRecursesIntoProductOperands(t *testing.T) {
	a, err := (NewRoot("db", "one.xml", nil).ExtendPath("x")).AttachKeys([]string{"@id"})
	if err != nil {
		t.Fatal(err)
	}
	a, err = a.Specialize(Of(Scalar(int64(1))))
	if err != nil {
		t.Fatal(err)
	}
	bb, err := (NewRoot("db", "one.xml", nil).ExtendPath("y")).AttachKeys([]string{"@id"})
	if err != nil {
		t.Fatal(err)
	}
	bb, err = bb.Specialize(Of(Scalar(int64(2))))
	if err != nil {
		t.Fatal(err)
	}
	prod, err := Cartesian(a, bb)
	if err != nil {
		t.Fatal(err)
	}

	binder := &fakeBinder{}
	if err := BindParams(prod, binder, nil); err != nil {
		t.Fatal(err)
	}
	if len(binder.calls) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(binder.calls), binder.calls)
	}
	if binder.calls[0] != (recordedBind{"$key1_0_0", "1", "xs:int"}) {
		t.Fatalf("first operand: got %+v", binder.calls[0])
	}
	if binder.calls[1] != (recordedBind{"$key2_0_0", "2", "xs:int"}) {
		t.Fatalf("second operand: got %+v", binder.calls[1])
	}
}

func TestBindParamsRejectsCollidingNamespacePrefixes(t *testing.T) {
	c := NewRoot("db", "one.xml", map[string]string{"p": "urn:a", "q": "urn:a"}).ExtendPath("x")
	c, err := c.AttachKeys([]string{"@id"})
	if err != nil {
		t.Fatal(err)
	}
	c, err = c.Specialize(Of(Scalar(int64(1))))
	if err != nil {
		t.Fatal(err)
	}
	if err := BindParams(c, &fakeBinder{}, nil); err == nil {
		t.Fatalf("expected an error for two prefixes bound to the same namespace URI")
	}
}

func TestBindInsertedCoercesThroughInvertedXmlns(t *testing.T) {
	b := &fakeBinder{}
	el := fakeElement{rendered: `<p:name xmlns:p="urn:people">Alice</p:name>`}
	if err := BindInserted(b, el, map[string]string{"p": "urn:people"}, nil); err != nil {
		t.Fatal(err)
	}
	if len(b.calls) != 1 {
		t.Fatalf("got %+v", b.calls)
	}
	if b.calls[0].name != "$inserted" || b.calls[0].xqType != "element()" || b.calls[0].value != el.rendered {
		t.Fatalf("got %+v", b.calls[0])
	}
}

func TestBindInsertedRejectsCollidingNamespacePrefixes(t *testing.T) {
	b := &fakeBinder{}
	el := fakeElement{rendered: `<name>Alice</name>`}
	xmlns := map[string]string{"p": "urn:people", "q": "urn:people"}
	if err := BindInserted(b, el, xmlns, nil); err == nil {
		t.Fatalf("expected an error for two prefixes bound to the same namespace URI")
	}
}
