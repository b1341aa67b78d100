package baxend

import (
	"context"
	"testing"
	"time"

	"github.com/baxend-go/baxend/internal/wire"
)

// connectFakeDatabase dials, authenticates, and CHECKs into a database
// name against a fake server, then hands the remaining conversation to
// afterCheck. It mirrors openFakeSession but returns a full *Database
// since Table methods need a Database's cache and lock coordinator.
func connectFakeDatabase(t *testing.T, name string, afterCheck func(codec *wire.Codec)) *Database {
	t.Helper()
	addr := fakeServer(t, func(codec *wire.Codec) {
		serverLogin(t, codec, "realm1", "nonce1", "admin", "secret")
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		serverCommand(t, codec) // CHECK <name>
		codec.SendString("")
		codec.SendString("")
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		afterCheck(codec)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := Connect(ctx, Config{Address: addr, User: "admin", Password: "secret"}, name)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// serverQueryCreate consumes one QUERY CREATE request and replies with id.
func serverQueryCreate(t *testing.T, codec *wire.Codec, id string) {
	t.Helper()
	opcode, err := codec.RecvByte()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // query text
		t.Error(err)
		return
	}
	if opcode != 0x00 {
		t.Errorf("got opcode 0x%02x, want 0x00 (QUERY CREATE)", opcode)
	}
	codec.SendString(id)
	codec.SendByte(fakeStatusOK)
	codec.Flush()
}

// serverBind consumes one QUERY BIND request. If wantName is non-empty
// the bound variable name is checked against it.
func serverBind(t *testing.T, codec *wire.Codec, wantName string) {
	t.Helper()
	opcode, err := codec.RecvByte()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // id
		t.Error(err)
		return
	}
	name, err := codec.RecvString()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // value
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // type
		t.Error(err)
		return
	}
	if opcode != 0x03 {
		t.Errorf("got opcode 0x%02x, want 0x03 (QUERY BIND)", opcode)
	}
	if wantName != "" && name != wantName {
		t.Errorf("got bind name %q, want %q", name, wantName)
	}
	codec.SendByte(0x00) // the bindLike quirk: an extra leading zero byte
	codec.SendByte(fakeStatusOK)
	codec.Flush()
}

// serverExecute consumes one QUERY EXECUTE request and replies with result.
func serverExecute(t *testing.T, codec *wire.Codec, result string) {
	t.Helper()
	opcode, err := codec.RecvByte()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // id
		t.Error(err)
		return
	}
	if opcode != 0x05 {
		t.Errorf("got opcode 0x%02x, want 0x05 (QUERY EXECUTE)", opcode)
	}
	codec.SendString(result)
	codec.SendByte(fakeStatusOK)
	codec.Flush()
}

// serverFull consumes one QUERY FULL request and streams back items,
// terminating with a zero typeid and an OK status.
func serverFull(t *testing.T, codec *wire.Codec, items []wire.Item) {
	t.Helper()
	opcode, err := codec.RecvByte()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := codec.RecvString(); err != nil { // id
		t.Error(err)
		return
	}
	if opcode != 0x1F {
		t.Errorf("got opcode 0x%02x, want 0x1F (QUERY FULL)", opcode)
	}
	for _, it := range items {
		codec.SendByte(it.TypeID)
		if it.XDM != "" {
			codec.SendString(it.XDM)
		}
		codec.SendString(it.Value)
	}
	codec.SendByte(0x00)
	codec.SendByte(fakeStatusOK)
	codec.Flush()
}

func TestTableGetReturnsEmptySliceForSliceShapedEmptySelection(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverFull(t, codec, nil)
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "item").All()
	if err != nil {
		t.Fatal(err)
	}
	got, err := tbl.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	items, ok := got.([]any)
	if !ok || len(items) != 0 {
		t.Fatalf("got %#v, want an empty []any", got)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableGetReturnsNotFoundForNonSliceEmptySelection(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverBind(t, codec, "$key_0_0")
		serverFull(t, codec, nil)
		close(doneCh)
	})

	tbl2, err := db.Doc("people.xml", nil).Path("root", "person").KeySpec("@id")
	if err != nil {
		t.Fatal(err)
	}
	tbl2, err = tbl2.At("alice")
	if err != nil {
		t.Fatal(err)
	}

	_, err = tbl2.Get(context.Background())
	nf, ok := err.(*NotFound)
	if !ok {
		t.Fatalf("got %T (%v), want *NotFound", err, err)
	}
	if nf.Key != "alice" {
		t.Fatalf("got key %v, want alice", nf.Key)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableGetDecodesScalarMatch(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverBind(t, codec, "$key_0_0")
		serverFull(t, codec, []wire.Item{{TypeID: 56, Value: "42"}}) // xs:int
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").KeySpec("@id")
	if err != nil {
		t.Fatal(err)
	}
	tbl, err = tbl.At("alice")
	if err != nil {
		t.Fatal(err)
	}

	got, err := tbl.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	n, ok := got.(int64)
	if !ok || n != 42 {
		t.Fatalf("got %#v, want int64(42)", got)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableCountParsesResult(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverExecute(t, codec, "3")
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").All()
	if err != nil {
		t.Fatal(err)
	}
	n, err := tbl.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableContainsReflectsNonZeroCount(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverExecute(t, codec, "0")
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").All()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := tbl.Contains(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected Contains to report false for a zero count")
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableKeysReturnsNilWhenNextStepHasNoKeySpec(t *testing.T) {
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {})

	tbl := db.Doc("people.xml", nil).Path("root", "person")
	keys, err := tbl.Keys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if keys != nil {
		t.Fatalf("got %v, want nil", keys)
	}
}

func TestTableKeysGroupsMultiKeyTuples(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverFull(t, codec, []wire.Item{
			{TypeID: 38, Value: "alice"}, // xs:string
			{TypeID: 56, Value: "30"},    // xs:int
			{TypeID: 38, Value: "bob"},
			{TypeID: 56, Value: "40"},
		})
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").KeySpec("name/text()", "age/text()")
	if err != nil {
		t.Fatal(err)
	}
	keys, err := tbl.Keys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d tuples, want 2: %#v", len(keys), keys)
	}
	first, ok := keys[0].([]any)
	if !ok || first[0] != "alice" || first[1] != int64(30) {
		t.Fatalf("got first tuple %#v", keys[0])
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableDeleteExecutesAgainstBoundSelection(t *testing.T) {
	doneCh := make(chan struct{})
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "q1")
		serverBind(t, codec, "$key_0_0")
		serverExecute(t, codec, "")
		close(doneCh)
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").KeySpec("@id")
	if err != nil {
		t.Fatal(err)
	}
	tbl, err = tbl.At("alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Delete(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
}

func TestTableSetDeletesThenInserts(t *testing.T) {
	var opcodes []byte
	opcodesCh := make(chan []byte, 1)
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {
		serverQueryCreate(t, codec, "qdel")
		serverQueryCreate(t, codec, "qins")

		// delete handle: bind the key, then execute
		op, _ := codec.RecvByte()
		opcodes = append(opcodes, op)
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.SendByte(0x00)
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		op, _ = codec.RecvByte()
		opcodes = append(opcodes, op)
		codec.RecvString()
		codec.SendString("")
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		// insert handle: bind the key, bind $inserted, then execute
		op, _ = codec.RecvByte()
		opcodes = append(opcodes, op)
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.SendByte(0x00)
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		op, _ = codec.RecvByte()
		opcodes = append(opcodes, op)
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.RecvString()
		codec.SendByte(0x00)
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		op, _ = codec.RecvByte()
		opcodes = append(opcodes, op)
		codec.RecvString()
		codec.SendString("")
		codec.SendByte(fakeStatusOK)
		codec.Flush()

		opcodesCh <- opcodes
	})

	tbl, err := db.Doc("people.xml", nil).Path("root", "person").KeySpec("@id")
	if err != nil {
		t.Fatal(err)
	}
	tbl, err = tbl.At("alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Set(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}

	var got []byte
	select {
	case got = <-opcodesCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the fake server")
	}
	want := []byte{0x03, 0x05, 0x03, 0x03, 0x05}
	if len(got) != len(want) {
		t.Fatalf("got opcodes %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got opcodes %v, want %v", got, want)
		}
	}
}

func TestProductRejectsTablesFromDifferentDatabases(t *testing.T) {
	dbA := connectFakeDatabase(t, "a", func(codec *wire.Codec) {})
	dbB := connectFakeDatabase(t, "b", func(codec *wire.Codec) {})

	tA := dbA.Doc("a.xml", nil).Path("root", "x")
	tB := dbB.Doc("b.xml", nil).Path("root", "y")

	if _, err := Product(tA, tB); err == nil {
		t.Fatalf("expected an error for operand tables from different databases")
	}
}

func TestProductPanicsWithFewerThanTwoTables(t *testing.T) {
	db := connectFakeDatabase(t, "people", func(codec *wire.Codec) {})
	tbl := db.Doc("people.xml", nil).Path("root", "person")

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Product to panic with fewer than two tables")
		}
	}()
	Product(tbl)
}
