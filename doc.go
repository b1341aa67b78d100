// Package baxend is a client for a BaseX-compatible XML database
// server: a framed binary wire protocol underneath, and an immutable
// Table expression builder on top that compiles chained path/key/
// filter/product selections into XQuery and executes them without the
// caller ever writing XQuery by hand.
//
// A typical session opens a Database, builds one or more Tables against
// it, and runs Get/Count/Keys/Insert/Delete/Tag/SetTag on them:
//
//	db, err := baxend.Connect(ctx, cfg, "people")
//	...
//	t, err := db.Doc("people.xml", nil).Path("person").KeySpec("@id")
//	...
//	t, err = t.At("alice")
//	...
//	el, err := t.Tag(ctx)
package baxend
