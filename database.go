package baxend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/baxend-go/baxend/internal/lock"
	"github.com/baxend-go/baxend/internal/wire"
)

// Database is a session bound to one named database on the server. It
// owns a QueryCache and a lock Coordinator shared by every Table built
// against it.
type Database struct {
	sess  *wire.Session
	name  string
	cache *queryCache
	locks *lock.Coordinator

	// Xmlns is the default prefix->URI binding inherited by every Table
	// rooted at this Database (overridable per Table).
	Xmlns map[string]string
}

func (db *Database) checkExists(name string) error {
	_, err := db.sess.Command("CHECK " + name)
	return err
}

// Name returns the database's server-local name.
func (db *Database) Name() string { return db.name }

var listSplit = regexp.MustCompile(`  +`)

// Keys lists the paths of every document in the database, parsed from
// the server's `LIST <db>` output: the first two and last three lines
// are header/footer, and fields are split on runs of two or more
// spaces rather than a fixed column width.
func (db *Database) Keys() ([]string, error) {
	out, err := db.sess.Command("LIST " + db.name)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 5 {
		return nil, nil
	}
	rows := lines[2 : len(lines)-3]
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		fields := listSplit.Split(row, 2)
		keys = append(keys, fields[0])
	}
	return keys, nil
}

// Values returns the raw content of every document in the database, in
// Keys order.
func (db *Database) Values() ([]string, error) {
	keys, err := db.Keys()
	if err != nil {
		return nil, err
	}
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := db.Get(k)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Items returns the (path, content) pairs of every document, in Keys
// order.
func (db *Database) Items() ([][2]string, error) {
	keys, err := db.Keys()
	if err != nil {
		return nil, err
	}
	items := make([][2]string, 0, len(keys))
	for _, k := range keys {
		v, err := db.Get(k)
		if err != nil {
			return nil, err
		}
		items = append(items, [2]string{k, v})
	}
	return items, nil
}

// Contains reports whether path names a document in the database.
func (db *Database) Contains(path string) (bool, error) {
	keys, err := db.Keys()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == path {
			return true, nil
		}
	}
	return false, nil
}

// Get fetches a document's raw content by path.
func (db *Database) Get(path string) (string, error) {
	out, err := db.sess.Command("GET " + path)
	if err != nil {
		return "", asNotFound(path, err)
	}
	return out, nil
}

// Put writes content as the document named path, creating or replacing
// it.
func (db *Database) Put(path, content string) error {
	return db.sess.Put(path, content)
}

// AddDocument adds input as a new document named path within this
// database, without replacing an existing one of the same name.
func (db *Database) AddDocument(path, input string) error {
	return db.sess.Add(db.name, path, input)
}

// CreateDatabase creates a new server-side database named name,
// optionally seeded with input, using a short-lived session over cfg.
// The session is closed before returning.
func CreateDatabase(ctx context.Context, cfg Config, name, input string) error {
	wcfg := wire.Config{
		Address:  withDefaultPort(cfg.Address),
		User:     cfg.User,
		Password: cfg.Password,
		TLS:      cfg.TLS,
		Timeout:  cfg.Timeout,
		Logger:   cfg.Logger,
	}
	sess := wire.NewSession(wcfg)
	if err := sess.Open(ctx); err != nil {
		return fmt.Errorf("baxend: create database: %w", err)
	}
	defer sess.Close()
	if err := sess.Login(); err != nil {
		return fmt.Errorf("baxend: create database: %w", err)
	}
	return sess.CreateDB(name, input)
}

// PutBinary uploads a binary resource. The protocol requires
// zero-byte-free content; callers are responsible for ensuring that.
func (db *Database) PutBinary(path string, data []byte) error {
	return db.sess.PutBinary(path, data)
}

// Delete removes the document named path.
func (db *Database) Delete(path string) error {
	if _, err := db.sess.Command("DELETE " + path); err != nil {
		return asNotFound(path, err)
	}
	return nil
}

func asNotFound(path string, err error) error {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return &NotFound{Key: path}
	}
	return err
}

// Doc returns a Table rooted at the named document, combining the
// Database's default namespace bindings with any overrides in xmlns.
func (db *Database) Doc(document string, xmlns map[string]string) *Table {
	merged := make(map[string]string, len(db.Xmlns)+len(xmlns))
	for k, v := range db.Xmlns {
		merged[k] = v
	}
	for k, v := range xmlns {
		merged[k] = v
	}
	return newTable(db, document, merged)
}

// Close closes every cached query, closes the database scope on the
// server, logs out, and closes the socket.
func (db *Database) Close() error {
	var firstErr error
	if err := db.cache.CloseAll(); err != nil && firstErr == nil {
		firstErr = err
	}
	if db.name != "" {
		if _, err := db.sess.Command("CLOSE"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if _, err := db.sess.Command("EXIT"); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.sess.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
