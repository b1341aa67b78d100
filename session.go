package baxend

import (
	"context"
	"fmt"

	"github.com/baxend-go/baxend/internal/lock"
	"github.com/baxend-go/baxend/internal/wire"
)

// Connect opens a session to the server, authenticates, and enters
// dbName's scope (CHECK dbName). dbName may be empty to open a session
// with no database bound, for CreateDatabase or raw Command use; most
// Database methods require a database in scope.
func Connect(ctx context.Context, cfg Config, dbName string) (*Database, error) {
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
		return nil, fmt.Errorf("baxend: connect: %w", err)
	}
	if err := sess.Login(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("baxend: connect: %w", err)
	}

	db := &Database{
		sess:  sess,
		cache: newQueryCache(sess),
		locks: lock.NewCoordinator(),
	}
	if dbName != "" {
		if err := db.checkExists(dbName); err != nil {
			sess.Close()
			return nil, err
		}
		db.name = dbName
	}
	return db, nil
}
