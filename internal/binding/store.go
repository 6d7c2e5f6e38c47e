// Package binding maps chat users to the mailbox address they bound.
//
// Three backends implement Store: an in-process map (default, lost on
// restart), a SQLite file, and a valkey server for deployments with more
// than one bot replica. Every backend keeps at most one address per user;
// the last Set wins.
package binding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/cloudmailbot/internal/config"
)

// Store persists user → mailbox bindings.
type Store interface {
	// Get returns the bound address and whether one exists.
	Get(ctx context.Context, userID string) (string, bool, error)
	// Set binds userID to email, replacing any previous binding.
	Set(ctx context.Context, userID, email string) error
	// Remove drops the binding. Removing a missing binding is not an error.
	Remove(ctx context.Context, userID string) error
	Close() error
}

// Open returns the Store selected by cfg.Type.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case config.StoreMemory, "":
		logger.Info("using in-memory binding store, bindings are lost on restart")
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		logger.Info("using sqlite binding store", slog.String("path", cfg.SQLitePath))
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StoreValkey:
		logger.Info("using valkey binding store",
			slog.String("url", cfg.Valkey.URL),
			slog.Bool("tls", cfg.Valkey.TLSEnabled))
		return NewValkeyStore(cfg.Valkey)
	default:
		return nil, fmt.Errorf("unknown binding store type %q", cfg.Type)
	}
}
