package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedStore is returned by NewStore for an unknown backend name.
var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore opens the run-history backend named by kind: "memory" (also the
// empty name) keeps runs, generations and fit passes for the life of the
// process, "sqlite" persists them at dbPath. The sqlite backend is only
// compiled in with the sqlite build tag.
func NewStore(kind, dbPath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if strings.TrimSpace(dbPath) == "" {
			return nil, fmt.Errorf("sqlite store: empty database path")
		}
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, kind)
	}
}

// CloseIfSupported releases stores that hold a handle; MemoryStore has none.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
