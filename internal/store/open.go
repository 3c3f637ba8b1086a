// Package store picks a chat.Store implementation from a database URL.
package store

import (
	"context"
	"fmt"
	"strings"

	"chatrelay/internal/chat"
	"chatrelay/internal/store/postgres"
	"chatrelay/internal/store/sqlite"
)

// Driver names a backing store.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

// Resolve maps databaseURL onto a driver and the DSN that driver expects.
func Resolve(databaseURL string) (Driver, string, error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		dsn := strings.TrimPrefix(u, "sqlite://")
		if dsn == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", databaseURL)
		}
		return DriverSQLite, dsn, nil
	case strings.HasPrefix(u, "file:"):
		return DriverSQLite, u, nil
	case u == "memory://" || u == "memory":
		return DriverMemory, "", nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", databaseURL)
}

// Open connects to the store named by databaseURL. Postgres schemas are
// migrated on open.
func Open(ctx context.Context, databaseURL string) (chat.Store, error) {
	driver, dsn, err := Resolve(databaseURL)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverPostgres:
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return chat.NewMemoryStore(), nil
	}
}
