// Package storagemapping resolves a storage_id + path pair to the set of
// users who should be notified of a change there. Grounded on the
// teacher's internal/db.Database (connection pooling via database/sql and
// lib/pq, *sql.DB as the shared handle) but scoped to the single read
// query the specification names rather than the teacher's full schema
// migration surface.
package storagemapping

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/streamspace-dev/notify-push/internal/user"
)

// Registry resolves storage updates against the backend's user/storage
// mapping tables.
type Registry struct {
	db *sql.DB
}

// Open establishes a pooled connection to dsn using lib/pq, mirroring the
// teacher's pool tuning (bounded open and idle connection counts) so a stalled query can't exhaust the pool under sustained bus traffic.
func Open(dsn string) (*Registry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage mapping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &Registry{db: db}, nil
}

// NewWithDB wraps an already-open handle, letting callers (and tests)
// supply a sqlmock-backed *sql.DB directly.
func NewWithDB(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Close releases the underlying connection pool.
func (r *Registry) Close() error {
	return r.db.Close()
}

// UsersForPath resolves storageID + path to the users who have access to
// it: every distinct user whose storage_mounts row for storageID has a
// root_path that prefixes path. A mapping lookup error is
// the caller's responsibility to log and drop (the specification treats
// this as MappingLookup), not retry.
func (r *Registry) UsersForPath(ctx context.Context, storageID, path string) ([]user.ID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT m.user_id
		FROM storage_mounts m
		WHERE m.storage_id = $1
		  AND $2 LIKE m.root_path || '%'
	`, storageID, path)
	if err != nil {
		return nil, fmt.Errorf("query storage mapping: %w", err)
	}
	defer rows.Close()

	var users []user.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan storage mapping row: %w", err)
		}
		users = append(users, user.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage mapping rows: %w", err)
	}
	return users, nil
}

// SelfTest runs a trivial round-trip query at startup so a misconfigured
// DSN or unreachable database is surfaced before the process starts
// accepting sessions, rather than on the first storage_update event.
func (r *Registry) SelfTest(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
