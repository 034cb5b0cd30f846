// Package store implements the policy repository and the agent/policy
// management queries over PostgreSQL. Bulk loads pass tool-name arrays so
// an entire evaluation batch costs a single query; a TTL snapshot cache in
// front of the queries keeps repeat lookups off the database.
package store

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Store provides the policy repository plus management CRUD.
type Store struct {
	db     *sql.DB
	cache  *snapshotCache
	logger *zap.Logger
}

// Config configures a Store.
type Config struct {
	DB       *sql.DB
	CacheTTL time.Duration // default 30s
	Logger   *zap.Logger
}

// New creates a Store backed by the given database connection pool.
func New(cfg Config) *Store {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		db:     cfg.DB,
		cache:  newSnapshotCache(ttl),
		logger: cfg.Logger,
	}
}
