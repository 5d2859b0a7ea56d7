// Package adminstore persists the service's operational bookkeeping in an
// embedded SQLite database: process settings, cached connection configs for
// resolved secrets, and a request audit log. It holds no schema or request
// data; the model stays immutable and requests stay stateless.
package adminstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/api-maker/internal/connection"
)

// Store manages the embedded bookkeeping database.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "api-maker.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open bookkeeping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate bookkeeping database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS connection_configs (
			secret_name TEXT PRIMARY KEY,
			config_json TEXT NOT NULL,
			resolved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL DEFAULT '',
			entity TEXT NOT NULL,
			action TEXT NOT NULL,
			param_names TEXT NOT NULL DEFAULT '',
			record_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			duration_ms REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value for key, or sql.ErrNoRows if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	return value, err
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

// ---------------------------------------------------------------------------
// Connection-config cache
// ---------------------------------------------------------------------------

// CachingResolver wraps another SecretResolver, persisting every successful
// resolution so a restart can serve connections before the secret store is
// reachable again.
type CachingResolver struct {
	Store *Store
	Next  connection.SecretResolver
}

// Resolve implements connection.SecretResolver.
func (r CachingResolver) Resolve(ctx context.Context, name string) (connection.ConnectionConfig, error) {
	cfg, err := r.Next.Resolve(ctx, name)
	if err == nil {
		_ = r.Store.PutConnectionConfig(ctx, name, cfg)
		return cfg, nil
	}
	cached, cacheErr := r.Store.GetConnectionConfig(ctx, name)
	if cacheErr != nil {
		return connection.ConnectionConfig{}, err
	}
	return cached, nil
}

// PutConnectionConfig caches a resolved config under its secret name.
func (s *Store) PutConnectionConfig(ctx context.Context, secretName string, cfg connection.ConnectionConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connection_configs (secret_name, config_json, resolved_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(secret_name) DO UPDATE SET config_json = excluded.config_json, resolved_at = CURRENT_TIMESTAMP`,
		secretName, string(b))
	return err
}

// GetConnectionConfig returns the cached config for a secret name.
func (s *Store) GetConnectionConfig(ctx context.Context, secretName string) (connection.ConnectionConfig, error) {
	var raw string
	if err := s.db.GetContext(ctx, &raw,
		`SELECT config_json FROM connection_configs WHERE secret_name = ?`, secretName); err != nil {
		return connection.ConnectionConfig{}, err
	}
	var cfg connection.ConnectionConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return connection.ConnectionConfig{}, err
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AuditEntry is one executed (or failed) operation.
type AuditEntry struct {
	ID          int64     `db:"id" json:"id"`
	RequestID   string    `db:"request_id" json:"request_id,omitempty"`
	Entity      string    `db:"entity" json:"entity"`
	Action      string    `db:"action" json:"action"`
	ParamNames  string    `db:"param_names" json:"param_names,omitempty"`
	RecordCount int       `db:"record_count" json:"record_count"`
	Status      string    `db:"status" json:"status"`
	DurationMs  float64   `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AppendAudit records one operation outcome.
func (s *Store) AppendAudit(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (request_id, entity, action, param_names, record_count, status, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Entity, entry.Action, entry.ParamNames,
		entry.RecordCount, entry.Status, entry.DurationMs)
	return err
}

// RecentAudit returns the newest entries, up to limit.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []AuditEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, request_id, entity, action, param_names, record_count, status, duration_ms, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return entries, nil
}
