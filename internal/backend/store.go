/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is the managed remote store for photobook projects: a Postgres schema applied
// from embedded migrations, a Store over it, a small authenticated HTTP API and its client.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"photobook/internal/domain"
	applog "photobook/internal/log"
	"photobook/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrNotFound is returned for an unknown project id.
	ErrNotFound = errors.New("backend: project not found")
	// ErrVersionConflict is returned by Put when the stored version moved past the caller's base version.
	ErrVersionConflict = errors.New("backend: version conflict")
)

// Summary is the listing projection of a stored project.
type Summary struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	Pages     int       `json:"pages"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// Store persists projects in Postgres. The manifest is stored as JSONB in the same format as the
// local photobook.json.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, log: applog.WithComponent("backend")}
}

// Open connects to dsn through the pgx stdlib driver, pings and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies embedded SQL migrations in filename order and records each applied version.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

const putSQL = `INSERT INTO projects (stable_id, owner_id, name, tier, published, manifest, page_count)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (stable_id) DO UPDATE SET
	owner_id = EXCLUDED.owner_id, name = EXCLUDED.name, tier = EXCLUDED.tier,
	published = EXCLUDED.published, manifest = EXCLUDED.manifest, page_count = EXCLUDED.page_count,
	version = projects.version + 1, updated_at = now()
WHERE $8 = 0 OR projects.version = $8
RETURNING version`

// Put stores p and returns its new version. A non-zero base must equal the stored version, else
// ErrVersionConflict is returned and nothing changes.
func (s *Store) Put(ctx context.Context, p domain.Project, base int64) (int64, error) {
	if p.ID == "" {
		return 0, errors.New("backend: project id is required")
	}
	manifest, err := storage.Marshal(p)
	if err != nil {
		return 0, err
	}
	tier := p.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	var v int64
	err = s.db.QueryRowContext(ctx, putSQL,
		p.ID, p.OwnerID, p.Name, string(tier), p.Published, manifest, len(p.Pages), base).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("put project: %w", err)
	}
	s.log.Debug("project stored", slog.String("project", p.ID), slog.Int64("version", v))
	return v, nil
}

// Save implements the editor's Saver without version checks.
func (s *Store) Save(ctx context.Context, p domain.Project) error {
	_, err := s.Put(ctx, p, 0)
	return err
}

// Get loads a project and its version. The stored manifest is validated like a local one.
func (s *Store) Get(ctx context.Context, stableID string) (domain.Project, int64, error) {
	var (
		manifest []byte
		v        int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT manifest, version FROM projects WHERE stable_id = $1`, stableID).Scan(&manifest, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, 0, ErrNotFound
	}
	if err != nil {
		return domain.Project{}, 0, fmt.Errorf("get project: %w", err)
	}
	p, err := storage.Unmarshal(manifest)
	if err != nil {
		return domain.Project{}, 0, fmt.Errorf("stored manifest %s: %w", stableID, err)
	}
	return p, v, nil
}

// List returns project summaries, newest first. An empty owner lists every project.
func (s *Store) List(ctx context.Context, ownerID string) ([]Summary, error) {
	q := `SELECT id, stable_id, name, page_count, updated_at, version FROM projects`
	var args []any
	if ownerID != "" {
		q += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	q += ` ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.StableID, &sm.Name, &sm.Pages, &sm.UpdatedAt, &sm.Version); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// CountOwned returns how many projects the owner has stored.
func (s *Store) CountOwned(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, stableID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE stable_id = $1`, stableID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
