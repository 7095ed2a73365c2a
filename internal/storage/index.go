/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photobook/internal/domain"
	applog "photobook/internal/log"
	"photobook/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "catalog.sqlite"

	// schemaVersion tracks the catalogue schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// ErrNotIndexed is returned by Get for an unknown project id.
var ErrNotIndexed = errors.New("storage: project not in catalogue")

// Entry is one catalogued project.
type Entry struct {
	ID        string
	Name      string
	OwnerID   string
	Tier      domain.Tier
	Root      string
	Pages     int
	Elements  int
	Published bool
	UpdatedAt time.Time
}

// PageRef locates a page within a catalogued project.
type PageRef struct {
	ProjectID string
	PageID    string
	Position  int
}

// Index is the SQLite catalogue of local projects. It is safe for concurrent use.
type Index struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// IndexPath returns the catalogue file inside dir.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFileName)
}

// OpenIndex opens or creates the catalogue at path, enables WAL mode and brings the schema up to date.
func OpenIndex(path string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureCatalogSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready")
	return &Index{db: db, log: l, now: time.Now}, nil
}

// Close releases the database.
func (ix *Index) Close() error { return ix.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the stored schema for migrations.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureCatalogSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			owner_id   TEXT NOT NULL DEFAULT '',
			tier       TEXT NOT NULL,
			root       TEXT NOT NULL,
			pages      INTEGER NOT NULL,
			elements   INTEGER NOT NULL,
			published  INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);`,
		`CREATE TABLE IF NOT EXISTS pages (
			project_id   TEXT    NOT NULL,
			page_id      TEXT    NOT NULL,
			position     INTEGER NOT NULL,
			type         TEXT    NOT NULL,
			template_ref TEXT,
			elements     INTEGER NOT NULL,
			PRIMARY KEY(project_id, page_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure catalogue schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur >= schemaVersion {
		// Fresh databases are created at schemaVersion; newer ones are never downgraded.
		return ensureLatestIndexes(ctx, db)
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_pages_template ON pages(template_ref);`}
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func ensureLatestIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_pages_template ON pages(template_ref);`)
	return err
}

// SchemaVersion returns the schema version recorded in the database.
func (ix *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := ix.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// Upsert replaces the catalogue entry of p, which lives in root.
func (ix *Index) Upsert(ctx context.Context, root string, p domain.Project) error {
	tier := p.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO projects(id, name, owner_id, tier, root, pages, elements, published, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, owner_id=excluded.owner_id, tier=excluded.tier,
			root=excluded.root, pages=excluded.pages, elements=excluded.elements,
			published=excluded.published, updated_at=excluded.updated_at;`,
		p.ID, p.Name, p.OwnerID, string(tier), abs, len(p.Pages), p.ElementCount(), p.Published,
		ix.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE project_id=?`, p.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear pages: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO pages(project_id, page_id, position, type, template_ref, elements) VALUES(?,?,?,?,?,?);`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for i, pg := range p.Pages {
		ref := sql.NullString{String: pg.TemplateRef, Valid: pg.TemplateRef != ""}
		if _, err := ins.ExecContext(ctx, p.ID, pg.ID, i, string(pg.Type), ref, len(pg.Elements)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert page: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	ix.log.Debug("indexed", slog.String("project", p.ID), slog.Int("pages", len(p.Pages)))
	return nil
}

// Remove drops a project from the catalogue. Unknown ids are ignored.
func (ix *Index) Remove(ctx context.Context, id string) error {
	for _, q := range []string{`DELETE FROM pages WHERE project_id=?`, `DELETE FROM projects WHERE id=?`} {
		if _, err := ix.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("remove project: %w", err)
		}
	}
	return nil
}

const entryColumns = `id, name, owner_id, tier, root, pages, elements, published, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var (
		e       Entry
		tier    string
		updated string
	)
	if err := r.Scan(&e.ID, &e.Name, &e.OwnerID, &tier, &e.Root, &e.Pages, &e.Elements, &e.Published, &updated); err != nil {
		return Entry{}, err
	}
	e.Tier = domain.Tier(tier)
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		e.UpdatedAt = t
	}
	return e, nil
}

// Get returns the entry of one project.
func (ix *Index) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scanEntry(ix.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM projects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotIndexed
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get project: %w", err)
	}
	return e, nil
}

// List returns every entry, most recently updated first.
func (ix *Index) List(ctx context.Context) ([]Entry, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM projects ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountOwned returns how many photobooks the owner has; it feeds the create-project limit.
func (ix *Index) CountOwned(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE owner_id=?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// PagesUsingTemplate lists the pages last laid out with the named template.
func (ix *Index) PagesUsingTemplate(ctx context.Context, name string) ([]PageRef, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT project_id, page_id, position FROM pages WHERE template_ref=? ORDER BY project_id, position`, name)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()
	var out []PageRef
	for rows.Next() {
		var r PageRef
		if err := rows.Scan(&r.ProjectID, &r.PageID, &r.Position); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Check runs SQLite's quick_check and reports corruption.
func (ix *Index) Check(ctx context.Context) error {
	var chk string
	if err := ix.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("index corrupt: %s", chk)
	}
	return nil
}

// Rebuild clears the catalogue and re-indexes the projects found in roots. Roots whose manifest
// cannot be opened are skipped and reported together.
func (ix *Index) Rebuild(ctx context.Context, roots []string) (int, error) {
	for _, q := range []string{`DELETE FROM pages`, `DELETE FROM projects`} {
		if _, err := ix.db.ExecContext(ctx, q); err != nil {
			return 0, fmt.Errorf("clear catalogue: %w", err)
		}
	}
	var (
		n    int
		errs []error
	)
	for _, root := range roots {
		ph, err := Open(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		if err := ix.Upsert(ctx, root, ph.Project); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
