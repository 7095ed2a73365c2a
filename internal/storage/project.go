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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"photobook/internal/document"
	"photobook/internal/domain"
	applog "photobook/internal/log"
)

const (
	ManifestFileName = "photobook.json"
	BackupsDirName   = "backups"
	PhotosDirName    = "photos"
	TemplatesDirName = "templates"
	ExportsDirName   = "exports"
	// MaxBackups is how many manifest backups Save keeps; older ones are pruned.
	MaxBackups = 20
)

// Standard subfolders of a photobook project.
var standardSubDirs = []string{
	PhotosDirName,
	TemplatesDirName,
	ExportsDirName,
	BackupsDirName,
}

// ProjectHandle keeps track of the project state loaded/saved from disk.
// Root is the project directory containing photobook.json and subfolders.
// Recovered is set by Open when the manifest was unusable and the latest backup was loaded instead.
type ProjectHandle struct {
	Root         string
	ManifestPath string
	Project      domain.Project
	Recovered    bool
}

// ManifestPath returns the manifest location inside root.
func ManifestPath(root string) string { return filepath.Join(root, ManifestFileName) }

// Marshal encodes p in the manifest format: indented JSON with a trailing newline. Nil page and
// element lists are written as empty arrays. The result is checked against the project schema, so
// a manifest Marshal returns is one Unmarshal accepts.
func Marshal(p domain.Project) ([]byte, error) {
	p = p.Clone()
	if p.Pages == nil {
		p.Pages = []domain.Page{}
	}
	for i := range p.Pages {
		if p.Pages[i].Elements == nil {
			p.Pages[i].Elements = []domain.Element{}
		}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a manifest. The data must conform to the project schema and the decoded
// project must satisfy the document invariants (unique ids, valid geometry and content).
func Unmarshal(data []byte) (domain.Project, error) {
	if err := Validate(data); err != nil {
		return domain.Project{}, err
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Project{}, fmt.Errorf("parse manifest: %w", err)
	}
	if err := CheckIntegrity(p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// CheckIntegrity verifies what the schema cannot express: page ids unique within the project,
// element ids unique within a page, and every element valid for its kind.
func CheckIntegrity(p domain.Project) error {
	pages := make(map[string]bool, len(p.Pages))
	for _, pg := range p.Pages {
		if pages[pg.ID] {
			return fmt.Errorf("manifest: duplicate page id %q", pg.ID)
		}
		pages[pg.ID] = true
		els := make(map[string]bool, len(pg.Elements))
		for _, el := range pg.Elements {
			if els[el.ID] {
				return fmt.Errorf("manifest: page %q: duplicate element id %q", pg.ID, el.ID)
			}
			els[el.ID] = true
			if err := document.ValidateElement(el); err != nil {
				return fmt.Errorf("manifest: page %q element %q: %w", pg.ID, el.ID, err)
			}
		}
	}
	return nil
}

// InitProject creates a new project directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the given manifest file transactionally.
func InitProject(root string, proj domain.Project) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ph := &ProjectHandle{Root: root, ManifestPath: ManifestPath(root), Project: proj}
	if err := Save(ph); err != nil {
		return nil, err
	}
	return ph, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing project from the given root directory.
// If the current manifest cannot be read, parsed or validated, it falls back to the latest backup.
func Open(root string) (*ProjectHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	mpath := ManifestPath(root)
	b, err := os.ReadFile(mpath)
	if err == nil {
		p, uerr := Unmarshal(b)
		if uerr == nil {
			return &ProjectHandle{Root: root, ManifestPath: mpath, Project: p}, nil
		}
		err = uerr
	}
	proj, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
	}
	l.Warn("manifest unusable, recovered from backup", slog.Any("err", err))
	return &ProjectHandle{Root: root, ManifestPath: mpath, Project: proj, Recovered: true}, nil
}

// Save writes the current ProjectHandle.Project to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.ManifestPath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	data, err := Marshal(ph.Project)
	if err != nil {
		return err
	}

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(ph.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp))
		if cerr := copyFile(ph.ManifestPath, bpath); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
		pruneBackups(bdir, MaxBackups)
	}

	// Transactional write: to temp file in same directory, then rename over target
	dir := filepath.Dir(ph.ManifestPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(ph.ManifestPath); err == nil {
		_ = os.Remove(ph.ManifestPath)
	}
	if rerr := os.Rename(temp, ph.ManifestPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// SaveAs writes the manifest to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(ph *ProjectHandle, newRoot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	ph.Root = newRoot
	ph.ManifestPath = ManifestPath(newRoot)
	return Save(ph)
}

// DirSaver persists editor snapshots into a project directory and, when Index is set, refreshes
// the catalogue entry.
type DirSaver struct {
	Root  string
	Index *Index
}

// Save implements the editor's Saver.
func (s DirSaver) Save(ctx context.Context, p domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Save(&ProjectHandle{Root: s.Root, ManifestPath: ManifestPath(s.Root), Project: p}); err != nil {
		return err
	}
	applog.WithComponent("storage").DebugContext(ctx, "manifest saved", slog.String("root", s.Root))
	if s.Index == nil {
		return nil
	}
	return s.Index.Upsert(ctx, s.Root, p)
}

// CrashAutosavePrefix names autosaves written after a crash. They are never picked up as backups.
const CrashAutosavePrefix = "crash-autosave-"

// AutosaveCrash writes p next to the backups of root without touching the manifest and returns
// the written path.
func AutosaveCrash(root string, p domain.Project) (string, error) {
	if root == "" {
		return "", errors.New("autosave: empty project root")
	}
	data, err := Marshal(p)
	if err != nil {
		return "", err
	}
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, CrashAutosavePrefix+time.Now().Format("20060102-150405.000")+".json")
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	return path, nil
}

// Backups lists the manifest backups of root, oldest first.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func pruneBackups(bdir string, keep int) {
	all, err := Backups(filepath.Dir(bdir))
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		_ = os.Remove(p)
	}
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup loads the newest backup that still parses and validates.
func openFromLatestBackup(root string) (domain.Project, error) {
	candidates, err := Backups(root)
	if err != nil {
		return domain.Project{}, err
	}
	if len(candidates) == 0 {
		return domain.Project{}, errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = fmt.Errorf("read backup: %w", err)
			continue
		}
		p, err := Unmarshal(b)
		if err != nil {
			lastErr = fmt.Errorf("backup %s: %w", filepath.Base(candidates[i]), err)
			continue
		}
		return p, nil
	}
	return domain.Project{}, lastErr
}
