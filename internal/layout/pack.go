/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "photobook/internal/log"
)

// PackManifest is the name of the informational file at the root of a template pack.
const PackManifest = "templatepack.manifest.txt"

// ExportPack zips the template files of dir into destZip. The archive holds the files at its root
// plus a short manifest. A missing or empty dir yields an archive with only the manifest.
func ExportPack(dir, destZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("layout"), "export-pack").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(destZip) == "" {
		return 0, errors.New("template dir and destination are required")
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)

	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Photobook Template Pack\nCreated: %s\n", time.Now().Format(time.RFC3339))
	w, err := zw.Create(PackManifest)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read template dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		if err := addFile(zw, filepath.Join(dir, e.Name()), e.Name()); err != nil {
			l.Error("zip build failed", slog.Any("err", err))
			return added, fmt.Errorf("build zip: %w", err)
		}
		added++
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("template pack exported", slog.Int("files", added), slog.String("zip", destZip))
	return added, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(fw, f)
	return err
}

// InstallPack extracts the template files of a pack into dir. Entries that would escape dir,
// non-template files and files that already exist are skipped; every installed file must parse
// as a valid template document. It returns the number of files installed.
func InstallPack(dir, packZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("layout"), "install-pack").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(packZip) == "" {
		return 0, errors.New("template dir and pack are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure template dir: %w", err)
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	installed := 0
	for _, f := range r.File {
		if f.Name == PackManifest || f.FileInfo().IsDir() || !isTemplateFile(f.Name) {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if rel, err := filepath.Rel(root, target); err != nil || strings.HasPrefix(rel, "..") {
			l.Warn("skip entry outside template dir", slog.String("entry", f.Name))
			continue
		}
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return installed, err
		}
		if _, err := NewRegistry().LoadYAML(data, f.Name); err != nil {
			return installed, fmt.Errorf("invalid template file in pack: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return installed, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("template pack installed", slog.Int("files", installed))
	return installed, nil
}

// maxEntrySize bounds a single pack entry.
const maxEntrySize = 1 << 20

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("pack entry %s too large", f.Name)
	}
	return data, nil
}
