/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"photobook/internal/config"
	"photobook/internal/crash"
	"photobook/internal/document"
	"photobook/internal/editor"
	"photobook/internal/history"
	"photobook/internal/layout"
	applog "photobook/internal/log"
	"photobook/internal/metrics"
	"photobook/internal/storage"
	"photobook/internal/telemetry"
)

// app carries what every command needs. It is filled by the root command's pre-run hook.
type app struct {
	cfg     config.AppConfig
	token   string
	log     *slog.Logger
	metrics *metrics.Metrics
	out     io.Writer
	errOut  io.Writer
}

func (a *app) load(cmd *cobra.Command, logLevel string) error {
	cfg, tok, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := cfg.Logging.Options()
	if logLevel != "" {
		opts.Level = logLevel
	}
	opts.Writer = cmd.ErrOrStderr()
	applog.Init(opts)
	telemetry.SetDefault(telemetry.New(cfg.Telemetry.Sender()))

	a.cfg = cfg
	a.token = tok
	a.log = applog.WithComponent("cli")
	a.metrics = metrics.Default()
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(applog.ContextWithSession(ctx, uuid.NewString()))
	return nil
}

// catalog opens the local project catalogue.
func (a *app) catalog() (*storage.Index, error) {
	dir := a.cfg.General.CatalogDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve catalogue dir: %w", err)
		}
		dir = filepath.Join(base, "photobook")
	}
	return storage.OpenIndex(storage.IndexPath(dir))
}

func (a *app) model() (*document.Model, error) {
	tbl, err := a.cfg.Limits.Table()
	if err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}
	return document.New(tbl), nil
}

// templates returns the built-in templates plus those found in the project's templates folder.
func (a *app) templates(root string) (*layout.Registry, error) {
	reg, err := layout.Builtin()
	if err != nil {
		return nil, err
	}
	if root == "" {
		return reg, nil
	}
	if _, err := reg.LoadDir(filepath.Join(root, storage.TemplatesDirName)); err != nil {
		return nil, fmt.Errorf("project templates: %w", err)
	}
	return reg, nil
}

// workspace is an opened project with its editing session.
type workspace struct {
	ph    *storage.ProjectHandle
	sess  *editor.Session
	index *storage.Index
}

func (a *app) open(dir string) (*workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	if ph.Recovered {
		fmt.Fprintln(a.errOut, "warning: the manifest was unreadable; loaded the latest backup")
	}
	m, err := a.model()
	if err != nil {
		return nil, err
	}
	ix, err := a.catalog()
	if err != nil {
		a.log.Warn("catalogue unavailable", slog.Any("err", err))
		ix = nil
	}
	sess := editor.New(ph.Project, editor.Options{
		Model:       m,
		History:     history.NewManager(a.cfg.Editor.History()),
		Saver:       storage.DirSaver{Root: abs, Index: ix},
		Snap:        !a.cfg.Editor.DisableSnap,
		SnapOptions: a.cfg.Editor.SnapOptions(),
		DefaultSize: a.cfg.Editor.DefaultSize(),
		Metrics:     a.metrics,
	})
	telemetry.Track(telemetry.EventProjectOpened, map[string]any{"pages": len(ph.Project.Pages), "tier": string(ph.Project.Tier)})
	return &workspace{ph: ph, sess: sess, index: ix}, nil
}

func (w *workspace) rescue() *crash.Target {
	return &crash.Target{Root: w.ph.Root, Current: w.sess.Project}
}

// save persists the session and waits for the outcome.
func (w *workspace) save(ctx context.Context) error {
	if _, err := w.sess.Save(ctx); err != nil {
		return err
	}
	res := <-w.sess.SaveResults()
	if res.Err != nil {
		return fmt.Errorf("save: %w", res.Err)
	}
	w.ph.Project = w.sess.Project()
	return nil
}

func (w *workspace) close() {
	w.sess.Close()
	if w.index != nil {
		_ = w.index.Close()
	}
}

// explain turns limit denials into a user-facing message and reports them.
func (a *app) explain(err error) error {
	var le *document.LimitExceededError
	if errors.As(err, &le) {
		telemetry.Track(telemetry.EventLimitDenied, map[string]any{"intent": string(le.Intent), "reason": le.Reason})
		return fmt.Errorf("your plan does not allow this (%s): %w", le.Reason, err)
	}
	return err
}
