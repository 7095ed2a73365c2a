/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package main provides the photobook CLI. It drives an editing session headlessly: every
// mutating command opens the project, applies its change through the editor (limits, history,
// validation) and saves the manifest with a backup.
//
// # Basic Usage
//
//	photobook init ./summer --name "Summer 2025"
//	photobook add-page ./summer --type spread
//	photobook add-element ./summer --kind image --src photos/beach.jpg
//	photobook apply-template ./summer grid-4
//	photobook export-pdf ./summer --guides
//
// # Environment Variables
//
//   - PB_CONFIG: path of the YAML user config
//   - PB_OWNER, PB_TIER: owner id and account tier used for new projects
//   - PB_CATALOG_DIR: directory of the local project catalogue
//   - PB_BACKEND_URL, PB_PG_DSN: remote project store (HTTP API or Postgres)
//   - PB_LOG_LEVEL, PB_LOG_FORMAT, PB_LOG_FILE: logging
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"photobook/internal/crash"
	applog "photobook/internal/log"
	"photobook/internal/telemetry"
)

func main() {
	// initialize structured logging using environment defaults; config may refine it
	applog.Init(applog.FromEnv())
	defer crash.Recover(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	telemetry.Default().Close()
	if err != nil {
		applog.WithComponent("cli").Debug("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}
