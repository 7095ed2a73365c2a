/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"photobook/internal/export"
	"photobook/internal/storage"
	"photobook/internal/version"
)

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string
	root := &cobra.Command{
		Use:   "photobook",
		Short: "Photobook project editor",
		Long: `Edit photobook projects from the command line.

A project is a directory holding photobook.json (pages and their elements),
photos/, templates/, exports/ and backups/. Mutations go through the editor
engine, so account tier limits, validation and backups apply.`,
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	root.AddCommand(
		buildInitCmd(a),
		buildInfoCmd(a),
		buildAddPageCmd(a),
		buildAddElementCmd(a),
		buildApplyTemplateCmd(a),
		buildTemplatesCmd(a),
		buildExportPDFCmd(a),
		buildExportCmd(a),
		buildValidateCmd(a),
		buildWatchCmd(a),
		buildCatalogCmd(a),
		buildLoginCmd(a),
		buildLogoutCmd(a),
		buildPushCmd(a),
		buildServeCmd(a),
		buildVersionCmd(a),
	)
	return root
}

func buildInitCmd(a *app) *cobra.Command {
	var name, id, tier, owner string
	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a, args[0], name, id, tier, owner)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory name)")
	cmd.Flags().StringVar(&id, "id", "", "Project id (default: generated)")
	cmd.Flags().StringVar(&tier, "tier", "", "Account tier (default from config)")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id (default from config)")
	return cmd
}

func buildInfoCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <dir>",
		Short: "Print a project summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, a, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the manifest as JSON")
	return cmd
}

func buildAddPageCmd(a *app) *cobra.Command {
	var (
		pageType      string
		width, height float64
		index         int
	)
	cmd := &cobra.Command{
		Use:   "add-page <dir>",
		Short: "Add a page or spread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddPage(cmd, a, args[0], pageType, width, height, index)
		},
	}
	cmd.Flags().StringVar(&pageType, "type", "single", "Page type (single, spread)")
	cmd.Flags().Float64Var(&width, "width", 0, "Page width in page units (default 600, spreads 1200)")
	cmd.Flags().Float64Var(&height, "height", 0, "Page height in page units (default 600)")
	cmd.Flags().IntVar(&index, "index", -1, "Zero-based position; negative appends")
	return cmd
}

func buildAddElementCmd(a *app) *cobra.Command {
	var f elementFlags
	cmd := &cobra.Command{
		Use:   "add-element <dir>",
		Short: "Add an image, text or shape element",
		Long: `Add an element to a page (the last page unless --page is given).

Without --x/--y the element is placed in the largest free area of the page.
Without --width/--height images keep their aspect ratio inside the default size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.placed = cmd.Flags().Changed("x") && cmd.Flags().Changed("y")
			f.sized = cmd.Flags().Changed("width") && cmd.Flags().Changed("height")
			return runAddElement(cmd, a, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.page, "page", "", "Page id (default: last page)")
	cmd.Flags().StringVar(&f.kind, "kind", "image", "Element kind (image, text, shape)")
	cmd.Flags().StringVar(&f.src, "src", "", "Image source, relative to the project")
	cmd.Flags().StringVar(&f.text, "text", "", "Text content")
	cmd.Flags().StringVar(&f.shape, "shape", "rect", "Shape kind (rect, ellipse, line)")
	cmd.Flags().Float64Var(&f.x, "x", 0, "Left edge")
	cmd.Flags().Float64Var(&f.y, "y", 0, "Top edge")
	cmd.Flags().Float64Var(&f.width, "width", 0, "Width")
	cmd.Flags().Float64Var(&f.height, "height", 0, "Height")
	cmd.Flags().Float64Var(&f.rotation, "rotation", 0, "Rotation in degrees, clockwise")
	cmd.Flags().BoolVar(&f.locked, "locked", false, "Lock the element against edits and templates")
	return cmd
}

func buildApplyTemplateCmd(a *app) *cobra.Command {
	var page string
	cmd := &cobra.Command{
		Use:   "apply-template <dir> <template>",
		Short: "Lay a page out with a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplyTemplate(cmd, a, args[0], args[1], page)
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "Page id (default: last page)")
	return cmd
}

func buildTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and share layout templates",
	}
	var pageType string
	list := &cobra.Command{
		Use:   "list [dir]",
		Short: "List built-in and project templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runTemplatesList(cmd, a, dir, pageType)
		},
	}
	list.Flags().StringVar(&pageType, "page-type", "", "Only templates for this page type")
	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "export-pack <dir> <zip>",
			Short: "Zip the project's templates into a pack",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTemplatesExportPack(cmd, a, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "install-pack <dir> <zip>",
			Short: "Install the templates of a pack into the project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTemplatesInstallPack(cmd, a, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "usage <template>",
			Short: "List catalogued pages laid out with a template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTemplatesUsage(cmd, a, args[0])
			},
		},
	)
	return cmd
}

func buildExportPDFCmd(a *app) *cobra.Command {
	var (
		out    string
		guides bool
		bleed  float64
		pages  []int
	)
	cmd := &cobra.Command{
		Use:   "export-pdf <dir>",
		Short: "Write a PDF proof of the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportPDF(cmd, a, args[0], out, export.PDFOptions{IncludeGuides: guides, Bleed: bleed, Pages: zeroBased(pages)})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "proof.pdf", "Output file; relative paths land in <dir>/exports")
	cmd.Flags().BoolVar(&guides, "guides", false, "Draw trim and gutter guides")
	cmd.Flags().Float64Var(&bleed, "bleed", 0, "Bleed around every page, in points")
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "One-based page numbers (default: all)")
	return cmd
}

func buildExportCmd(a *app) *cobra.Command {
	var (
		preset  string
		formats []string
		pages   []int
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export with a preset (proof, web, print)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, args[0], export.BatchOptions{
				Preset: export.PresetName(preset), Formats: formats, Pages: zeroBased(pages), OutDir: outDir,
			})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetProof), "Preset (proof, web, print)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Formats (pdf, png); default from preset")
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "One-based page numbers (default: all)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory (default: <dir>/exports/<preset>)")
	return cmd
}

func buildValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check the manifest, tier limits and image sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, args[0])
		},
	}
}

func buildWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Report external edits of the manifest until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, args[0], debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", storage.DefaultWatchDebounce, "Quiet period before reloading")
	return cmd
}

func buildCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the local project catalogue",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List catalogued projects, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCatalogList(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "rebuild <dir>...",
			Short: "Re-create the catalogue from project directories",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCatalogRebuild(cmd, a, args)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Check the catalogue database for corruption",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCatalogCheck(cmd, a)
			},
		},
	)
	return cmd
}

func buildLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the backend token in the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, a, args[0])
		},
	}
}

func buildLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored backend token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd, a)
		},
	}
}

func buildPushCmd(a *app) *cobra.Command {
	var (
		url, dsn string
		base     int64
	)
	cmd := &cobra.Command{
		Use:   "push <dir>",
		Short: "Upload the project to the remote store",
		Long: `Upload the project manifest to the remote store.

With --dsn (or backend.dsn) the Postgres store is written directly; otherwise the
HTTP API at --url (or backend.base_url) is used with the token from "photobook login".
--base is the remote version last seen; the push fails if the remote copy moved on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, a, args[0], url, dsn, base)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Backend API URL")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN")
	cmd.Flags().Int64Var(&base, "base", 0, "Expected remote version (0 overwrites)")
	return cmd
}

func buildServeCmd(a *app) *cobra.Command {
	var addr, dsn, secret string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project API backed by Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a, addr, dsn, secret)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (default from config or PB_PG_DSN)")
	cmd.Flags().StringVar(&secret, "secret", "", "Token signing secret (default PB_AUTH_SECRET)")
	return cmd
}

func buildVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(a.out, version.String())
			return nil
		},
	}
}

// zeroBased converts one-based page numbers from the command line.
func zeroBased(pages []int) []int {
	if len(pages) == 0 {
		return nil
	}
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p - 1
	}
	return out
}
