/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"photobook/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetProof PresetName = "proof"
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// PrintBleed is the bleed the print preset adds around every page, in points.
const PrintBleed = 9

// BatchOptions controls batch export across formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it will be created under <project>/exports/<preset>/.
//   - The PDF is written as <OutDir>/<project id>.pdf; previews go to <OutDir>/png/page-<n>.png.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // allowed: pdf, png; empty means preset defaults
	Pages         []int    // zero-based indices; empty means all pages
	IncludeGuides *bool    // when set, overrides preset's default for guides
	OutDir        string
}

// BatchExport runs exports according to the given preset.
func BatchExport(ph *storage.ProjectHandle, opt BatchOptions) (Report, error) {
	var rep Report
	if ph == nil {
		return rep, fmt.Errorf("project handle is nil")
	}
	if len(ph.Project.Pages) == 0 {
		return rep, fmt.Errorf("project has no pages")
	}
	preset := opt.Preset
	if preset == "" {
		preset = PresetProof
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(preset)
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(ph.Root, storage.ExportsDirName, baseOut)
	}
	guides := presetIncludeGuides(preset)
	if opt.IncludeGuides != nil {
		guides = *opt.IncludeGuides
	}

	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			po := PDFOptions{IncludeGuides: guides, Pages: opt.Pages}
			if preset == PresetPrint {
				po.Bleed = PrintBleed
			}
			r, err := ProofPDF(ph, filepath.Join(baseOut, ph.Project.ID+".pdf"), po)
			if err != nil {
				return rep, fmt.Errorf("pdf: %w", err)
			}
			rep.merge(r)
		case "png":
			po := PNGOptions{IncludeGuides: guides, Pages: opt.Pages}
			if preset == PresetWeb {
				po.MaxEdge = 1600
			}
			r, err := PreviewPNGs(ph, filepath.Join(baseOut, "png"), po)
			if err != nil {
				return rep, fmt.Errorf("png: %w", err)
			}
			rep.merge(r)
		default:
			return rep, fmt.Errorf("unknown format: %s", f)
		}
	}
	return rep, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf", "png"}
	}
}

func presetIncludeGuides(p PresetName) bool {
	return p == PresetProof
}
