/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders proofs of a photobook project: a multi-page PDF and per-page PNG
// previews. Both walk the editor render list so the output matches what the canvas paints.
package export

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"

	"photobook/internal/domain"
	"photobook/internal/editor"
	"photobook/internal/imaging"
	"photobook/internal/layout"
	applog "photobook/internal/log"
	"photobook/internal/vector"
)

// DefaultImageEdge bounds the longer edge of images embedded in proofs.
const DefaultImageEdge = 1200

// Report summarises an export run.
type Report struct {
	Files   []string
	Pages   int
	Images  int
	Missing []string // element ids whose image could not be read; drawn as placeholders
}

func (r *Report) merge(o Report) {
	r.Files = append(r.Files, o.Files...)
	r.Pages += o.Pages
	r.Images += o.Images
	r.Missing = append(r.Missing, o.Missing...)
}

type picture struct {
	img     image.Image
	natural vector.Size
}

// pictures loads each image source once per export.
type pictures struct {
	root    string
	maxEdge int
	loaded  map[string]*picture
	failed  map[string]error
	log     *slog.Logger
}

func newPictures(root string, maxEdge int) *pictures {
	if maxEdge <= 0 {
		maxEdge = DefaultImageEdge
	}
	return &pictures{
		root: root, maxEdge: maxEdge,
		loaded: map[string]*picture{}, failed: map[string]error{},
		log: applog.WithComponent("export"),
	}
}

func (p *pictures) get(src string) (*picture, error) {
	if pic, ok := p.loaded[src]; ok {
		return pic, nil
	}
	if err, ok := p.failed[src]; ok {
		return nil, err
	}
	pic, err := p.read(src)
	if err != nil {
		p.failed[src] = err
		p.log.Warn("image unavailable", slog.String("src", src), slog.Any("err", err))
		return nil, err
	}
	p.loaded[src] = pic
	return pic, nil
}

func (p *pictures) read(src string) (*picture, error) {
	if src == "" {
		return nil, fmt.Errorf("empty image source")
	}
	data, err := os.ReadFile(imaging.Resolve(p.root, src))
	if err != nil {
		return nil, err
	}
	info, err := imaging.Dimensions(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	img, err := imaging.Thumbnail(bytes.NewReader(data), p.maxEdge)
	if err != nil {
		return nil, err
	}
	return &picture{img: img, natural: info.Size()}, nil
}

// cropOf returns the source window of an image item. Without a stored crop the image is
// cover-cropped to the element box.
func cropOf(it editor.RenderItem, natural vector.Size) domain.Crop {
	if it.Content.Crop != nil && it.Content.Crop.Width > 0 && it.Content.Crop.Height > 0 {
		return *it.Content.Crop
	}
	if c, ok := layout.CoverCrop(natural, it.Geometry.Width, it.Geometry.Height); ok {
		return c
	}
	return domain.Crop{Width: natural.W, Height: natural.H}
}

// pageIndexes returns the requested page indexes that exist, or every index when none are given.
func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, len(specific))
	for _, i := range specific {
		if i >= 0 && i < total {
			out = append(out, i)
		}
	}
	return out
}
