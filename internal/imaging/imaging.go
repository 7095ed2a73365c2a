/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imaging reads source image metadata for placement: natural pixel dimensions for cover
// crops and downscaled previews for proofs.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photobook/internal/domain"
	"photobook/internal/vector"
)

// MaxFileSize bounds how much of a source file is read.
const MaxFileSize = 64 << 20

// ErrUnsupported is returned for data no registered decoder recognises.
var ErrUnsupported = errors.New("imaging: unsupported image format")

// Info is what DecodeConfig learns from an image header.
type Info struct {
	Width  int
	Height int
	Format string
}

// Size returns the dimensions as a float size.
func (i Info) Size() vector.Size { return vector.Size{W: float64(i.Width), H: float64(i.Height)} }

// Dimensions reads only the image header from r.
func Dimensions(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupported
		}
		return Info{}, fmt.Errorf("imaging: decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("imaging: empty image (%dx%d)", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// DimensionsFile is Dimensions for a file on disk.
func DimensionsFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	info, err := Dimensions(io.LimitReader(f, MaxFileSize))
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Thumbnail decodes r and scales it so the longer edge is at most maxEdge pixels. Smaller images
// are returned unscaled.
func Thumbnail(r io.Reader, maxEdge int) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("imaging: file too large (max %d bytes)", MaxFileSize)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src, nil
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, nil
}

// Resolve returns the path of an element source. Relative sources are resolved against root.
func Resolve(root, src string) string {
	if src == "" || filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(root, filepath.FromSlash(src))
}

// PageDims reads the natural size of every image element on pg whose content does not already
// carry it. Unreadable sources are skipped and reported together in the returned error.
func PageDims(pg domain.Page, root string) (map[string]vector.Size, error) {
	out := make(map[string]vector.Size)
	var errs []error
	for _, el := range pg.Elements {
		if el.Kind != domain.KindImage {
			continue
		}
		if el.Content.NaturalWidth > 0 && el.Content.NaturalHeight > 0 {
			out[el.ID] = vector.Size{W: el.Content.NaturalWidth, H: el.Content.NaturalHeight}
			continue
		}
		info, err := DimensionsFile(Resolve(root, el.Content.Src))
		if err != nil {
			errs = append(errs, fmt.Errorf("element %s: %w", el.ID, err))
			continue
		}
		out[el.ID] = info.Size()
	}
	return out, errors.Join(errs...)
}
