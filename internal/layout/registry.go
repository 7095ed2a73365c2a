/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"photobook/internal/domain"
	applog "photobook/internal/log"
)

//go:embed templates.yaml
var builtinTemplates []byte

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Registry is a name-indexed set of templates. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Template
	source map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Template{}, source: map[string]string{}}
}

// Builtin returns a registry holding the built-in templates.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	if _, err := r.LoadYAML(builtinTemplates, "builtin"); err != nil {
		return nil, err
	}
	return r, nil
}

// Add registers t, replacing a template of the same name.
func (r *Registry) Add(t Template, source string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.source[t.Name]; ok && prev != source {
		applog.WithComponent("layout").Debug("template overridden", slog.String("name", t.Name), slog.String("from", prev), slog.String("by", source))
	}
	r.byName[t.Name] = t
	r.source[t.Name] = source
	return nil
}

// LoadYAML parses a templates document and registers every template in it. It returns the number
// of templates added; nothing is registered if any template is invalid.
func (r *Registry) LoadYAML(data []byte, source string) (int, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse templates %s: %w", source, err)
	}
	for _, t := range f.Templates {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("%s: %w", source, err)
		}
	}
	for _, t := range f.Templates {
		if err := r.Add(t, source); err != nil {
			return 0, err
		}
	}
	return len(f.Templates), nil
}

// LoadDir loads every *.yaml / *.yml file of dir. A missing directory is not an error.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read templates dir: %w", err)
	}
	total := 0
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			return total, err
		}
		n, err := r.LoadYAML(b, path)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Get returns the named template.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns all templates sorted by name.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForPageType lists the templates applicable to pages of type pt, sorted by name.
func (r *Registry) ForPageType(pt domain.PageType) []Template {
	var out []Template
	for _, t := range r.List() {
		if t.Supports(pt) {
			out = append(out, t)
		}
	}
	return out
}

// MarshalTemplates renders templates in the registry file format.
func MarshalTemplates(ts ...Template) ([]byte, error) {
	return yaml.Marshal(templateFile{Templates: ts})
}
