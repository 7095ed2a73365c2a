/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package limits implements the account-tier capability check consulted before mutations that add
// pages, elements or projects. The editor core only depends on the Checker interface.
package limits

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"photobook/internal/domain"
)

// IntentKind names the limit being tested.
type IntentKind string

const (
	IntentAddPage       IntentKind = "add_page"
	IntentAddElement    IntentKind = "add_element"
	IntentCreateProject IntentKind = "create_project"
)

// Reason codes returned on deny.
const (
	ReasonMaxPages      = "max_pages_reached"
	ReasonMaxElements   = "max_elements_per_page_reached"
	ReasonMaxPhotobooks = "max_photobooks_reached"
	ReasonUnknownTier   = "unknown_tier"
	ReasonUnknownIntent = "unknown_intent"
)

// Intent is a request to grow a counted quantity by one. Current is the count before the mutation.
type Intent struct {
	Kind    IntentKind
	Current int
}

// Decision is the limiter's answer. Reason is set when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

// Checker is the synchronous capability check.
type Checker interface {
	CheckLimit(tier domain.Tier, intent Intent) Decision
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(tier domain.Tier, intent Intent) Decision

func (f CheckerFunc) CheckLimit(tier domain.Tier, intent Intent) Decision { return f(tier, intent) }

// Unlimited allows everything.
var Unlimited Checker = CheckerFunc(func(domain.Tier, Intent) Decision { return Decision{Allowed: true} })

// TierTable maps tiers to their limits.
type TierTable map[domain.Tier]domain.AccountLimits

// DefaultTable returns the built-in plan limits.
func DefaultTable() TierTable {
	return TierTable{
		domain.TierFree: {MaxPages: 20, MaxElementsPerPage: 30, MaxPhotobooks: 3},
		domain.TierPlus: {MaxPages: 60, MaxElementsPerPage: 60, MaxPhotobooks: 25},
		domain.TierPro:  {MaxPages: 200, MaxElementsPerPage: 120, MaxPhotobooks: 0},
	}
}

// CheckLimit implements Checker. An empty tier is treated as free.
func (t TierTable) CheckLimit(tier domain.Tier, intent Intent) Decision {
	if tier == "" {
		tier = domain.TierFree
	}
	lim, ok := t[tier]
	if !ok {
		return Decision{Reason: ReasonUnknownTier}
	}
	var limit int
	var reason string
	switch intent.Kind {
	case IntentAddPage:
		limit, reason = lim.MaxPages, ReasonMaxPages
	case IntentAddElement:
		limit, reason = lim.MaxElementsPerPage, ReasonMaxElements
	case IntentCreateProject:
		limit, reason = lim.MaxPhotobooks, ReasonMaxPhotobooks
	default:
		return Decision{Reason: ReasonUnknownIntent}
	}
	if limit > 0 && intent.Current >= limit {
		return Decision{Reason: reason}
	}
	return Decision{Allowed: true}
}

// Limits returns the limits of a tier.
func (t TierTable) Limits(tier domain.Tier) (domain.AccountLimits, bool) {
	l, ok := t[tier]
	return l, ok
}

// tableFile is the YAML layout:
//
//	tiers:
//	  free: {max_pages: 20, max_elements_per_page: 30, max_photobooks: 3}
type tableFile struct {
	Tiers map[string]domain.AccountLimits `yaml:"tiers"`
}

// ParseTable decodes a YAML tier table. Tiers not mentioned keep their defaults.
func ParseTable(data []byte) (TierTable, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}
	t := DefaultTable()
	for name, lim := range f.Tiers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, errors.New("parse tier table: empty tier name")
		}
		if lim.MaxPages < 0 || lim.MaxElementsPerPage < 0 || lim.MaxPhotobooks < 0 {
			return nil, fmt.Errorf("parse tier table: negative limit for tier %q", name)
		}
		t[domain.Tier(name)] = lim
	}
	return t, nil
}

// LoadTable reads a YAML tier table from path. An empty path yields the defaults.
func LoadTable(path string) (TierTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier table: %w", err)
	}
	return ParseTable(b)
}
