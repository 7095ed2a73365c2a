/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"photobook/internal/domain"
)

// Client is a minimal HTTP client for the backend API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.client.Timeout = d
	}
	return c
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("server %s %s: %w", method, u.Path, ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("server %s %s: %w", method, u.Path, ErrVersionConflict)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server %s %s: %s: %s", method, u.Path, resp.Status, e.Error)
		}
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// ListProjects returns the stored projects; an empty owner lists all.
func (c *Client) ListProjects(ctx context.Context, owner string) ([]Summary, error) {
	path := "/api/projects"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var list []Summary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetProject fetches a project with its stored version.
func (c *Client) GetProject(ctx context.Context, id string) (ProjectEnvelope, error) {
	var env ProjectEnvelope
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &env)
	return env, err
}

// PutProject uploads p. base is the version the caller last saw; 0 overwrites unconditionally.
func (c *Client) PutProject(ctx context.Context, p domain.Project, base int64) (int64, error) {
	var res struct {
		Version int64 `json:"version"`
	}
	err := c.doJSON(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(p.ID), ProjectEnvelope{Version: base, Project: p}, &res)
	return res.Version, err
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// Save implements the editor's Saver.
func (c *Client) Save(ctx context.Context, p domain.Project) error {
	_, err := c.PutProject(ctx, p, 0)
	return err
}
