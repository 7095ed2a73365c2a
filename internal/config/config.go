/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user scope, PB_* environment
// overrides and the backend token kept in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"photobook/internal/history"
	"photobook/internal/limits"
	applog "photobook/internal/log"
	"photobook/internal/telemetry"
	"photobook/internal/vector"
)

// CurrentVersion is the config_version written by Save. Bump it when the structure changes in a
// backward-incompatible way.
const CurrentVersion = 2

type GeneralConfig struct {
	// Owner is recorded on projects created by this user and counted against the tier quota.
	Owner string `yaml:"owner"`
	Tier  string `yaml:"tier"`
	// CatalogDir holds the local project catalogue database.
	CatalogDir string `yaml:"catalog_dir"`
}

type EditorConfig struct {
	HistoryDepth  int     `yaml:"history_depth"`
	MergeWindowMs int     `yaml:"merge_window_ms"`
	DisableSnap   bool    `yaml:"disable_snap"`
	SnapThreshold float64 `yaml:"snap_threshold"`
	DefaultWidth  float64 `yaml:"default_width"`
	DefaultHeight float64 `yaml:"default_height"`
}

type LimitsConfig struct {
	// TierFile replaces the built-in tier table when set.
	TierFile string `yaml:"tier_file"`
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	DSN       string `yaml:"dsn"`
	Addr      string `yaml:"addr"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

// AppConfig is the user-editable configuration. Environment variables are read-only overrides.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	General       GeneralConfig   `yaml:"general"`
	Editor        EditorConfig    `yaml:"editor"`
	Limits        LimitsConfig    `yaml:"limits"`
	Backend       BackendConfig   `yaml:"backend"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Tier: "free"},
		Editor: EditorConfig{
			HistoryDepth: history.DefaultMaxDepth, MergeWindowMs: 1000,
			SnapThreshold: vector.DefaultSnapOptions().Threshold,
			DefaultWidth: 200, DefaultHeight: 150,
		},
		Backend: BackendConfig{BaseURL: "http://localhost:8080", Addr: ":8080", TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "PB_CONFIG"
	EnvOwner            = "PB_OWNER"
	EnvTier             = "PB_TIER"
	EnvCatalogDir       = "PB_CATALOG_DIR"
	EnvHistoryDepth     = "PB_HISTORY_DEPTH"
	EnvSnapThreshold    = "PB_SNAP_THRESHOLD"
	EnvTierFile         = "PB_TIER_FILE"
	EnvBackendURL       = "PB_BACKEND_URL"
	EnvBackendDSN       = "PB_PG_DSN"
	EnvBackendTimeoutMs = "PB_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn   = "PB_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "PB_TELEMETRY_URL"
	EnvCrashUploadURL   = "PB_CRASH_UPLOAD_URL"
	EnvLogLevel         = "PB_LOG_LEVEL"
	EnvLogFormat        = "PB_LOG_FORMAT"
	EnvLogSource        = "PB_LOG_SOURCE"
	EnvLogFile          = "PB_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "Photobook"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the keyring so tests can swap it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore with github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// ConfigPath returns the per-user config file path. PB_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Photobook")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Photobook")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "photobook")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "photobook")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and environment overrides, and
// returns the backend token from the keyring (empty when none is stored).
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, "", err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, "", err
	}
	tok, err := Token()
	if err != nil {
		applog.WithComponent("config").Debug("no backend token", "err", err)
	}
	return cfg, tok, nil
}

// LoadFrom reads path like Load without touching the keyring. A missing file yields defaults; a
// malformed file is an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := SaveTo(path, cfg); err != nil {
		return err
	}
	if token != "" {
		return SetToken(token)
	}
	return nil
}

// SaveTo writes cfg as YAML at path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Token returns the backend token from the keyring.
func Token() (string, error) { return tokenStore.Get(keyringService, keyringToken) }

// SetToken stores the backend token in the keyring.
func SetToken(token string) error { return tokenStore.Set(keyringService, keyringToken, token) }

// ClearToken removes the stored token. A missing token is not an error.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setString(&dst.General.Owner, src.General.Owner)
	if t := strings.ToLower(strings.TrimSpace(src.General.Tier)); t != "" {
		dst.General.Tier = t
	}
	setString(&dst.General.CatalogDir, src.General.CatalogDir)

	if src.Editor.HistoryDepth > 0 {
		dst.Editor.HistoryDepth = src.Editor.HistoryDepth
	}
	if src.Editor.MergeWindowMs != 0 {
		dst.Editor.MergeWindowMs = src.Editor.MergeWindowMs
	}
	// booleans: copy directly from the file so user preferences persist
	dst.Editor.DisableSnap = src.Editor.DisableSnap
	if src.Editor.SnapThreshold > 0 {
		dst.Editor.SnapThreshold = src.Editor.SnapThreshold
	}
	if src.Editor.DefaultWidth > 0 && src.Editor.DefaultHeight > 0 {
		dst.Editor.DefaultWidth, dst.Editor.DefaultHeight = src.Editor.DefaultWidth, src.Editor.DefaultHeight
	}

	setString(&dst.Limits.TierFile, src.Limits.TierFile)

	setString(&dst.Backend.BaseURL, src.Backend.BaseURL)
	setString(&dst.Backend.DSN, src.Backend.DSN)
	setString(&dst.Backend.Addr, src.Backend.Addr)
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)

	dst.Telemetry.OptIn = src.Telemetry.OptIn
	setString(&dst.Telemetry.EventsURL, src.Telemetry.EventsURL)
	setString(&dst.Telemetry.CrashURL, src.Telemetry.CrashURL)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(key string) string { return strings.TrimSpace(os.Getenv(key)) }
	setString(&cfg.General.Owner, env(EnvOwner))
	if v := env(EnvTier); v != "" {
		cfg.General.Tier = strings.ToLower(v)
	}
	setString(&cfg.General.CatalogDir, env(EnvCatalogDir))
	if n, err := strconv.Atoi(env(EnvHistoryDepth)); err == nil && n > 0 {
		cfg.Editor.HistoryDepth = n
	}
	if f, err := strconv.ParseFloat(env(EnvSnapThreshold), 64); err == nil && f > 0 {
		cfg.Editor.SnapThreshold = f
	}
	setString(&cfg.Limits.TierFile, env(EnvTierFile))
	setString(&cfg.Backend.BaseURL, env(EnvBackendURL))
	setString(&cfg.Backend.DSN, env(EnvBackendDSN))
	if n, err := strconv.Atoi(env(EnvBackendTimeoutMs)); err == nil {
		cfg.Backend.TimeoutMs = n
	}
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.Telemetry.OptIn = envBool(v)
	}
	setString(&cfg.Telemetry.EventsURL, env(EnvTelemetryURL))
	setString(&cfg.Telemetry.CrashURL, env(EnvCrashUploadURL))
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	setString(&cfg.Logging.File, env(EnvLogFile))
}

var envKeys = map[string]string{
	"general.owner":         EnvOwner,
	"general.tier":          EnvTier,
	"general.catalog_dir":   EnvCatalogDir,
	"editor.history_depth":  EnvHistoryDepth,
	"editor.snap_threshold": EnvSnapThreshold,
	"limits.tier_file":      EnvTierFile,
	"backend.base_url":      EnvBackendURL,
	"backend.dsn":           EnvBackendDSN,
	"backend.timeout_ms":    EnvBackendTimeoutMs,
	"telemetry.opt_in":      EnvTelemetryOptIn,
	"telemetry.events_url":  EnvTelemetryURL,
	"telemetry.crash_url":   EnvCrashUploadURL,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// History returns the undo history settings.
func (e EditorConfig) History() history.Config {
	return history.Config{MaxDepth: e.HistoryDepth, MergeWindow: time.Duration(e.MergeWindowMs) * time.Millisecond}
}

// SnapOptions returns the smart-guide settings.
func (e EditorConfig) SnapOptions() vector.SnapOptions {
	o := vector.DefaultSnapOptions()
	if e.SnapThreshold > 0 {
		o.Threshold = e.SnapThreshold
	}
	return o
}

// DefaultSize is the size of elements created without explicit dimensions.
func (e EditorConfig) DefaultSize() vector.Size {
	if e.DefaultWidth <= 0 || e.DefaultHeight <= 0 {
		return vector.Size{W: 200, H: 150}
	}
	return vector.Size{W: e.DefaultWidth, H: e.DefaultHeight}
}

// Table returns the tier table: the built-in one, or TierFile when set.
func (l LimitsConfig) Table() (limits.TierTable, error) {
	if l.TierFile == "" {
		return limits.DefaultTable(), nil
	}
	return limits.LoadTable(l.TierFile)
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Options converts to logger options.
func (l LoggingConfig) Options() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// Sender converts to telemetry settings.
func (t TelemetryConfig) Sender() telemetry.Config {
	return telemetry.Config{OptIn: t.OptIn, EventsURL: t.EventsURL, CrashURL: t.CrashURL}
}
