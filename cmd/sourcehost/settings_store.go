package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqliteSettingsStore is the devtool's demo source.SettingsGetter/
// source.SettingsSetter collaborator: a pure-Go, cgo-free key/value table
// backing the --settings-db flag, standing in for whatever real settings
// store an integrator plugs in behind the same two interfaces.
type sqliteSettingsStore struct {
	db *sql.DB
}

// openSettingsStore opens (and migrates, if needed) the sqlite database at
// path, creating it if it does not yet exist.
func openSettingsStore(path string) (*sqliteSettingsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping settings db: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS plugin_settings (
	plugin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (plugin, key)
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate settings db: %w", err)
	}
	return &sqliteSettingsStore{db: db}, nil
}

func (s *sqliteSettingsStore) Close() error { return s.db.Close() }

// forPlugin scopes the store to a single plugin's key namespace, matching
// the one-collaborator-per-instance shape internal/pluginhost.Options
// expects from WithSettings.
func (s *sqliteSettingsStore) forPlugin(name string) *pluginSettings {
	return &pluginSettings{store: s, plugin: name}
}

// pluginSettings implements source.SettingsGetter and source.SettingsSetter
// for a single plugin name.
type pluginSettings struct {
	store  *sqliteSettingsStore
	plugin string
}

// GetSetting returns the decoded JSON value stored for key, if any.
func (p *pluginSettings) GetSetting(ctx context.Context, key string) (any, bool) {
	row := p.store.db.QueryRowContext(ctx,
		`SELECT value FROM plugin_settings WHERE plugin = ? AND key = ?`, p.plugin, key)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("settings lookup failed", "plugin", p.plugin, "key", key, "error", err)
		}
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.Warn("stored setting is not valid JSON", "plugin", p.plugin, "key", key, "error", err)
		return nil, false
	}
	return v, true
}

// SetSetting upserts key's value, JSON-encoding whatever the defaults
// import namespace handed us.
func (p *pluginSettings) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	_, err = p.store.db.ExecContext(ctx, `
INSERT INTO plugin_settings (plugin, key, value) VALUES (?, ?, ?)
ON CONFLICT (plugin, key) DO UPDATE SET value = excluded.value`,
		p.plugin, key, string(raw))
	if err != nil {
		return fmt.Errorf("store setting %q: %w", key, err)
	}
	return nil
}
