package store

import (
	"context"
	"database/sql"
	"strconv"
)

// GetConfigValue reads a value from the config key/value table. Missing keys
// return "", nil.
func (db *DB) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetConfigInt reads an integer config value, falling back to def when the
// key is missing or not a number.
func (db *DB) GetConfigInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := db.GetConfigValue(ctx, key)
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetConfigValue upserts a config key.
func (db *DB) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
