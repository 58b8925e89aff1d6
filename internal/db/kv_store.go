package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// KVStore exposes the flat string-valued records resched persists across
// page reloads and process restarts. Individual calls are atomic; sequences
// of calls are not, so consumers must re-validate after every read.
type KVStore struct {
	store *Store
}

// NewKVStore creates a new key-value store from a base store
func NewKVStore(store *Store) *KVStore {
	if store == nil {
		return nil
	}
	return &KVStore{store: store}
}

// Get returns the values for the requested keys. Missing keys are simply
// absent from the result map.
func (kv *KVStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	if kv == nil || kv.store == nil || kv.store.db == nil {
		return nil, fmt.Errorf("kv store not initialized")
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("empty key")
		}
		var value string
		err := kv.store.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

// Set upserts the given key-value pairs in a single transaction.
func (kv *KVStore) Set(ctx context.Context, values map[string]string) error {
	if kv == nil || kv.store == nil || kv.store.db == nil {
		return fmt.Errorf("kv store not initialized")
	}
	if len(values) == 0 {
		return nil
	}
	tx, err := kv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set: %w", err)
	}
	now := time.Now().Unix()
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			_ = tx.Rollback()
			return fmt.Errorf("empty key")
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO kv(key, value, updated_at)
VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
`, key, value, now)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Remove deletes the given keys. Removing an absent key is not an error.
func (kv *KVStore) Remove(ctx context.Context, keys ...string) error {
	if kv == nil || kv.store == nil || kv.store.db == nil {
		return fmt.Errorf("kv store not initialized")
	}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("empty key")
		}
		if _, err := kv.store.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key); err != nil {
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return nil
}
