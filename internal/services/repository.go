package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajramos/resched/internal/db"
)

// Store keys for the cancelled-time record. Flat string values: the raw
// display text and, when capture could parse it, a canonical instant.
const (
	keyCancelledRaw = "cancelled_time_raw"
	keyCancelledISO = "cancelled_time_iso"
)

// CancelTimeRepositoryImpl implements CancelTimeRepository over the local
// key-value store
type CancelTimeRepositoryImpl struct {
	kv *db.KVStore
}

// NewCancelTimeRepository creates a new cancelled-time repository
func NewCancelTimeRepository(kv *db.KVStore) *CancelTimeRepositoryImpl {
	return &CancelTimeRepositoryImpl{kv: kv}
}

func (r *CancelTimeRepositoryImpl) Load(ctx context.Context) (SavedCancelledTime, bool, error) {
	if r.kv == nil {
		return SavedCancelledTime{}, false, ErrStoreUnavailable
	}
	values, err := r.kv.Get(ctx, keyCancelledRaw, keyCancelledISO)
	if err != nil {
		return SavedCancelledTime{}, false, fmt.Errorf("load cancelled time: %w", err)
	}
	rec := SavedCancelledTime{
		RawText: values[keyCancelledRaw],
		ISOTime: values[keyCancelledISO],
	}
	if rec.RawText == "" && rec.ISOTime == "" {
		return SavedCancelledTime{}, false, nil
	}
	return rec, true, nil
}

func (r *CancelTimeRepositoryImpl) Save(ctx context.Context, rec SavedCancelledTime) error {
	if r.kv == nil {
		return ErrStoreUnavailable
	}
	if strings.TrimSpace(rec.RawText) == "" {
		return fmt.Errorf("raw text cannot be empty")
	}
	// Overwrites the previous record entirely. A stale ISO value from an
	// earlier capture must not survive a raw-only save.
	if rec.ISOTime == "" {
		if err := r.kv.Remove(ctx, keyCancelledISO); err != nil {
			return fmt.Errorf("save cancelled time: %w", err)
		}
		if err := r.kv.Set(ctx, map[string]string{keyCancelledRaw: rec.RawText}); err != nil {
			return fmt.Errorf("save cancelled time: %w", err)
		}
		return nil
	}
	err := r.kv.Set(ctx, map[string]string{
		keyCancelledRaw: rec.RawText,
		keyCancelledISO: rec.ISOTime,
	})
	if err != nil {
		return fmt.Errorf("save cancelled time: %w", err)
	}
	return nil
}

func (r *CancelTimeRepositoryImpl) Clear(ctx context.Context) error {
	if r.kv == nil {
		return ErrStoreUnavailable
	}
	if err := r.kv.Remove(ctx, keyCancelledRaw, keyCancelledISO); err != nil {
		return fmt.Errorf("clear cancelled time: %w", err)
	}
	return nil
}
