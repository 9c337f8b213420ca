package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record changed concurrently, giving up")
)

// Record keys of the on-device layout
const (
	KeyUsers            = "@users"        // map userId -> model.Account
	KeyCurrentUser      = "@current_user" // model.Session, password excluded
	KeySavedCredentials = "@saved_credentials"
	KeyRememberMe       = "@remember_me"
	KeyOnboarding       = "@onboarding_completed"
	KeyLedger           = "@ledger" // []model.LedgerEntry, append-only
)

// UpdateFunc receives the current value (nil when the record is missing) and
// returns the value to store. Returning an error aborts without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the key-value persistence shim.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Update is an atomic read-modify-write of a single record.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// GetJSON decodes the record stored under key.
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// UpdateJSON decodes the record into a T (zero value when missing), lets fn
// mutate it and writes it back atomically.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T) error) error {
	return s.Update(ctx, key, func(current []byte) ([]byte, error) {
		v := new(T)
		if current != nil {
			if err := json.Unmarshal(current, v); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}
