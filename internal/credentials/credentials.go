// Package credentials implements the optional "remember me" record.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"patapesa/internal/model"
	"patapesa/internal/store"
)

type Store struct {
	kv store.Store
}

func NewStore(kv store.Store) *Store {
	return &Store{kv: kv}
}

// Save records the opt-in flag and, only when it is set, the credential pair.
func (s *Store) Save(ctx context.Context, creds model.SavedCredentials, rememberMe bool) error {
	if err := store.SetJSON(ctx, s.kv, store.KeyRememberMe, rememberMe); err != nil {
		return fmt.Errorf("failed to save remember-me flag: %w", err)
	}
	if !rememberMe {
		if err := s.kv.Delete(ctx, store.KeySavedCredentials); err != nil {
			return fmt.Errorf("failed to clear saved credentials: %w", err)
		}
		return nil
	}
	if err := store.SetJSON(ctx, s.kv, store.KeySavedCredentials, creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Load returns the saved pair, or nil when remember-me is off or nothing was saved.
func (s *Store) Load(ctx context.Context) (*model.SavedCredentials, bool, error) {
	remember, err := store.GetJSON[bool](ctx, s.kv, store.KeyRememberMe)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !*remember {
		return nil, false, nil
	}

	creds, err := store.GetJSON[model.SavedCredentials](ctx, s.kv, store.KeySavedCredentials)
	if errors.Is(err, store.ErrNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return creds, true, nil
}

// Clear forgets both the flag and the pair.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, store.KeySavedCredentials); err != nil {
		return fmt.Errorf("failed to clear saved credentials: %w", err)
	}
	if err := s.kv.Delete(ctx, store.KeyRememberMe); err != nil {
		return fmt.Errorf("failed to clear remember-me flag: %w", err)
	}
	return nil
}
