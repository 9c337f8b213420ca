package account

import (
	"context"
	"errors"
	"fmt"

	"patapesa/internal/model"

	"go.uber.org/zap"
)

// pinger is implemented by stores and mirrors that can report reachability,
// e.g. *store.RedisStore and *remote.Client.
type pinger interface {
	Ping(ctx context.Context) error
}

// profileSource is a Mirror that also serves single profiles.
type profileSource interface {
	Profile(ctx context.Context, userID string) (*model.User, error)
}

var ErrNoMirror = errors.New("no server mirror is configured")

const (
	HealthOK       = "ok"
	HealthDisabled = "disabled"
	HealthUnknown  = "unchecked"
)

// Health is the reachability of the two backends of a Service.
type Health struct {
	Store  string `json:"store"`
	Mirror string `json:"mirror"`
}

// CheckHealth pings the store and the mirror when they support it. The
// returned error joins every failed ping.
func (s *Service) CheckHealth(ctx context.Context) (Health, error) {
	h := Health{Store: HealthUnknown, Mirror: HealthDisabled}
	var errs []error

	if p, ok := s.kv.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			h.Store = err.Error()
			errs = append(errs, fmt.Errorf("store: %w", err))
		} else {
			h.Store = HealthOK
		}
	}
	if s.mirror != nil {
		h.Mirror = HealthUnknown
		if p, ok := s.mirror.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				h.Mirror = err.Error()
				errs = append(errs, fmt.Errorf("mirror: %w", err))
			} else {
				h.Mirror = HealthOK
			}
		}
	}
	return h, errors.Join(errs...)
}

// RefreshProfile pulls the server copy of a locally known user and merges it
// the same way a remote login does. The local password hash is kept.
func (s *Service) RefreshProfile(ctx context.Context, userID string) (*model.User, error) {
	src, ok := s.mirror.(profileSource)
	if !ok {
		return nil, ErrNoMirror
	}
	server, err := src.Profile(ctx, userID)
	if err != nil {
		return nil, translateRemote(err)
	}
	if server.ID != userID {
		return nil, fmt.Errorf("mirror answered for user %s instead of %s", server.ID, userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var merged model.User
	err = s.updateUsers(ctx, func(users userSet) error {
		acc, ok := users[userID]
		if !ok {
			return ErrUserNotFound
		}
		if other := findByUsername(users, server.Username); other != nil && other.ID != userID {
			return fmt.Errorf("%w: username %q belongs to local user %s", ErrAccountConflict, server.Username, other.ID)
		}
		acc.User = mergeRemote(acc.User, *server)
		merged = acc.User
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.syncSession(ctx, &merged); err != nil {
		s.logger.Warn("session not refreshed", zap.String("user_id", userID), zap.Error(err))
	}
	return &merged, nil
}
