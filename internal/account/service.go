// Package account is the device-side account/session module: registration,
// login with remote-first/local-fallback, the points ledger, the free spin,
// activation and withdrawals. The presentation layer only talks to Service.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"patapesa/internal/credentials"
	"patapesa/internal/model"
	"patapesa/internal/remote"
	"patapesa/internal/rewards"
	"patapesa/internal/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateAccount   = errors.New("user already exists with this username or phone number")
	ErrInvalidPassword    = errors.New("incorrect password for this username")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoSession          = errors.New("no user is logged in")
	ErrFreeSpinUsed       = errors.New("the free spin has already been used")
	ErrAccountConflict    = errors.New("username is held by a different account on this device")
)

// Mirror is the server-side copy of the account data. *remote.Client
// implements it.
type Mirror interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, error)
	UpdatePoints(ctx context.Context, userID string, points int64) (int64, error)
}

// FallbackPolicy decides which mirror failures are retried on the local store.
type FallbackPolicy int

const (
	// FallbackAny retries every mirror failure locally, including rejections.
	FallbackAny FallbackPolicy = iota
	// FallbackUnavailable retries only remote.ErrUnavailable; business
	// rejections from a reachable mirror are returned to the caller.
	FallbackUnavailable
	// FallbackNever returns mirror failures as they are.
	FallbackNever
)

type Option func(*Service)

func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

func WithFallback(p FallbackPolicy) Option {
	return func(s *Service) { s.fallback = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost of locally stored hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

type Service struct {
	kv       store.Store
	creds    *credentials.Store
	mirror   Mirror
	fallback FallbackPolicy
	logger   *zap.Logger
	now      func() time.Time
	hashCost int

	// mu serializes read-modify-write sequences spanning the user set,
	// the session and the ledger.
	mu sync.Mutex
}

func NewService(kv store.Store, opts ...Option) *Service {
	s := &Service{
		kv:       kv,
		creds:    credentials.NewStore(kv),
		fallback: FallbackAny,
		logger:   zap.NewNop(),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type userSet map[string]*model.Account

func (s *Service) loadUsers(ctx context.Context) (userSet, error) {
	users, err := store.GetJSON[userSet](ctx, s.kv, store.KeyUsers)
	if errors.Is(err, store.ErrNotFound) {
		return userSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if *users == nil {
		return userSet{}, nil
	}
	return *users, nil
}

func (s *Service) updateUsers(ctx context.Context, fn func(users userSet) error) error {
	return store.UpdateJSON(ctx, s.kv, store.KeyUsers, func(users *userSet) error {
		if *users == nil {
			*users = userSet{}
		}
		return fn(*users)
	})
}

func findByUsername(users userSet, username string) *model.Account {
	for _, a := range users {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func findByReferralCode(users userSet, code string) *model.Account {
	for _, a := range users {
		if a.ReferralCode == code {
			return a
		}
	}
	return nil
}

func uniqueReferralCode(users userSet) string {
	for {
		code := rewards.GenerateReferralCode()
		if findByReferralCode(users, code) == nil {
			return code
		}
	}
}

// shouldFallback applies the fallback policy to a mirror failure.
func (s *Service) shouldFallback(err error) bool {
	switch s.fallback {
	case FallbackNever:
		return false
	case FallbackUnavailable:
		return errors.Is(err, remote.ErrUnavailable)
	default:
		return true
	}
}

// translateRemote maps a mirror rejection onto this package's errors.
func translateRemote(err error) error {
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == model.CodeInvalidPassword:
		return ErrInvalidPassword
	case apiErr.Code == model.CodeInvalidCredentials:
		return ErrInvalidCredentials
	case apiErr.StatusCode == http.StatusConflict:
		return ErrDuplicateAccount
	case apiErr.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	case apiErr.StatusCode == http.StatusBadRequest:
		return &rewards.ValidationError{Message: apiErr.Message}
	}
	return err
}

// Users lists every locally known user, oldest first, without passwords.
func (s *Service) Users(ctx context.Context) ([]model.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(users))
	for _, a := range users {
		out = append(out, a.User)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// User returns one locally known user.
func (s *Service) User(ctx context.Context, userID string) (*model.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	a, ok := users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return a.Public(), nil
}

// ResolveReferral returns the owner of code, or nil when nobody owns it.
func (s *Service) ResolveReferral(ctx context.Context, code string) (*model.User, error) {
	if code == "" {
		return nil, nil
	}
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	if a := findByReferralCode(users, code); a != nil {
		return a.Public(), nil
	}
	return nil, nil
}

// ReferralStats counts the users referred by userID.
func (s *Service) ReferralStats(ctx context.Context, userID string) (*model.ReferralStats, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	owner, ok := users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	stats := &model.ReferralStats{BonusBalance: owner.BonusBalance}
	for _, a := range users {
		if a.ReferredBy != nil && *a.ReferredBy == userID {
			stats.TotalReferrals++
		}
	}
	stats.TotalEarnings = int64(stats.TotalReferrals) * rewards.ReferralBonus
	return stats, nil
}

func (s *Service) HasCompletedOnboarding(ctx context.Context) (bool, error) {
	done, err := store.GetJSON[bool](ctx, s.kv, store.KeyOnboarding)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return *done, nil
}

func (s *Service) SetOnboardingCompleted(ctx context.Context) error {
	return store.SetJSON(ctx, s.kv, store.KeyOnboarding, true)
}

// SavedCredentials returns the remembered login, if any.
func (s *Service) SavedCredentials(ctx context.Context) (*model.SavedCredentials, bool, error) {
	return s.creds.Load(ctx)
}
