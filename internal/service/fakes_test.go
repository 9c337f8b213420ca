package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"patapesa/internal/model"
	"patapesa/internal/repository"
)

// memRepo is an in-memory UserRepository + LedgerRepository.
type memRepo struct {
	mu      sync.Mutex
	users   map[string]*model.Account
	entries []model.LedgerEntry
	seq     int
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*model.Account)}
}

func (r *memRepo) copyOf(a *model.Account) *model.Account {
	c := *a
	return &c
}

func (r *memRepo) append(e model.LedgerEntry) {
	r.seq++
	e.ID = fmt.Sprintf("entry_%d", r.seq)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, e)
}

func (r *memRepo) Create(_ context.Context, acc *model.Account, referrerBonus int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == acc.Username || u.PhoneNumber == acc.PhoneNumber || u.ReferralCode == acc.ReferralCode {
			return repository.ErrUserAlreadyExists
		}
	}
	r.users[acc.ID] = r.copyOf(acc)
	if acc.ReferredBy != nil {
		ref := r.users[*acc.ReferredBy]
		ref.BonusBalance += referrerBonus
		newID := acc.ID
		r.append(model.LedgerEntry{UserID: acc.ID, Kind: model.LedgerKindReferralBonus, Delta: acc.Points,
			BonusDelta: acc.BonusBalance, BalanceAfter: acc.Points, Reference: acc.ReferredBy})
		r.append(model.LedgerEntry{UserID: ref.ID, Kind: model.LedgerKindReferralBonus, BonusDelta: referrerBonus,
			BalanceAfter: ref.Points, Reference: &newID})
	}
	return nil
}

func (r *memRepo) find(match func(a *model.Account) bool) *model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.users {
		if match(a) {
			return r.copyOf(a)
		}
	}
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool { return a.ID == id }), nil
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool { return a.Username == username }), nil
}

func (r *memRepo) FindByPhone(_ context.Context, phone string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool { return a.PhoneNumber == phone }), nil
}

func (r *memRepo) FindByReferralCode(_ context.Context, code string) (*model.Account, error) {
	return r.find(func(a *model.Account) bool { return a.ReferralCode == code }), nil
}

func (r *memRepo) List(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []model.User{}
	for _, a := range r.users {
		users = append(users, a.User)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *memRepo) CountReferrals(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.users {
		if a.ReferredBy != nil && *a.ReferredBy == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LastLogin = &at
	return nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *memRepo) Mutate(_ context.Context, id string, c repository.Change, fn repository.MutateFunc) (*model.Account, *model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	work := r.copyOf(stored)
	if err := fn(work); err != nil {
		return nil, nil, err
	}
	delta := work.Points - stored.Points
	bonusDelta := work.BonusBalance - stored.BonusBalance
	r.users[id] = work

	if c.Kind == "" || (delta == 0 && bonusDelta == 0) {
		return r.copyOf(work), nil, nil
	}
	r.append(model.LedgerEntry{UserID: id, Kind: c.Kind, Delta: delta, BonusDelta: bonusDelta,
		BalanceAfter: work.Points, Reference: c.Reference, Description: c.Description})
	e := r.entries[len(r.entries)-1]
	return r.copyOf(work), &e, nil
}

func (r *memRepo) FindByUser(ctx context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	filters.UserID = &userID
	return r.FindAll(ctx, filters)
}

func (r *memRepo) FindAll(_ context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.LedgerEntry{}
	for _, e := range r.entries {
		if filters.UserID != nil && e.UserID != *filters.UserID {
			continue
		}
		if filters.Kind != nil && e.Kind != *filters.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) FindByReference(_ context.Context, kind, reference string) (*model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Kind == kind && e.Reference != nil && *e.Reference == reference {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetAggregatedStats(_ context.Context, _ model.LedgerFilters) (*model.LedgerStats, error) {
	return &model.LedgerStats{ByKind: map[string]int64{}, ByUser: map[string]model.UserStat{}}, nil
}

// stubLimiter allows the first max attempts per key.
type stubLimiter struct {
	max    int
	counts map[string]int
	resets int
	wait   time.Duration
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= l.max, nil
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	delete(l.counts, key)
	l.resets++
	return nil
}

func (l *stubLimiter) RetryAfter(_ context.Context, key string) (time.Duration, error) {
	if l.counts[key] <= l.max {
		return 0, nil
	}
	return l.wait, nil
}
