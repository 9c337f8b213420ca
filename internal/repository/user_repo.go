package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"patapesa/internal/model"
	"patapesa/internal/rewards"

	"github.com/jackc/pgx/v5"
)

// MutateFunc changes an account inside the row lock taken by Mutate.
type MutateFunc func(acc *model.Account) error

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, acc *model.Account, referrerBonus int64) error
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByPhone(ctx context.Context, phone string) (*model.Account, error)
	FindByReferralCode(ctx context.Context, code string) (*model.Account, error)
	List(ctx context.Context) ([]model.User, error)
	CountReferrals(ctx context.Context, userID string) (int, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
	Mutate(ctx context.Context, id string, c Change, fn MutateFunc) (*model.Account, *model.LedgerEntry, error)
}

// Change describes how a Mutate call is written to the ledger. An empty Kind
// writes nothing.
type Change struct {
	Kind        string
	Reference   *string
	Description *string
}

type userRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, phone_number, password_hash, points, referral_code, referred_by,
	bonus_balance, is_activated, pending_activation, has_used_free_spin, role, created_at, last_login`

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Username, &a.PhoneNumber, &a.PasswordHash, &a.Points, &a.ReferralCode, &a.ReferredBy,
		&a.BonusBalance, &a.IsActivated, &a.PendingActivation, &a.HasUsedFreeSpin, &a.Role, &a.CreatedAt, &a.LastLogin)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts the account. When acc.ReferredBy is set the referrer's bonus
// balance is credited with referrerBonus and both sides get a ledger row, all
// in one transaction.
func (r *userRepository) Create(ctx context.Context, acc *model.Account, referrerBonus int64) error {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		sql := `INSERT INTO users (id, username, phone_number, password_hash, points, referral_code, referred_by,
			bonus_balance, role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		_, err := tx.Exec(ctx, sql, acc.ID, acc.Username, acc.PhoneNumber, acc.PasswordHash, acc.Points,
			acc.ReferralCode, acc.ReferredBy, acc.BonusBalance, acc.Role, acc.CreatedAt)
		if err != nil {
			return err
		}
		if acc.ReferredBy == nil {
			return nil
		}

		var referrerPoints int64
		err = tx.QueryRow(ctx, `UPDATE users SET bonus_balance = bonus_balance + $1 WHERE id = $2 RETURNING points`,
			referrerBonus, *acc.ReferredBy).Scan(&referrerPoints)
		if err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}

		newID := acc.ID
		entries := []model.LedgerEntry{
			{UserID: acc.ID, Kind: model.LedgerKindReferralBonus, Delta: acc.Points, BonusDelta: acc.BonusBalance,
				BalanceAfter: acc.Points, Reference: acc.ReferredBy, CreatedAt: acc.CreatedAt},
			{UserID: *acc.ReferredBy, Kind: model.LedgerKindReferralBonus, BonusDelta: referrerBonus,
				BalanceAfter: referrerPoints, Reference: &newID, CreatedAt: acc.CreatedAt},
		}
		for i := range entries {
			if err := insertEntry(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) findOne(ctx context.Context, where string, arg any) (*model.Account, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`
	acc, err := scanAccount(r.db.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // not found is not an error for this contract, the service decides
		}
		return nil, fmt.Errorf("failed to find user by %s: %w", where, err)
	}
	return acc, nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, "id", id)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.findOne(ctx, "username", username)
}

// FindByPhone retrieves a user by their normalized phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.Account, error) {
	return r.findOne(ctx, "phone_number", phone)
}

func (r *userRepository) FindByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	return r.findOne(ctx, "referral_code", code)
}

// List returns every user, oldest first, without password hashes.
func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, acc.User)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *userRepository) CountReferrals(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE referred_by = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return n, nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Mutate locks one user row, applies fn, writes the balances and flags back
// and records the point/bonus deltas in the ledger, in one transaction.
// An error from fn rolls everything back and is returned as is.
func (r *userRepository) Mutate(ctx context.Context, id string, c Change, fn MutateFunc) (*model.Account, *model.LedgerEntry, error) {
	var acc *model.Account
	var entry *model.LedgerEntry
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		acc, err = scanAccount(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		before := acc.User
		if err := fn(acc); err != nil {
			return err
		}

		sql := `UPDATE users SET points = $1, bonus_balance = $2, is_activated = $3, pending_activation = $4,
			has_used_free_spin = $5 WHERE id = $6`
		if _, err := tx.Exec(ctx, sql, acc.Points, acc.BonusBalance, acc.IsActivated, acc.PendingActivation,
			acc.HasUsedFreeSpin, acc.ID); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		delta := acc.Points - before.Points
		bonusDelta := acc.BonusBalance - before.BonusBalance
		if c.Kind == "" || (delta == 0 && bonusDelta == 0) {
			return nil
		}
		entry = &model.LedgerEntry{
			UserID:       acc.ID,
			Kind:         c.Kind,
			Delta:        delta,
			BonusDelta:   bonusDelta,
			BalanceAfter: acc.Points,
			Reference:    c.Reference,
			Description:  c.Description,
			CreatedAt:    time.Now(),
		}
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, nil, err
	}
	return acc, entry, nil
}

func newEntryID() string {
	return rewards.NewID("entry")
}
