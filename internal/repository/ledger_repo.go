package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"patapesa/internal/model"

	"github.com/jackc/pgx/v5"
)

// LedgerRepository reads the append-only point ledger. Rows are written by
// UserRepository inside the same transaction as the balance they describe.
type LedgerRepository interface {
	FindByUser(ctx context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error)
	FindAll(ctx context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error)
	FindByReference(ctx context.Context, kind, reference string) (*model.LedgerEntry, error)
	GetAggregatedStats(ctx context.Context, filters model.LedgerFilters) (*model.LedgerStats, error)
}

type ledgerRepository struct {
	db DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

const ledgerColumns = `l.id, l.user_id, l.kind, l.delta, l.bonus_delta, l.balance_after, l.reference, l.description, l.created_at`

func insertEntry(ctx context.Context, q DB, e *model.LedgerEntry) error {
	if e.ID == "" {
		e.ID = newEntryID()
	}
	sql := `INSERT INTO point_ledger (id, user_id, kind, delta, bonus_delta, balance_after, reference, description, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.Exec(ctx, sql, e.ID, e.UserID, e.Kind, e.Delta, e.BonusDelta, e.BalanceAfter, e.Reference, e.Description, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Kind, &e.Delta, &e.BonusDelta, &e.BalanceAfter, &e.Reference, &e.Description, &e.CreatedAt)
	return e, err
}

// whereClause builds the filter conditions, numbering placeholders from 1.
func whereClause(filters model.LedgerFilters) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters.UserID != nil && *filters.UserID != "" {
		add("l.user_id = $%d", *filters.UserID)
	}
	if filters.Kind != nil && *filters.Kind != "" {
		add("l.kind = $%d", *filters.Kind)
	}
	if filters.StartDate != nil {
		add("l.created_at >= $%d", *filters.StartDate)
	}
	if filters.EndDate != nil {
		add("l.created_at <= $%d", *filters.EndDate)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *ledgerRepository) query(ctx context.Context, sql string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}

// FindByUser retrieves one user's entries, newest first
func (r *ledgerRepository) FindByUser(ctx context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	filters.UserID = &userID
	return r.FindAll(ctx, filters)
}

// FindAll retrieves entries with optional filters for admin
func (r *ledgerRepository) FindAll(ctx context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	where, args := whereClause(filters)
	sql := `SELECT ` + ledgerColumns + ` FROM point_ledger l` + where + ` ORDER BY l.created_at DESC, l.id DESC`
	return r.query(ctx, sql, args...)
}

// FindByReference returns the entry of the given kind carrying reference,
// or nil when there is none.
func (r *ledgerRepository) FindByReference(ctx context.Context, kind, reference string) (*model.LedgerEntry, error) {
	sql := `SELECT ` + ledgerColumns + ` FROM point_ledger l WHERE l.kind = $1 AND l.reference = $2`
	e, err := scanEntry(r.db.QueryRow(ctx, sql, kind, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find ledger entry by reference: %w", err)
	}
	return &e, nil
}

// GetAggregatedStats calculates credited/debited totals overall, per kind
// and per user
func (r *ledgerRepository) GetAggregatedStats(ctx context.Context, filters model.LedgerFilters) (*model.LedgerStats, error) {
	stats := &model.LedgerStats{
		ByKind: make(map[string]int64),
		ByUser: make(map[string]model.UserStat),
	}
	where, args := whereClause(filters)
	from := " FROM point_ledger l JOIN users u ON l.user_id = u.id"

	sumQuery := `
        SELECT
            COALESCE(SUM(CASE WHEN l.delta > 0 THEN l.delta ELSE 0 END), 0) AS total_credited,
            COALESCE(SUM(CASE WHEN l.delta < 0 THEN -l.delta ELSE 0 END), 0) AS total_debited,
            COALESCE(SUM(l.bonus_delta), 0) AS total_bonus` + from + where

	err := r.db.QueryRow(ctx, sumQuery, args...).Scan(&stats.TotalCredited, &stats.TotalDebited, &stats.TotalBonus)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get ledger totals: %w", err)
	}
	stats.Net = stats.TotalCredited - stats.TotalDebited

	kindQuery := `SELECT l.kind, COALESCE(SUM(l.delta), 0)` + from + where + ` GROUP BY l.kind`
	rows, err := r.db.Query(ctx, kindQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger by kind: %w", err)
	}
	for rows.Next() {
		var kind string
		var sum int64
		if err := rows.Scan(&kind, &sum); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan ledger by kind: %w", err)
		}
		stats.ByKind[kind] = sum
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger by kind: %w", err)
	}

	userQuery := `
        SELECT
            l.user_id,
            u.username,
            COALESCE(SUM(CASE WHEN l.delta > 0 THEN l.delta ELSE 0 END), 0) AS total_credited,
            COALESCE(SUM(CASE WHEN l.delta < 0 THEN -l.delta ELSE 0 END), 0) AS total_debited,
            COUNT(l.id) AS entry_count` + from + where + ` GROUP BY l.user_id, u.username`

	rows, err = r.db.Query(ctx, userQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats by user: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var us model.UserStat
		if err := rows.Scan(&us.UserID, &us.Username, &us.TotalCredited, &us.TotalDebited, &us.EntryCount); err != nil {
			return nil, fmt.Errorf("failed to scan user stats: %w", err)
		}
		stats.ByUser[us.UserID] = us
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user stats: %w", err)
	}

	return stats, nil
}
