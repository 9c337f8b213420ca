package repository

import (
	"context"
	"testing"
	"time"

	"patapesa/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entryCols = []string{"id", "user_id", "kind", "delta", "bonus_delta", "balance_after", "reference", "description", "created_at"}

func TestLedgerRepository_FindByUserWithFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewLedgerRepository(mock)
	kind := model.LedgerKindSpin
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(entryCols).
		AddRow("entry_2", "user_1", kind, int64(500), int64(0), int64(1100), (*string)(nil), (*string)(nil), created.Add(time.Hour)).
		AddRow("entry_1", "user_1", kind, int64(600), int64(0), int64(600), (*string)(nil), (*string)(nil), created)
	mock.ExpectQuery(`FROM point_ledger l WHERE l.user_id = \$1 AND l.kind = \$2 AND l.created_at >= \$3 ORDER BY`).
		WithArgs("user_1", kind, start).
		WillReturnRows(rows)

	entries, err := repo.FindByUser(context.Background(), "user_1", model.LedgerFilters{Kind: &kind, StartDate: &start})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "entry_2", entries[0].ID)
	assert.Equal(t, int64(1100), entries[0].BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_FindAllUnfiltered(t *testing.T) {
	mock := newMock(t)
	repo := NewLedgerRepository(mock)

	mock.ExpectQuery(`FROM point_ledger l ORDER BY l.created_at DESC`).WillReturnRows(pgxmock.NewRows(entryCols))

	entries, err := repo.FindAll(context.Background(), model.LedgerFilters{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_FindByReference(t *testing.T) {
	mock := newMock(t)
	repo := NewLedgerRepository(mock)
	ref := "withdraw_1"

	mock.ExpectQuery(`WHERE l.kind = \$1 AND l.reference = \$2`).WithArgs(model.LedgerKindWithdrawal, ref).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow("entry_9", "user_1", model.LedgerKindWithdrawal, int64(-525), int64(0), int64(475), &ref, (*string)(nil), created))
	e, err := repo.FindByReference(context.Background(), model.LedgerKindWithdrawal, ref)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(-525), e.Delta)

	mock.ExpectQuery(`WHERE l.kind = \$1 AND l.reference = \$2`).WithArgs(model.LedgerKindWithdrawal, "withdraw_x").
		WillReturnError(pgx.ErrNoRows)
	e, err = repo.FindByReference(context.Background(), model.LedgerKindWithdrawal, "withdraw_x")
	assert.NoError(t, err)
	assert.Nil(t, e)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_GetAggregatedStats(t *testing.T) {
	mock := newMock(t)
	repo := NewLedgerRepository(mock)

	mock.ExpectQuery(`SUM\(l.bonus_delta\)`).
		WillReturnRows(pgxmock.NewRows([]string{"total_credited", "total_debited", "total_bonus"}).AddRow(int64(1700), int64(525), int64(200)))
	mock.ExpectQuery(`GROUP BY l.kind`).
		WillReturnRows(pgxmock.NewRows([]string{"kind", "sum"}).
			AddRow(model.LedgerKindFreeSpin, int64(600)).
			AddRow(model.LedgerKindWithdrawal, int64(-525)))
	mock.ExpectQuery(`GROUP BY l.user_id, u.username`).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "username", "total_credited", "total_debited", "entry_count"}).
			AddRow("user_1", "alice", int64(1700), int64(525), int64(4)))

	stats, err := repo.GetAggregatedStats(context.Background(), model.LedgerFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1175), stats.Net)
	assert.Equal(t, int64(200), stats.TotalBonus)
	assert.Equal(t, int64(-525), stats.ByKind[model.LedgerKindWithdrawal])
	assert.Equal(t, int64(4), stats.ByUser["user_1"].EntryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(model.LedgerFilters{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	user := "user_1"
	end := created
	where, args = whereClause(model.LedgerFilters{UserID: &user, EndDate: &end})
	assert.Equal(t, " WHERE l.user_id = $1 AND l.created_at <= $2", where)
	assert.Equal(t, []any{"user_1", end}, args)
}
