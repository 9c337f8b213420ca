package service

import (
	"context"
	"encoding/csv"
	"testing"

	"patapesa/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedgerService(t *testing.T) {
	repo := newMemRepo()
	payments := NewPaymentService(repo, repo, zap.NewNop())
	users := newUserService(repo, nil, "")
	ledger := NewLedgerService(repo)
	ctx := context.Background()

	seedUser(repo, "user_1", 0, true)
	_, err := users.UpdatePoints(ctx, "user_1", 1000)
	require.NoError(t, err)
	_, err = payments.Withdraw(ctx, model.WithdrawRequest{UserID: "user_1", PhoneNumber: "0712345678", Amount: 200})
	require.NoError(t, err)

	entries, err := ledger.GetUserLedger(ctx, "user_1", model.LedgerFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	kind := model.LedgerKindWithdrawal
	entries, err = ledger.GetAllEntriesAdmin(ctx, model.LedgerFilters{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-225), entries[0].Delta)

	buf, err := ledger.ExportLedgerCSVAdmin(ctx, model.LedgerFilters{})
	require.NoError(t, err)
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Kind", records[0][2])
	assert.Equal(t, model.LedgerKindAdjustment, records[1][2])
	assert.Equal(t, "1000", records[1][3])
	assert.Contains(t, records[2][7], "M-Pesa payout")
}
