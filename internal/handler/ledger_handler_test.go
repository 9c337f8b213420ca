package handler

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"patapesa/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMyLedgerUsesTokenOwner(t *testing.T) {
	var gotUser string
	var gotFilters model.LedgerFilters
	srv := newTestServer(nil, &fakeLedgerService{
		userLedger: func(userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
			gotUser, gotFilters = userID, filters
			return []model.LedgerEntry{{ID: "entry_1", UserID: userID, Kind: model.LedgerKindSpin, Delta: 500}}, nil
		},
	}, nil)

	token := srv.token(t, "user_1", model.RoleUser)
	// user_id is ignored for non-admin routes
	w, body := srv.do(t, http.MethodGet, "/me/ledger?kind=spin&user_id=user_2&date=2026-03-01", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, "user_1", gotUser)
	assert.Nil(t, gotFilters.UserID)
	require.NotNil(t, gotFilters.Kind)
	assert.Equal(t, "spin", *gotFilters.Kind)
	require.NotNil(t, gotFilters.StartDate)
	require.NotNil(t, gotFilters.EndDate)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *gotFilters.StartDate)
	assert.Equal(t, time.Date(2026, 3, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *gotFilters.EndDate)
}

func TestLedgerRejectsBadDates(t *testing.T) {
	srv := newTestServer(nil, &fakeLedgerService{}, nil)
	token := srv.token(t, "admin_1", model.RoleAdmin)

	for _, q := range []string{"date=01-03-2026", "start_date=yesterday", "end_date=2026/03/01"} {
		w, body := srv.do(t, http.MethodGet, "/admin/ledger?"+q, nil, token)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, model.CodeValidation, body["error"], q)
	}
}

func TestAdminLedgerRoutes(t *testing.T) {
	var gotFilters model.LedgerFilters
	srv := newTestServer(nil, &fakeLedgerService{
		all: func(filters model.LedgerFilters) ([]model.LedgerEntry, error) {
			gotFilters = filters
			return nil, nil
		},
		stats: func(model.LedgerFilters) (*model.LedgerStats, error) {
			return &model.LedgerStats{TotalCredited: 900, TotalDebited: 525, Net: 375}, nil
		},
		export: func(model.LedgerFilters) (*bytes.Buffer, error) {
			return bytes.NewBufferString("ID,UserID\n"), nil
		},
	}, nil)

	w, _ := srv.do(t, http.MethodGet, "/admin/ledger", nil, srv.token(t, "user_1", model.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := srv.token(t, "admin_1", model.RoleAdmin)
	w, body := srv.do(t, http.MethodGet, "/admin/ledger?user_id=user_7&start_date=2026-01-01", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["total"])
	require.NotNil(t, gotFilters.UserID)
	assert.Equal(t, "user_7", *gotFilters.UserID)
	assert.Nil(t, gotFilters.EndDate)

	w, body = srv.do(t, http.MethodGet, "/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(375), body["data"].(map[string]any)["net"])

	w, _ = srv.do(t, http.MethodGet, "/admin/ledger/export", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ledger_export_")
	assert.Equal(t, "ID,UserID\n", w.Body.String())
}
