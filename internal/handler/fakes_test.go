package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"patapesa/internal/middleware"
	"patapesa/internal/model"
	"patapesa/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNotImplemented = errors.New("not implemented")

type fakeUserService struct {
	register      func(req model.RegisterRequest) (*model.User, string, error)
	login         func(username, password string) (*model.User, string, error)
	list          func() ([]model.User, error)
	profile       func(userID string) (*model.User, error)
	updatePoints  func(userID string, points int64) (int64, error)
	referralStats func(userID string) (*model.ReferralStats, error)
	resetPassword func(req model.ResetPasswordRequest) error
	activate      func(userID string) (*model.User, error)
}

func (f *fakeUserService) Register(_ context.Context, req model.RegisterRequest) (*model.User, string, error) {
	if f.register == nil {
		return nil, "", errNotImplemented
	}
	return f.register(req)
}

func (f *fakeUserService) Login(_ context.Context, username, password string) (*model.User, string, error) {
	if f.login == nil {
		return nil, "", errNotImplemented
	}
	return f.login(username, password)
}

func (f *fakeUserService) List(_ context.Context) ([]model.User, error) {
	if f.list == nil {
		return nil, errNotImplemented
	}
	return f.list()
}

func (f *fakeUserService) Profile(_ context.Context, userID string) (*model.User, error) {
	if f.profile == nil {
		return nil, errNotImplemented
	}
	return f.profile(userID)
}

func (f *fakeUserService) UpdatePoints(_ context.Context, userID string, points int64) (int64, error) {
	if f.updatePoints == nil {
		return 0, errNotImplemented
	}
	return f.updatePoints(userID, points)
}

func (f *fakeUserService) ReferralStats(_ context.Context, userID string) (*model.ReferralStats, error) {
	if f.referralStats == nil {
		return nil, errNotImplemented
	}
	return f.referralStats(userID)
}

func (f *fakeUserService) ResetPassword(_ context.Context, req model.ResetPasswordRequest) error {
	if f.resetPassword == nil {
		return errNotImplemented
	}
	return f.resetPassword(req)
}

func (f *fakeUserService) Activate(_ context.Context, userID string) (*model.User, error) {
	if f.activate == nil {
		return nil, errNotImplemented
	}
	return f.activate(userID)
}

type fakeLedgerService struct {
	userLedger func(userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error)
	all        func(filters model.LedgerFilters) ([]model.LedgerEntry, error)
	stats      func(filters model.LedgerFilters) (*model.LedgerStats, error)
	export     func(filters model.LedgerFilters) (*bytes.Buffer, error)
}

func (f *fakeLedgerService) GetUserLedger(_ context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	return f.userLedger(userID, filters)
}

func (f *fakeLedgerService) GetAllEntriesAdmin(_ context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	return f.all(filters)
}

func (f *fakeLedgerService) GetStatisticsAdmin(_ context.Context, filters model.LedgerFilters) (*model.LedgerStats, error) {
	return f.stats(filters)
}

func (f *fakeLedgerService) ExportLedgerCSVAdmin(_ context.Context, filters model.LedgerFilters) (*bytes.Buffer, error) {
	return f.export(filters)
}

type fakePaymentService struct {
	withdraw func(req model.WithdrawRequest) (*model.WithdrawalReceipt, error)
	status   func(id string) (*model.WithdrawalStatus, error)
	verify   func(req model.VerifyPaymentRequest) (*model.PaymentVerification, error)
}

func (f *fakePaymentService) Withdraw(_ context.Context, req model.WithdrawRequest) (*model.WithdrawalReceipt, error) {
	return f.withdraw(req)
}

func (f *fakePaymentService) WithdrawalStatus(_ context.Context, id string) (*model.WithdrawalStatus, error) {
	return f.status(id)
}

func (f *fakePaymentService) VerifyPayment(_ context.Context, req model.VerifyPaymentRequest) (*model.PaymentVerification, error) {
	return f.verify(req)
}

const testSecret = "handler-test-secret"

type testServer struct {
	router  *gin.Engine
	jwtUtil *utils.JWTUtil
}

func newTestServer(users *fakeUserService, ledger *fakeLedgerService, payments *fakePaymentService) *testServer {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	jwtUtil := utils.NewJWTUtil(testSecret, 1)

	r := gin.New()
	authMW := middleware.JWTAuthMiddleware(jwtUtil)
	userMW := middleware.UserMiddleware()
	adminMW := middleware.AdminMiddleware()

	if users != nil {
		NewUserHandler(users, logger).RegisterUserRoutes(r, authMW, userMW, adminMW)
	}
	if ledger != nil {
		NewLedgerHandler(ledger, logger).RegisterLedgerRoutes(r, authMW, userMW, adminMW)
	}
	if payments != nil {
		NewPaymentHandler(payments, logger).RegisterPaymentRoutes(r, authMW, userMW)
	}
	return &testServer{router: r, jwtUtil: jwtUtil}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := s.jwtUtil.GenerateToken(&model.User{ID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}
