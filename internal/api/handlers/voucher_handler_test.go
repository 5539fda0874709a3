package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/api/middleware"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

type MockVoucherEngine struct {
	mock.Mock
}

func (m *MockVoucherEngine) Confirm(ctx context.Context, userID, transactionID, voucherNumber string) error {
	args := m.Called(ctx, userID, transactionID, voucherNumber)
	return args.Error(0)
}

func (m *MockVoucherEngine) Generate(ctx context.Context, userID, companyCode, date, sequence string) (string, error) {
	args := m.Called(ctx, userID, companyCode, date, sequence)
	return args.String(0), args.Error(1)
}

func (m *MockVoucherEngine) InitDaily(ctx context.Context, userID, companyCode, date string) (string, int, error) {
	args := m.Called(ctx, userID, companyCode, date)
	return args.String(0), args.Int(1), args.Error(2)
}

func newVoucherTestRouter(t *testing.T, engine VoucherEngine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	router := gin.New()
	authed := router.Group("/", middleware.Identity())
	NewVoucherHandler(engine, tracer).RegisterRoutes(authed)
	return router
}

func TestHandleConfirmNotFound(t *testing.T) {
	engine := new(MockVoucherEngine)
	router := newVoucherTestRouter(t, engine)

	engine.On("Confirm", mock.Anything, "user-1", "tx-missing", "GUR-20260820-0001").
		Return(services.ErrNotFound)

	body := bytes.NewBufferString(`{"transaction_id": "tx-missing", "voucher_number": "GUR-20260820-0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/vouchers/confirm", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	engine.AssertExpectations(t)
}

func TestHandleConfirmSuccess(t *testing.T) {
	engine := new(MockVoucherEngine)
	router := newVoucherTestRouter(t, engine)

	engine.On("Confirm", mock.Anything, "user-1", "tx-1", "GUR-20260820-0001").Return(nil)

	body := bytes.NewBufferString(`{"transaction_id": "tx-1", "voucher_number": "GUR-20260820-0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/vouchers/confirm", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "GUR-20260820-0001")
	engine.AssertExpectations(t)
}

func TestHandleGenerateConflict(t *testing.T) {
	engine := new(MockVoucherEngine)
	router := newVoucherTestRouter(t, engine)

	engine.On("Generate", mock.Anything, "user-1", "GUR", "20260820", "0001").
		Return("GUR-20260820-0001", services.ErrConflict)

	body := bytes.NewBufferString(`{"company_code": "GUR", "date": "20260820", "sequence": "0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/vouchers/generate", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	engine.AssertExpectations(t)
}

func TestHandleInitDaily(t *testing.T) {
	engine := new(MockVoucherEngine)
	router := newVoucherTestRouter(t, engine)

	engine.On("InitDaily", mock.Anything, "user-1", "GUR", "20260820").
		Return("GUR-20260820", 5, nil)

	body := bytes.NewBufferString(`{"company_code": "GUR", "date": "20260820"}`)
	req := httptest.NewRequest(http.MethodPost, "/vouchers/init-daily", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"next_sequence":5`)
	engine.AssertExpectations(t)
}
