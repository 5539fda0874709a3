package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/api/middleware"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

type MockSyncEngine struct {
	mock.Mock
}

func (m *MockSyncEngine) Pull(ctx context.Context, userID string, since *time.Time) (*models.PullResult, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(*models.PullResult), args.Error(1)
}

func (m *MockSyncEngine) Push(ctx context.Context, userID string, req *models.PushRequest) (*models.PushResult, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(*models.PushResult), args.Error(1)
}

func (m *MockSyncEngine) Status(ctx context.Context, userID string) ([]models.SyncMetadata, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.SyncMetadata), args.Error(1)
}

func (m *MockSyncEngine) SearchTransactions(ctx context.Context, userID, term string) ([]map[string]interface{}, error) {
	args := m.Called(ctx, userID, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

type MockPushQueue struct {
	mock.Mock
}

func (m *MockPushQueue) SendMessage(ctx context.Context, body interface{}) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func newTestRouter(t *testing.T, engine SyncEngine) *gin.Engine {
	return newTestRouterWithQueue(t, engine, nil)
}

func newTestRouterWithQueue(t *testing.T, engine SyncEngine, queue PushQueue) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	router := gin.New()
	authed := router.Group("/", middleware.Identity())
	NewSyncHandler(engine, queue, tracer).RegisterRoutes(authed)
	return router
}

func TestHandlePullRequiresIdentity(t *testing.T) {
	router := newTestRouter(t, new(MockSyncEngine))

	req := httptest.NewRequest(http.MethodPost, "/sync/pull", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlePullRejectsBadCursor(t *testing.T) {
	router := newTestRouter(t, new(MockSyncEngine))

	body := bytes.NewBufferString(`{"since": "yesterday"}`)
	req := httptest.NewRequest(http.MethodPost, "/sync/pull", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePullPassesCursor(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	since := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine.On("Pull", mock.Anything, "user-1", &since).Return(&models.PullResult{
		Items:           []models.Item{},
		Customers:       []models.Customer{},
		Transactions:    []models.Transaction{},
		ServerTimestamp: time.Now().UTC(),
	}, nil)

	body := bytes.NewBufferString(`{"since": "2026-08-20T12:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/sync/pull", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	engine.AssertExpectations(t)
}

func TestHandlePullWithoutBodyMeansFullSync(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	engine.On("Pull", mock.Anything, "user-1", (*time.Time)(nil)).Return(&models.PullResult{
		Items:           []models.Item{},
		Customers:       []models.Customer{},
		Transactions:    []models.Transaction{},
		ServerTimestamp: time.Now().UTC(),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sync/pull", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	engine.AssertExpectations(t)
}

func TestHandlePushReturnsResults(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	result := models.NewPushResult()
	result.Items.Synced = append(result.Items.Synced, models.SyncedRecord{
		ID: "item-1", CloudID: "item-1", Action: models.ActionCreated,
	})
	result.ServerTimestamp = time.Now().UTC()

	engine.On("Push", mock.Anything, "user-1", mock.AnythingOfType("*models.PushRequest")).Return(result, nil)

	body := bytes.NewBufferString(`{"items": [{"id": "item-1", "name": "Coffee"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/sync/push", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PushResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items.Synced, 1)
	require.Equal(t, "item-1", resp.Items.Synced[0].CloudID)
	// Empty groups serialize as [] rather than null.
	require.NotNil(t, resp.Customers.Synced)

	engine.AssertExpectations(t)
}

func TestHandlePushRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t, new(MockSyncEngine))

	req := httptest.NewRequest(http.MethodPost, "/sync/push", bytes.NewBufferString(`{not json`))
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEnqueueSendsBatchToQueue(t *testing.T) {
	queue := new(MockPushQueue)
	router := newTestRouterWithQueue(t, new(MockSyncEngine), queue)

	queue.On("SendMessage", mock.Anything, mock.MatchedBy(func(body interface{}) bool {
		msg, ok := body.(services.PushMessage)
		return ok && msg.UserID == "user-1" && len(msg.Batch.Items) == 1
	})).Return(nil)

	body := bytes.NewBufferString(`{"items": [{"id": "item-1", "name": "Coffee"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/sync/enqueue", body)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"queued": true}`, rec.Body.String())
	queue.AssertExpectations(t)
}

func TestHandleEnqueueWithoutQueue(t *testing.T) {
	router := newTestRouter(t, new(MockSyncEngine))

	req := httptest.NewRequest(http.MethodPost, "/sync/enqueue", bytes.NewBufferString(`{}`))
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStatusReturnsEntities(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	engine.On("Status", mock.Anything, "user-1").Return([]models.SyncMetadata{
		{UserID: "user-1", EntityType: models.EntityItems, SyncCount: 3},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entities []models.SyncMetadata `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entities, 1)
	require.Equal(t, models.EntityItems, resp.Entities[0].EntityType)
	engine.AssertExpectations(t)
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	router := newTestRouter(t, new(MockSyncEngine))

	req := httptest.NewRequest(http.MethodGet, "/transactions/search", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchWithoutBackend(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	engine.On("SearchTransactions", mock.Anything, "user-1", "coffee").
		Return(nil, services.ErrUnavailable)

	req := httptest.NewRequest(http.MethodGet, "/transactions/search?q=coffee", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	engine.AssertExpectations(t)
}

func TestHandleSearchReturnsHits(t *testing.T) {
	engine := new(MockSyncEngine)
	router := newTestRouter(t, engine)

	engine.On("SearchTransactions", mock.Anything, "user-1", "coffee").
		Return([]map[string]interface{}{{"id": "tx-1", "voucher_number": "GUR-20260820-0001"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/transactions/search?q=coffee", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "tx-1", resp.Results[0]["id"])
	engine.AssertExpectations(t)
}
