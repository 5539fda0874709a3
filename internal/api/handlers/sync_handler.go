package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/gurpos/services/sync/internal/api/middleware"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

// SyncEngine is the part of the sync service the HTTP layer needs.
type SyncEngine interface {
	Pull(ctx context.Context, userID string, since *time.Time) (*models.PullResult, error)
	Push(ctx context.Context, userID string, req *models.PushRequest) (*models.PushResult, error)
	Status(ctx context.Context, userID string) ([]models.SyncMetadata, error)
	SearchTransactions(ctx context.Context, userID, term string) ([]map[string]interface{}, error)
}

// PushQueue accepts push batches for asynchronous processing by the
// worker. Nil when the deployment runs without a service bus.
type PushQueue interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	engine SyncEngine
	queue  PushQueue
	tracer tracing.Tracer
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine SyncEngine, queue PushQueue, tracer tracing.Tracer) *SyncHandler {
	return &SyncHandler{
		engine: engine,
		queue:  queue,
		tracer: tracer,
	}
}

// PullRequestBody carries the client's cursor. An absent cursor means
// first sync and returns the full dataset.
type PullRequestBody struct {
	Since *string `json:"since"`
}

// HandlePull returns every change after the client's cursor.
func (h *SyncHandler) HandlePull(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-sync-pull")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	var req PullRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Error().Err(err).Msg("Invalid pull request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			h.tracer.RecordError(txn, err)
			return
		}
	}

	var since *time.Time
	if req.Since != nil && *req.Since != "" {
		parsed, err := time.Parse(time.RFC3339, *req.Since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp, expected RFC3339"})
			h.tracer.RecordError(txn, err)
			return
		}
		since = &parsed
	}

	result, err := h.engine.Pull(c.Request.Context(), userID, since)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Pull failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandlePush applies a batch of client changes.
func (h *SyncHandler) HandlePush(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-sync-push")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	var req models.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid push request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	result, err := h.engine.Push(c.Request.Context(), userID, &req)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Push failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleEnqueue accepts a push batch for asynchronous processing. The
// batch is validated for shape only; conflict resolution happens when the
// worker drains the queue.
func (h *SyncHandler) HandleEnqueue(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-sync-enqueue")
	defer h.tracer.EndTransaction(txn)

	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push queue not configured"})
		return
	}

	userID := middleware.UserID(c)

	var req models.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid enqueue request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	msg := services.PushMessage{UserID: userID, Batch: req}
	if err := h.queue.SendMessage(c.Request.Context(), msg); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue push batch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// HandleStatus returns the caller's per-entity sync bookkeeping.
func (h *SyncHandler) HandleStatus(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-sync-status")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	status, err := h.engine.Status(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Sync status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entities": status})
}

// HandleSearch runs a full-text search over the caller's transactions.
func (h *SyncHandler) HandleSearch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-transactions-search")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	hits, err := h.engine.SearchTransactions(c.Request.Context(), userID, term)
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search backend not configured"})
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Transaction search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}
	if hits == nil {
		hits = []map[string]interface{}{}
	}

	c.JSON(http.StatusOK, gin.H{"results": hits})
}

// RegisterRoutes registers the handler's routes
func (h *SyncHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/sync/pull", h.HandlePull)
	router.POST("/sync/push", h.HandlePush)
	router.POST("/sync/enqueue", h.HandleEnqueue)
	router.GET("/sync/status", h.HandleStatus)
	router.GET("/transactions/search", h.HandleSearch)
}
