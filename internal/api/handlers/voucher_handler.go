package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/gurpos/services/sync/internal/api/middleware"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

// VoucherEngine is the part of the voucher service the HTTP layer needs.
type VoucherEngine interface {
	Confirm(ctx context.Context, userID, transactionID, voucherNumber string) error
	Generate(ctx context.Context, userID, companyCode, date, sequence string) (string, error)
	InitDaily(ctx context.Context, userID, companyCode, date string) (string, int, error)
}

// VoucherHandler handles voucher-related HTTP requests
type VoucherHandler struct {
	engine VoucherEngine
	tracer tracing.Tracer
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(engine VoucherEngine, tracer tracing.Tracer) *VoucherHandler {
	return &VoucherHandler{
		engine: engine,
		tracer: tracer,
	}
}

// InitDailyRequest asks for the voucher prefix and next free sequence for
// a business day, so a client can show provisional numbers offline.
type InitDailyRequest struct {
	CompanyCode string `json:"company_code"`
	Date        string `json:"date"`
}

// HandleInitDaily returns the voucher prefix and next sequence for a day.
func (h *VoucherHandler) HandleInitDaily(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-voucher-init-daily")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	var req InitDailyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	prefix, nextSeq, err := h.engine.InitDaily(c.Request.Context(), userID, req.CompanyCode, req.Date)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Voucher init-daily failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"prefix":        prefix,
		"next_sequence": nextSeq,
	})
}

// GenerateRequest asks for a specific voucher number to be reserved.
type GenerateRequest struct {
	CompanyCode string `json:"company_code"`
	Date        string `json:"date"`
	Sequence    string `json:"sequence"`
}

// HandleGenerate reserves an explicit voucher number. A number already
// taken is a conflict, not a retryable error.
func (h *VoucherHandler) HandleGenerate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-voucher-generate")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	voucherNumber, err := h.engine.Generate(c.Request.Context(), userID, req.CompanyCode, req.Date, req.Sequence)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "voucher number already in use"})
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Voucher generate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"voucher_number": voucherNumber,
	})
}

// ConfirmRequest finalizes a provisional voucher on a synced transaction.
type ConfirmRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	VoucherNumber string `json:"voucher_number" binding:"required"`
}

// HandleConfirm marks a transaction's voucher as confirmed.
func (h *VoucherHandler) HandleConfirm(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-voucher-confirm")
	defer h.tracer.EndTransaction(txn)

	userID := middleware.UserID(c)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	err := h.engine.Confirm(c.Request.Context(), userID, req.TransactionID, req.VoucherNumber)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Voucher confirm failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"transaction_id": req.TransactionID,
		"voucher_number": req.VoucherNumber,
	})
}

// RegisterRoutes registers the handler's routes
func (h *VoucherHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/vouchers/init-daily", h.HandleInitDaily)
	router.POST("/vouchers/generate", h.HandleGenerate)
	router.POST("/vouchers/confirm", h.HandleConfirm)
}
