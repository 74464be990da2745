package handler

import (
	"errors"
	"idempotent-payments/internal/domain"
	"idempotent-payments/internal/service"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type PaymentHandler struct {
	paymentSvc service.PaymentService
	log        logrus.FieldLogger
}

func NewPaymentHandler(paymentSvc service.PaymentService, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, log: log}
}

type createPaymentRequest struct {
	// accepts both "100.00" and 100.00
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type paymentResponse struct {
	ID             string               `json:"id"`
	Amount         string               `json:"amount"`
	Status         domain.PaymentStatus `json:"status"`
	Created        bool                 `json:"created"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type paymentDetailResponse struct {
	ID        string               `json:"id"`
	Amount    string               `json:"amount"`
	Status    domain.PaymentStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// CreatePayment handles POST /payments. A new payment answers 201, a replay of
// a known Idempotency-Key answers 200 with the original record.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if strings.TrimSpace(key) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	p, created, err := h.paymentSvc.ProcessPayment(c.Request.Context(), *req.Amount, key)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, paymentResponse{
		ID:             p.ID.String(),
		Amount:         domain.FormatAmount(p.Amount),
		Status:         p.Status,
		Created:        created,
		IdempotencyKey: p.IdempotencyKey,
	})
}

// GetPayment handles GET /payments/:id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	p, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, paymentDetailResponse{
		ID:        p.ID.String(),
		Amount:    domain.FormatAmount(p.Amount),
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	})
}

func (h *PaymentHandler) writeError(c *gin.Context, err error) {
	var (
		vErr *domain.ValidationError
		gErr *domain.GatewayError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.As(err, &gErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
	default:
		h.log.WithError(err).Error("payment request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
