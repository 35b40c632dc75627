package handler

import (
	"errors"
	"net/http"

	"go-ticket-reservation/internal/service"
	apperrors "go-ticket-reservation/pkg/app_errors"
	"go-ticket-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PurchaseHandler struct {
	service service.PurchaseService
}

func NewPurchaseHandler(service service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

func (h *PurchaseHandler) RegisterRoutes(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	router := r.Group("/api/v1")
	{
		router.GET("purchases", h.GetPurchases)
		router.GET("purchases/mine", authMiddleware, h.GetMyPurchases)
		router.GET("purchases/:record_id", h.GetPurchase)
	}
}

func (h *PurchaseHandler) GetPurchases(c *gin.Context) {
	records, err := h.service.PurchaseList(c)
	if err != nil {
		h.handlePurchaseError(c, err, "GetPurchases")
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetMyPurchases 列出目前使用者的購買紀錄
func (h *PurchaseHandler) GetMyPurchases(c *gin.Context) {
	actorID := c.GetString(service.ActorIDContextKey)
	if actorID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthenticated",
		})
		return
	}

	records, err := h.service.ListByActorID(c, actorID)
	if err != nil {
		h.handlePurchaseError(c, err, "GetMyPurchases")
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid record id",
		})
		return
	}

	record, err := h.service.GetPurchaseByRecordID(c, recordID)
	if err != nil {
		h.handlePurchaseError(c, err, "GetPurchase")
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *PurchaseHandler) handlePurchaseError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrPurchaseNotFound):
		log.Warn("Purchase not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Purchase not found",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
