package handler

import (
	"errors"
	"net/http"

	"go-ticket-reservation/internal/model"
	"go-ticket-reservation/internal/service"
	apperrors "go-ticket-reservation/pkg/app_errors"
	"go-ticket-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(service service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	router := r.Group("/api/v1")
	router.Use(authMiddleware)
	{
		router.POST("reservations", h.OpenHold)
		router.GET("reservations", h.ListSessions)
		router.GET("reservations/:id", h.GetSession)
		router.POST("reservations/:id/confirm", h.ConfirmPurchase)
		router.DELETE("reservations/:id", h.Cancel)
	}
}

func (h *ReservationHandler) OpenHold(c *gin.Context) {
	var req model.OpenHoldRequest

	if err := BindJson(c, &req); err != nil {
		return
	}

	session, err := h.service.OpenHold(c, req)
	if err != nil {
		h.handleReservationError(c, err, "OpenHold")
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *ReservationHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c, c.Param("id"))
	if err != nil {
		h.handleReservationError(c, err, "GetSession")
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *ReservationHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c)
	if err != nil {
		h.handleReservationError(c, err, "ListSessions")
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (h *ReservationHandler) ConfirmPurchase(c *gin.Context) {
	var req model.ConfirmPurchaseRequest

	if err := BindJson(c, &req); err != nil {
		return
	}

	record, err := h.service.ConfirmPurchase(c, c.Param("id"), req.Buyers)
	if err != nil {
		h.handleReservationError(c, err, "ConfirmPurchase")
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	err := h.service.Cancel(c, c.Param("id"))
	if err != nil {
		h.handleReservationError(c, err, "Cancel")
		return
	}

	c.Status(http.StatusNoContent)
}

// Helper functions

func (h *ReservationHandler) handleReservationError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	if ve, ok := apperrors.AsValidationError(err); ok {
		log.Warn("Buyer validation failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       ve.Error(),
			"buyer_index": ve.BuyerIndex,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		log.Warn("Unauthenticated")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthenticated",
		})
	case errors.Is(err, apperrors.ErrInventoryNotFound):
		log.Warn("Inventory not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Inventory not found",
		})
	case errors.Is(err, apperrors.ErrSessionNotFound):
		log.Warn("Session not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Session not found",
		})
	case errors.Is(err, apperrors.ErrInsufficientCapacity):
		log.Warn("Insufficient capacity")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Insufficient capacity",
		})
	case errors.Is(err, apperrors.ErrHoldAlreadyExists):
		log.Warn("Hold already exists")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Hold already exists",
		})
	case errors.Is(err, apperrors.ErrReservationExpired):
		log.Warn("Reservation expired")
		c.JSON(http.StatusGone, gin.H{
			"error": "Time expired, restart the purchase",
		})
	case errors.Is(err, apperrors.ErrReservationStale), errors.Is(err, apperrors.ErrTransactionConflict):
		// 交易中止或重試耗盡：對使用者一律呈現一般性的購買失敗
		log.Warn("Purchase transaction failed")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Purchase failed",
		})
	case errors.Is(err, apperrors.ErrSessionNotRunning):
		log.Warn("Session not running")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Session is not running",
		})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
