package handler

import (
	"errors"
	"net/http"

	"go-ticket-reservation/internal/inventory"
	"go-ticket-reservation/internal/model"
	apperrors "go-ticket-reservation/pkg/app_errors"
	"go-ticket-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	manager inventory.InventoryManager
}

func NewInventoryHandler(manager inventory.InventoryManager) *InventoryHandler {
	return &InventoryHandler{manager: manager}
}

func (h *InventoryHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("inventories", h.CreateInventory)
		router.GET("inventories", h.GetInventory)
	}
}

// CreateInventory 開賣前預熱：建立庫存文件
func (h *InventoryHandler) CreateInventory(c *gin.Context) {
	var req model.CreateInventoryRequest

	if err := BindJson(c, &req); err != nil {
		return
	}

	err := h.manager.Create(c, req.Ref, req.Capacity, req.UnitPrice)
	if err != nil {
		h.handleInventoryError(c, err, "CreateInventory")
		return
	}

	c.Status(http.StatusCreated)
}

func (h *InventoryHandler) GetInventory(c *gin.Context) {
	var ref model.InventoryRef

	if err := BindQuery(c, &ref); err != nil {
		return
	}

	inv, err := h.manager.Get(c, ref)
	if err != nil {
		h.handleInventoryError(c, err, "GetInventory")
		return
	}

	c.JSON(http.StatusOK, model.InventoryResponse{
		Ref:          ref,
		Capacity:     inv.Capacity,
		UnitPrice:    inv.UnitPrice,
		HeldQuantity: inv.TotalHeld(),
	})
}

func (h *InventoryHandler) handleInventoryError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrInventoryNotFound):
		log.Warn("Inventory not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Inventory not found",
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
