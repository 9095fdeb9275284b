package handlers

import (
	"net/http"
	"time"

	"restaurant-pos/config"
	"restaurant-pos/middleware"
	"restaurant-pos/models"
	"restaurant-pos/statemachine"

	"github.com/gin-gonic/gin"
)

// GetStoreOrders returns the synced orders for the caller's store
func GetStoreOrders(c *gin.Context) {
	storeID := middleware.GetStoreID(c)

	var orders []models.Order
	query := config.DB.Where("store_id = ?", storeID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if mobile := c.Query("customer_mobile"); mobile != "" {
		query = query.Where("customer_mobile = ?", mobile)
	}

	query.Order("created_at desc").Find(&orders)

	// Group counts by status for the dashboard header
	summary := map[string]int{}
	for _, o := range orders {
		summary[string(o.Status)]++
	}

	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary,
		"count":         len(orders),
		"orders":        orders,
	})
}

// GetOrderDetail returns a single order's full detail
func GetOrderDetail(c *gin.Context) {
	storeID := middleware.GetStoreID(c)
	orderID := c.Param("id")

	var order models.Order
	if err := config.DB.Where("id = ?", orderID).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.StoreID != storeID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This order does not belong to your store"})
		return
	}

	elapsed := time.Since(order.CreatedAt).Minutes()
	c.JSON(http.StatusOK, gin.H{
		"order":           order,
		"minutes_elapsed": int(elapsed),
	})
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus handles staff state transitions on a synced order
func UpdateOrderStatus(c *gin.Context) {
	storeID := middleware.GetStoreID(c)
	role := middleware.GetRole(c)
	orderID := c.Param("id")

	var order models.Order
	if err := config.DB.Where("id = ?", orderID).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.StoreID != storeID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This order does not belong to your store"})
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := statemachine.CanTransition(order.Status, req.Status, string(role)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":             "Invalid state transition",
			"current_status":    order.Status,
			"requested":         req.Status,
			"reason":            err.Error(),
			"valid_next_states": statemachine.ValidTransitionsFrom(order.Status),
		})
		return
	}

	prevStatus := order.Status
	config.DB.Model(&order).Update("status", req.Status)

	c.JSON(http.StatusOK, gin.H{
		"message":         "Order status updated",
		"order_id":        order.ID,
		"previous_status": string(prevStatus),
		"current_status":  string(req.Status),
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func GetStateMachineInfo(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()
	info := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		info = append(info, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   info,
		"terminal_states": []string{string(models.StatusCompleted), string(models.StatusCancelled)},
		"description":     "POS Order Lifecycle State Machine",
	})
}
