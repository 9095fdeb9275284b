package handlers

import (
	"net/http"

	"restaurant-pos/config"
	"restaurant-pos/middleware"
	"restaurant-pos/models"

	"github.com/gin-gonic/gin"
)

// Bootstrap returns the full reference-data snapshot a terminal caches for
// offline operation: catalog, categories, the store's tables, and settings.
// Terminals replace their cache wholesale with this payload.
func Bootstrap(c *gin.Context) {
	storeID := middleware.GetStoreID(c)

	var products []models.Product
	config.DB.Order("name asc").Find(&products)

	var categories []models.Category
	config.DB.Order("sort_order asc").Find(&categories)

	var tables []models.DiningTable
	config.DB.Where("store_id = ?", storeID).Order("name asc").Find(&tables)

	var settings []models.Setting
	config.DB.Find(&settings)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   products,
		"categories": categories,
		"tables":     tables,
		"settings":   settings,
	})
}
