package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"restaurant-pos/config"
	"restaurant-pos/middleware"
	"restaurant-pos/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// inboundOrder is the wire shape of a client-originated order. Items rides
// as raw JSON so one order with unparsable items fails alone instead of
// taking the whole batch down at bind time.
type inboundOrder struct {
	ID             string             `json:"id"`
	StoreID        string             `json:"storeId"`
	KotNo          int                `json:"kotNo"`
	CustomerName   string             `json:"customerName"`
	CustomerMobile string             `json:"customerMobile"`
	TableID        string             `json:"tableId"`
	TableName      string             `json:"tableName"`
	Items          json.RawMessage    `json:"items"`
	TotalAmount    float64            `json:"totalAmount"`
	DiscountAmount float64            `json:"discountAmount"`
	TaxAmount      float64            `json:"taxAmount"`
	PaymentMode    string             `json:"paymentMode"`
	Status         models.OrderStatus `json:"status"`
	OriginalStatus models.OrderStatus `json:"originalStatus"`
	CreatedAt      time.Time          `json:"createdAt"`
}

type SyncOrdersRequest struct {
	Orders []inboundOrder `json:"orders"`
}

type SyncResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SyncOrders is the reconciliation endpoint: it accepts the batch of orders
// a terminal captured offline and returns a per-order outcome.
//
// Orders are processed sequentially, in submission order, one at a time.
// Idempotency is keyed on the client-generated id: the first successful
// write wins and a re-submission reports ALREADY_EXISTS without touching
// the existing record. The record's store is always the authenticated
// actor's default store, never the payload's. Monetary totals are persisted
// as submitted — trusting the client's offline computation is a deliberate
// policy, not an oversight; revalidating against current catalog prices
// would change offline behavior guarantees.
func SyncOrders(c *gin.Context) {
	storeID := middleware.GetStoreID(c)
	actorID := middleware.GetActorID(c)

	var req SyncOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Orders) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "count": 0})
		return
	}

	results := make([]SyncResult, 0, len(req.Orders))
	syncedIds := []string{}
	failedIds := []string{}
	legacyFallbacks := 0

	for _, in := range req.Orders {
		res := reconcileOrder(storeID, actorID, in, &legacyFallbacks)
		results = append(results, res)
		if res.Status == models.OutcomeFailed {
			failedIds = append(failedIds, res.ID)
		} else {
			syncedIds = append(syncedIds, res.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"results":                 results,
		"syncedIds":               syncedIds,
		"failedIds":               failedIds,
		"legacy_status_fallbacks": legacyFallbacks,
	})
}

// reconcileOrder processes one order. Any error or panic is contained here
// and becomes a FAILED outcome for this order only; siblings in the batch
// keep processing.
func reconcileOrder(storeID string, actorID uint, in inboundOrder, legacyFallbacks *int) (res SyncResult) {
	res.ID = in.ID
	defer func() {
		if r := recover(); r != nil {
			res.Status = models.OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if in.ID == "" {
		res.Status = models.OutcomeFailed
		res.Error = "missing order id"
		return
	}

	var existing models.Order
	err := config.DB.Where("id = ?", in.ID).First(&existing).Error
	if err == nil {
		// First write wins: no re-validation, no overwrite.
		res.Status = models.OutcomeAlreadyExists
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		res.Status = models.OutcomeFailed
		res.Error = "lookup failed: " + err.Error()
		return
	}

	var items models.OrderItems
	if len(in.Items) > 0 {
		if err := json.Unmarshal(in.Items, &items); err != nil {
			res.Status = models.OutcomeFailed
			res.Error = "invalid items: " + err.Error()
			return
		}
	}

	status := in.OriginalStatus
	legacyFallback := false
	if status == "" {
		// Legacy payloads omit originalStatus. The fallback keeps them
		// syncing, but it can also mask a client bug, so it is logged and
		// counted rather than silently applied. The count reflects only
		// orders actually persisted with the fallback.
		status = models.StatusCompleted
		legacyFallback = true
	}

	now := time.Now()
	record := models.Order{
		ID:             in.ID,
		StoreID:        storeID, // the actor's resolved store, never the payload's
		KotNo:          in.KotNo,
		CustomerName:   in.CustomerName,
		CustomerMobile: in.CustomerMobile,
		TableID:        in.TableID,
		TableName:      in.TableName,
		Items:          items,
		TotalAmount:    in.TotalAmount,
		DiscountAmount: in.DiscountAmount,
		TaxAmount:      in.TaxAmount,
		PaymentMode:    in.PaymentMode,
		Status:         status,
		OriginalStatus: in.OriginalStatus,
		CreatedAt:      in.CreatedAt, // client event time, preserved verbatim
		SyncStatus:     models.SyncSynced,
		SyncedAt:       &now,
	}
	if err := config.DB.Create(&record).Error; err != nil {
		res.Status = models.OutcomeFailed
		res.Error = "insert failed: " + err.Error()
		return
	}

	if legacyFallback {
		*legacyFallbacks++
		log.Printf("sync: order %s from actor %d arrived without originalStatus, defaulting to COMPLETED", in.ID, actorID)
	}

	res.Status = models.OutcomeSynced
	return
}
