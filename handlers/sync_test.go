package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"restaurant-pos/config"
	"restaurant-pos/handlers"
	"restaurant-pos/middleware"
	"restaurant-pos/models"
	"restaurant-pos/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncResponseBody struct {
	Success         bool                  `json:"success"`
	Count           int                   `json:"count"`
	Results         []handlers.SyncResult `json:"results"`
	SyncedIds       []string              `json:"syncedIds"`
	FailedIds       []string              `json:"failedIds"`
	LegacyFallbacks int                   `json:"legacy_status_fallbacks"`
}

// setupServer boots a fresh database and router. The seeded admin actor and
// its default store act as the authenticated terminal.
func setupServer(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("POS_DB_PATH", filepath.Join(t.TempDir(), "server.db"))
	config.InitDB()

	var admin models.User
	require.NoError(t, config.DB.Where("role = ?", models.RoleAdmin).First(&admin).Error)
	token, err := middleware.GenerateToken(&admin)
	require.NoError(t, err)

	r := gin.New()
	routes.SetupRoutes(r)
	return r, token, admin.StoreID
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSyncResponse(t *testing.T, w *httptest.ResponseRecorder) syncResponseBody {
	t.Helper()
	var out syncResponseBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func wireOrder(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"kotNo":        12,
		"customerName": "Walk-in",
		"tableName":    "T3",
		"items": []map[string]interface{}{
			{"name": "Margherita", "price": 9.5, "quantity": 1},
		},
		"totalAmount":    9.5,
		"taxAmount":      0.8,
		"paymentMode":    "CASH",
		"status":         "COMPLETED",
		"originalStatus": "COMPLETED",
		"createdAt":      time.Now().UTC().Format(time.RFC3339),
	}
}

func TestSyncOrdersIdempotentResubmission(t *testing.T) {
	r, token, _ := setupServer(t)
	batch := map[string]interface{}{"orders": []interface{}{wireOrder("o1")}}

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token, batch)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeSyncResponse(t, w)
	require.Len(t, out.Results, 1)
	assert.Equal(t, models.OutcomeSynced, out.Results[0].Status)
	assert.Equal(t, []string{"o1"}, out.SyncedIds)

	// Same id again, whole batch replayed: still a success, no duplicate.
	w = doJSON(t, r, http.MethodPost, "/api/sync/orders", token, batch)
	require.Equal(t, http.StatusOK, w.Code)
	out = decodeSyncResponse(t, w)
	assert.Equal(t, models.OutcomeAlreadyExists, out.Results[0].Status)
	assert.Equal(t, []string{"o1"}, out.SyncedIds)

	var count int64
	config.DB.Model(&models.Order{}).Where("id = ?", "o1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSyncOrdersPartialFailureIsolation(t *testing.T) {
	r, token, _ := setupServer(t)

	bad := wireOrder("o3")
	bad["items"] = "definitely-not-line-items"
	batch := map[string]interface{}{"orders": []interface{}{wireOrder("o2"), bad}}

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token, batch)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeSyncResponse(t, w)
	require.Len(t, out.Results, 2)
	assert.Equal(t, models.OutcomeSynced, out.Results[0].Status)
	assert.Equal(t, models.OutcomeFailed, out.Results[1].Status)
	assert.Contains(t, out.Results[1].Error, "invalid items")
	assert.Equal(t, []string{"o2"}, out.SyncedIds)
	assert.Equal(t, []string{"o3"}, out.FailedIds)

	// Only the valid sibling was persisted.
	var count int64
	config.DB.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSyncOrdersOwnershipAndEventTime(t *testing.T) {
	r, token, storeID := setupServer(t)

	eventTime := time.Now().Add(-3 * time.Hour).UTC().Truncate(time.Second)
	order := wireOrder("o1")
	order["createdAt"] = eventTime.Format(time.RFC3339)
	// A compromised client must not choose its own store.
	order["storeId"] = "somebody-elses-store"
	order["originalStatus"] = "HELD"

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token,
		map[string]interface{}{"orders": []interface{}{order}})
	require.Equal(t, http.StatusOK, w.Code)

	var persisted models.Order
	require.NoError(t, config.DB.Where("id = ?", "o1").First(&persisted).Error)
	assert.Equal(t, storeID, persisted.StoreID)
	assert.True(t, persisted.CreatedAt.UTC().Equal(eventTime),
		"createdAt must be the client event time, got %v want %v", persisted.CreatedAt, eventTime)
	// The offline intent survives: a held order stays held.
	assert.Equal(t, models.StatusHeld, persisted.Status)
}

func TestSyncOrdersLegacyStatusFallback(t *testing.T) {
	r, token, _ := setupServer(t)

	order := wireOrder("o1")
	delete(order, "originalStatus")
	order["status"] = "HELD"

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token,
		map[string]interface{}{"orders": []interface{}{order}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeSyncResponse(t, w)
	assert.Equal(t, models.OutcomeSynced, out.Results[0].Status)
	// Flagged, not silent: the fallback is counted in the response.
	assert.Equal(t, 1, out.LegacyFallbacks)

	var persisted models.Order
	require.NoError(t, config.DB.Where("id = ?", "o1").First(&persisted).Error)
	assert.Equal(t, models.StatusCompleted, persisted.Status)
}

func TestLegacyFallbackNotCountedForFailedOrders(t *testing.T) {
	r, token, _ := setupServer(t)

	// Both orders omit originalStatus, but only the one that actually
	// persists should show up in the fallback count.
	good := wireOrder("o1")
	delete(good, "originalStatus")
	bad := wireOrder("o2")
	delete(bad, "originalStatus")
	bad["items"] = "definitely-not-line-items"

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token,
		map[string]interface{}{"orders": []interface{}{good, bad}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeSyncResponse(t, w)
	require.Len(t, out.Results, 2)
	assert.Equal(t, models.OutcomeSynced, out.Results[0].Status)
	assert.Equal(t, models.OutcomeFailed, out.Results[1].Status)
	assert.Equal(t, 1, out.LegacyFallbacks)
}

func TestSyncOrdersTrustsClientTotals(t *testing.T) {
	r, token, _ := setupServer(t)

	order := wireOrder("o1")
	// Nonsensical against the catalog, but offline totals are persisted as
	// submitted by policy.
	order["totalAmount"] = 0.01
	order["discountAmount"] = 999.99

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token,
		map[string]interface{}{"orders": []interface{}{order}})
	require.Equal(t, http.StatusOK, w.Code)

	var persisted models.Order
	require.NoError(t, config.DB.Where("id = ?", "o1").First(&persisted).Error)
	assert.Equal(t, 0.01, persisted.TotalAmount)
	assert.Equal(t, 999.99, persisted.DiscountAmount)
}

func TestSyncOrdersEmptyBatch(t *testing.T) {
	r, token, _ := setupServer(t)

	for _, body := range []map[string]interface{}{
		{"orders": []interface{}{}},
		{},
	} {
		w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token, body)
		require.Equal(t, http.StatusOK, w.Code)
		out := decodeSyncResponse(t, w)
		assert.True(t, out.Success)
		assert.Equal(t, 0, out.Count)
		assert.Empty(t, out.Results)
	}
}

func TestSyncOrdersMissingID(t *testing.T) {
	r, token, _ := setupServer(t)

	order := wireOrder("")
	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", token,
		map[string]interface{}{"orders": []interface{}{order}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeSyncResponse(t, w)
	assert.Equal(t, models.OutcomeFailed, out.Results[0].Status)
	assert.Contains(t, out.Results[0].Error, "missing order id")
}

func TestSyncOrdersUnauthenticated(t *testing.T) {
	r, _, _ := setupServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/sync/orders", "",
		map[string]interface{}{"orders": []interface{}{wireOrder("o1")}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Rejected before any processing: nothing persisted.
	var count int64
	config.DB.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestBootstrapSnapshot(t *testing.T) {
	r, token, storeID := setupServer(t)

	require.NoError(t, config.DB.Create(&models.Product{ID: "p1", Name: "Margherita", Price: 9.5}).Error)
	require.NoError(t, config.DB.Create(&models.Category{ID: "c1", Name: "Pizza"}).Error)
	require.NoError(t, config.DB.Create(&models.DiningTable{ID: "t1", StoreID: storeID, Name: "T1"}).Error)
	require.NoError(t, config.DB.Create(&models.DiningTable{ID: "t2", StoreID: "other-store", Name: "X9"}).Error)
	require.NoError(t, config.DB.Create(&models.Setting{Key: "currency", Value: "EUR"}).Error)

	w := doJSON(t, r, http.MethodGet, "/api/bootstrap", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Success  bool                 `json:"success"`
		Products []models.Product     `json:"products"`
		Tables   []models.DiningTable `json:"tables"`
		Settings []models.Setting     `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Len(t, out.Products, 1)
	assert.Len(t, out.Settings, 1)
	// Only the actor's store's tables ride along.
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "t1", out.Tables[0].ID)
}

func TestUpdateOrderStatusFollowsStateMachine(t *testing.T) {
	r, token, storeID := setupServer(t)

	require.NoError(t, config.DB.Create(&models.Order{
		ID:      "o1",
		StoreID: storeID,
		Status:  models.StatusHeld,
	}).Error)

	w := doJSON(t, r, http.MethodPut, "/api/orders/o1/status", token,
		map[string]interface{}{"status": "QUEUED"})
	// Admins don't queue orders; that's a cashier move.
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/orders/o1/status", token,
		map[string]interface{}{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, w.Code)

	var persisted models.Order
	require.NoError(t, config.DB.Where("id = ?", "o1").First(&persisted).Error)
	assert.Equal(t, models.StatusCancelled, persisted.Status)
}
