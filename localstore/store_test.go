package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"restaurant-pos/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every test in this file runs against both backends: the facade promises
// observably equivalent behavior whichever one is active.
var backends = []string{BackendSQLite, BackendBolt}

func openTestStore(t *testing.T, backend string) Store {
	t.Helper()
	st, err := Open(Config{
		Backend: backend,
		Path:    filepath.Join(t.TempDir(), "local.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testOrder(id string, createdAt time.Time) models.Order {
	return models.Order{
		ID:           id,
		KotNo:        7,
		CustomerName: "Walk-in",
		TableName:    "T1",
		Status:       models.StatusQueued,
		Items: models.OrderItems{
			{Name: "Margherita", Price: 9.5, Quantity: 1,
				AddOns: []models.AddOn{{Name: "Extra cheese", Price: 1.5, Quantity: 1}}},
			{Name: "Cola", Price: 2, Quantity: 2},
		},
		TotalAmount: 14.5,
		TaxAmount:   1.2,
		PaymentMode: "CASH",
		CreatedAt:   createdAt,
	}
}

func pendingIDs(t *testing.T, st Store) []string {
	t.Helper()
	pending, err := st.GetPendingOrders()
	require.NoError(t, err)
	ids := make([]string, len(pending))
	for i, o := range pending {
		ids[i] = o.ID
	}
	return ids
}

func TestSaveOrderUpsert(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			created := time.Now().Add(-time.Hour).Truncate(time.Second)

			order := testOrder("o1", created)
			require.NoError(t, st.SaveOrder(order))

			// A retried local write must not duplicate the row.
			order.CustomerName = "Alice"
			require.NoError(t, st.SaveOrder(order))

			require.Equal(t, []string{"o1"}, pendingIDs(t, st))

			got, err := st.GetOrder("o1")
			require.NoError(t, err)
			assert.Equal(t, "Alice", got.CustomerName)
			assert.Equal(t, models.SyncPending, got.SyncStatus)
			assert.Len(t, got.Items, 2)
			assert.Equal(t, "Extra cheese", got.Items[0].AddOns[0].Name)
			assert.True(t, got.CreatedAt.Equal(created),
				"event time must survive the round trip, got %v want %v", got.CreatedAt, created)
		})
	}
}

func TestSaveOrderRequiresID(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			require.Error(t, st.SaveOrder(models.Order{}))
		})
	}
}

func TestGetOrderNotFound(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			_, err := st.GetOrder("nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPendingOrdersInCreationOrder(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			base := time.Now().Add(-time.Hour)

			// Saved out of creation order on purpose.
			require.NoError(t, st.SaveOrder(testOrder("o2", base.Add(2*time.Minute))))
			require.NoError(t, st.SaveOrder(testOrder("o1", base.Add(1*time.Minute))))
			require.NoError(t, st.SaveOrder(testOrder("o3", base.Add(3*time.Minute))))

			assert.Equal(t, []string{"o1", "o2", "o3"}, pendingIDs(t, st))
		})
	}
}

func TestMarkOrdersSynced(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			base := time.Now().Add(-time.Hour)
			require.NoError(t, st.SaveOrder(testOrder("o1", base)))
			require.NoError(t, st.SaveOrder(testOrder("o2", base.Add(time.Minute))))

			require.NoError(t, st.MarkOrdersSynced([]string{"o1"}))
			assert.Equal(t, []string{"o2"}, pendingIDs(t, st))

			got, err := st.GetOrder("o1")
			require.NoError(t, err)
			assert.Equal(t, models.SyncSynced, got.SyncStatus)
			require.NotNil(t, got.SyncedAt)

			// Idempotent: marking again is a no-op.
			firstSyncedAt := *got.SyncedAt
			require.NoError(t, st.MarkOrdersSynced([]string{"o1"}))
			again, err := st.GetOrder("o1")
			require.NoError(t, err)
			assert.True(t, again.SyncedAt.Equal(firstSyncedAt))

			// Empty set is a no-op too.
			require.NoError(t, st.MarkOrdersSynced(nil))
		})
	}
}

func TestSyncedOrderNeverRevertsToPending(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			require.NoError(t, st.SaveOrder(testOrder("o1", time.Now())))
			require.NoError(t, st.MarkOrdersSynced([]string{"o1"}))

			// A later local update (e.g. the operator fixing a name) must
			// not re-queue a settled order.
			updated := testOrder("o1", time.Now())
			updated.CustomerName = "Corrected"
			require.NoError(t, st.SaveOrder(updated))

			assert.Empty(t, pendingIDs(t, st))
			got, err := st.GetOrder("o1")
			require.NoError(t, err)
			assert.Equal(t, models.SyncSynced, got.SyncStatus)
			assert.Equal(t, "Corrected", got.CustomerName)
		})
	}
}

func TestMarkOrderFailedKeepsOrderPending(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			require.NoError(t, st.SaveOrder(testOrder("o1", time.Now())))

			require.NoError(t, st.MarkOrderFailed("o1", "insert failed: constraint violation"))

			// Still retryable, but the detail is visible to the operator.
			assert.Equal(t, []string{"o1"}, pendingIDs(t, st))
			got, err := st.GetOrder("o1")
			require.NoError(t, err)
			assert.Equal(t, "insert failed: constraint violation", got.SyncError)

			// Success clears the sticky error.
			require.NoError(t, st.MarkOrdersSynced([]string{"o1"}))
			got, err = st.GetOrder("o1")
			require.NoError(t, err)
			assert.Empty(t, got.SyncError)
		})
	}
}

func TestHeldAndRecentOrders(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			base := time.Now().Add(-time.Hour)

			held := testOrder("h1", base)
			held.Status = models.StatusHeld
			require.NoError(t, st.SaveOrder(held))
			require.NoError(t, st.SaveOrder(testOrder("q1", base.Add(time.Minute))))
			require.NoError(t, st.SaveOrder(testOrder("q2", base.Add(2*time.Minute))))

			heldOrders, err := st.GetHeldOrders()
			require.NoError(t, err)
			require.Len(t, heldOrders, 1)
			assert.Equal(t, "h1", heldOrders[0].ID)

			recent, err := st.GetRecentOrders(2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "q2", recent[0].ID)
			assert.Equal(t, "q1", recent[1].ID)
		})
	}
}

func TestCacheBulkWritersAreDestructiveReplace(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)

			require.NoError(t, st.SaveProductsBulk([]models.Product{
				{ID: "p1", Name: "Margherita", Price: 9.5},
				{ID: "p2", Name: "Pepperoni", Price: 11},
			}))
			require.NoError(t, st.SaveCategoriesBulk([]models.Category{
				{ID: "c1", Name: "Pizza", SortOrder: 1},
			}))
			require.NoError(t, st.SaveTablesBulk([]models.DiningTable{
				{ID: "t1", Name: "T1", Seats: 4},
			}))
			require.NoError(t, st.SaveSettingsBulk([]models.Setting{
				{Key: "currency", Value: "EUR"},
			}))

			// A fresh snapshot replaces the cache wholesale.
			require.NoError(t, st.SaveProductsBulk([]models.Product{
				{ID: "p3", Name: "Calzone", Price: 10},
			}))
			products, err := st.ListProducts()
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, "p3", products[0].ID)

			categories, err := st.ListCategories()
			require.NoError(t, err)
			assert.Len(t, categories, 1)

			tables, err := st.ListTables()
			require.NoError(t, err)
			assert.Len(t, tables, 1)

			currency, err := st.GetSetting("currency")
			require.NoError(t, err)
			assert.Equal(t, "EUR", currency)

			_, err = st.GetSetting("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSaveOrdersBulkIsAdditive(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			st := openTestStore(t, backend)
			base := time.Now().Add(-time.Hour)

			require.NoError(t, st.SaveOrder(testOrder("o1", base)))
			// Unlike the cache writers, a bulk order write must never drop
			// existing orders.
			require.NoError(t, st.SaveOrdersBulk([]models.Order{
				testOrder("o2", base.Add(time.Minute)),
				testOrder("o3", base.Add(2*time.Minute)),
			}))

			assert.Equal(t, []string{"o1", "o2", "o3"}, pendingIDs(t, st))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "memcached", Path: "x"})
	require.Error(t, err)
}
