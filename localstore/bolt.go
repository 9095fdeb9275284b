package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"restaurant-pos/models"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// boltStore is the structured key-value backend used where no relational
// engine is available (the browser-storage analog). Records are JSON blobs
// keyed by id; the index buckets let callers enumerate orders by sync state
// or business status without a full scan, mirroring a secondary index.
type boltStore struct {
	db  *bolt.DB
	log *zap.Logger
}

var (
	bucketOrders     = []byte("orders")
	bucketProducts   = []byte("products")
	bucketCategories = []byte("categories")
	bucketTables     = []byte("tables")
	bucketSettings   = []byte("settings")
	idxOrdersSync    = []byte("idx_orders_sync")
	idxOrdersStatus  = []byte("idx_orders_status")
)

// orderBlob is the stored envelope. models.Order keeps its sync bookkeeping
// out of JSON (it must never cross the wire), so the envelope carries it
// alongside the order for local persistence.
type orderBlob struct {
	Order      models.Order `json:"order"`
	SyncStatus string       `json:"syncStatus"`
	SyncedAt   *time.Time   `json:"syncedAt,omitempty"`
	SyncError  string       `json:"syncError,omitempty"`
}

func (b orderBlob) restore() models.Order {
	o := b.Order
	o.SyncStatus = b.SyncStatus
	o.SyncedAt = b.SyncedAt
	o.SyncError = b.SyncError
	return o
}

func openBolt(cfg Config) (*boltStore, error) {
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local bolt at %s: %w", cfg.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{
			bucketOrders, bucketProducts, bucketCategories,
			bucketTables, bucketSettings, idxOrdersSync, idxOrdersStatus,
		} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare local bolt buckets: %w", err)
	}
	cfg.Logger.Info("local store opened",
		zap.String("backend", BackendBolt), zap.String("path", cfg.Path))
	return &boltStore{db: db, log: cfg.Logger}, nil
}

func idxKey(value, id string) []byte {
	return []byte(value + "\x00" + id)
}

func (s *boltStore) SaveOrder(order models.Order) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return saveOrderTx(tx, order)
	})
}

func saveOrderTx(tx *bolt.Tx, order models.Order) error {
	if order.ID == "" {
		return errors.New("localstore: order id is required")
	}

	orders := tx.Bucket(bucketOrders)
	key := []byte(order.ID)

	blob := orderBlob{
		SyncStatus: order.SyncStatus,
		SyncedAt:   order.SyncedAt,
		SyncError:  order.SyncError,
	}
	if blob.SyncStatus == "" {
		blob.SyncStatus = models.SyncPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = nowFunc()
	}
	order.UpdatedAt = nowFunc()

	if raw := orders.Get(key); raw != nil {
		var prev orderBlob
		if err := json.Unmarshal(raw, &prev); err != nil {
			return fmt.Errorf("decode stored order %s: %w", order.ID, err)
		}
		// Retried local writes never re-queue a synced order or shift its
		// event time.
		blob.SyncStatus = prev.SyncStatus
		blob.SyncedAt = prev.SyncedAt
		blob.SyncError = prev.SyncError
		order.CreatedAt = prev.Order.CreatedAt
		if err := removeOrderIndexes(tx, prev); err != nil {
			return err
		}
	}

	order.SyncStatus = ""
	order.SyncedAt = nil
	order.SyncError = ""
	blob.Order = order

	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	if err := orders.Put(key, raw); err != nil {
		return err
	}
	return addOrderIndexes(tx, blob)
}

func addOrderIndexes(tx *bolt.Tx, blob orderBlob) error {
	id := blob.Order.ID
	if err := tx.Bucket(idxOrdersSync).Put(idxKey(blob.SyncStatus, id), []byte(id)); err != nil {
		return err
	}
	return tx.Bucket(idxOrdersStatus).Put(idxKey(string(blob.Order.Status), id), []byte(id))
}

func removeOrderIndexes(tx *bolt.Tx, blob orderBlob) error {
	id := blob.Order.ID
	if err := tx.Bucket(idxOrdersSync).Delete(idxKey(blob.SyncStatus, id)); err != nil {
		return err
	}
	return tx.Bucket(idxOrdersStatus).Delete(idxKey(string(blob.Order.Status), id))
}

func (s *boltStore) GetOrder(id string) (*models.Order, error) {
	var order *models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketOrders).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		var blob orderBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return err
		}
		o := blob.restore()
		order = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ordersByIndex loads every order whose index entry matches the given value.
func (s *boltStore) ordersByIndex(idx []byte, value string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		orderBkt := tx.Bucket(bucketOrders)
		c := tx.Bucket(idx).Cursor()
		prefix := []byte(value + "\x00")
		for k, id := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = c.Next() {
			raw := orderBkt.Get(id)
			if raw == nil {
				continue // dangling index entry
			}
			var blob orderBlob
			if err := json.Unmarshal(raw, &blob); err != nil {
				return err
			}
			orders = append(orders, blob.restore())
		}
		return nil
	})
	return orders, err
}

func (s *boltStore) GetPendingOrders() ([]models.Order, error) {
	orders, err := s.ordersByIndex(idxOrdersSync, models.SyncPending)
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *boltStore) GetRecentOrders(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).ForEach(func(_, raw []byte) error {
			var blob orderBlob
			if err := json.Unmarshal(raw, &blob); err != nil {
				return err
			}
			orders = append(orders, blob.restore())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *boltStore) GetHeldOrders() ([]models.Order, error) {
	orders, err := s.ordersByIndex(idxOrdersStatus, string(models.StatusHeld))
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *boltStore) MarkOrdersSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := nowFunc()
	return s.db.Update(func(tx *bolt.Tx) error {
		orders := tx.Bucket(bucketOrders)
		for _, id := range ids {
			raw := orders.Get([]byte(id))
			if raw == nil {
				continue
			}
			var blob orderBlob
			if err := json.Unmarshal(raw, &blob); err != nil {
				return err
			}
			if blob.SyncStatus == models.SyncSynced {
				continue
			}
			if err := removeOrderIndexes(tx, blob); err != nil {
				return err
			}
			blob.SyncStatus = models.SyncSynced
			blob.SyncedAt = &now
			blob.SyncError = ""
			updated, err := json.Marshal(blob)
			if err != nil {
				return err
			}
			if err := orders.Put([]byte(id), updated); err != nil {
				return err
			}
			if err := addOrderIndexes(tx, blob); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) MarkOrderFailed(id, detail string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		orders := tx.Bucket(bucketOrders)
		raw := orders.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var blob orderBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return err
		}
		if blob.SyncStatus == models.SyncSynced {
			return nil
		}
		blob.SyncError = detail
		updated, err := json.Marshal(blob)
		if err != nil {
			return err
		}
		return orders.Put([]byte(id), updated)
	})
}

func (s *boltStore) SaveOrdersBulk(orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, o := range orders {
			if err := saveOrderTx(tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceBucket implements snapshot-pull semantics for a cache bucket.
func (s *boltStore) replaceBucket(name []byte, put func(b *bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		return put(b)
	})
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), raw)
}

func (s *boltStore) SaveProductsBulk(products []models.Product) error {
	return s.replaceBucket(bucketProducts, func(b *bolt.Bucket) error {
		for _, p := range products {
			if err := putJSON(b, p.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) SaveCategoriesBulk(categories []models.Category) error {
	return s.replaceBucket(bucketCategories, func(b *bolt.Bucket) error {
		for _, c := range categories {
			if err := putJSON(b, c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) SaveTablesBulk(tables []models.DiningTable) error {
	return s.replaceBucket(bucketTables, func(b *bolt.Bucket) error {
		for _, t := range tables {
			if err := putJSON(b, t.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) SaveSettingsBulk(settings []models.Setting) error {
	return s.replaceBucket(bucketSettings, func(b *bolt.Bucket) error {
		for _, st := range settings {
			if err := putJSON(b, st.Key, st); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) ListProducts() ([]models.Product, error) {
	var products []models.Product
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).ForEach(func(_, raw []byte) error {
			var p models.Product
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			products = append(products, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *boltStore) ListCategories() ([]models.Category, error) {
	var categories []models.Category
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).ForEach(func(_, raw []byte) error {
			var c models.Category
			if err := json.Unmarshal(raw, &c); err != nil {
				return err
			}
			categories = append(categories, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].SortOrder < categories[j].SortOrder })
	return categories, nil
}

func (s *boltStore) ListTables() ([]models.DiningTable, error) {
	var tables []models.DiningTable
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTables).ForEach(func(_, raw []byte) error {
			var t models.DiningTable
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			tables = append(tables, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func (s *boltStore) GetSetting(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSettings).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var st models.Setting
		if err := json.Unmarshal(raw, &st); err != nil {
			return err
		}
		value = st.Value
		return nil
	})
	return value, err
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
