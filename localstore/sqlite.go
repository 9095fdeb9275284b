package localstore

import (
	"errors"
	"fmt"

	"restaurant-pos/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sqliteStore is the desktop backend: an embedded relational store with the
// order line items serialized into a text column (models.OrderItems handles
// the boundary, callers only ever see structured data).
type sqliteStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// orderUpdateColumns are the business fields refreshed on upsert. Sync
// bookkeeping (sync_status, synced_at, sync_error) and the client-assigned
// created_at are deliberately absent: a retried local write must not
// re-queue a synced order or shift its event time.
var orderUpdateColumns = []string{
	"store_id", "kot_no", "customer_name", "customer_mobile",
	"table_id", "table_name", "items", "total_amount", "discount_amount",
	"tax_amount", "payment_mode", "status", "original_status", "updated_at",
}

func openSQLite(cfg Config) (*sqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local sqlite at %s: %w", cfg.Path, err)
	}
	if err := migrateSQLite(db); err != nil {
		return nil, fmt.Errorf("migrate local sqlite: %w", err)
	}
	cfg.Logger.Info("local store opened",
		zap.String("backend", BackendSQLite), zap.String("path", cfg.Path))
	return &sqliteStore{db: db, log: cfg.Logger}, nil
}

// migrateSQLite runs the additive schema migrations. Columns that arrived
// after the first release are added inspect-then-alter so a terminal that
// restarts on an old database file never fails on "column already exists".
func migrateSQLite(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Order{},
		&models.Product{},
		&models.Category{},
		&models.DiningTable{},
		&models.Setting{},
	); err != nil {
		return err
	}

	m := db.Migrator()
	lateColumns := []struct {
		model interface{}
		field string
	}{
		{&models.Order{}, "OriginalStatus"},
		{&models.Order{}, "SyncError"},
	}
	for _, c := range lateColumns {
		if m.HasColumn(c.model, c.field) {
			continue
		}
		if err := m.AddColumn(c.model, c.field); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveOrder(order models.Order) error {
	if order.ID == "" {
		return errors.New("localstore: order id is required")
	}
	if order.SyncStatus == "" {
		order.SyncStatus = models.SyncPending
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(orderUpdateColumns),
	}).Create(&order).Error
}

func (s *sqliteStore) GetOrder(id string) (*models.Order, error) {
	var order models.Order
	err := s.db.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *sqliteStore) GetPendingOrders() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Where("sync_status = ?", models.SyncPending).
		Order("created_at asc").
		Find(&orders).Error
	return orders, err
}

func (s *sqliteStore) GetRecentOrders(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Order("created_at desc").Limit(limit).Find(&orders).Error
	return orders, err
}

func (s *sqliteStore) GetHeldOrders() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Where("status = ?", models.StatusHeld).
		Order("created_at desc").
		Find(&orders).Error
	return orders, err
}

func (s *sqliteStore) MarkOrdersSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := nowFunc()
	return s.db.Model(&models.Order{}).
		Where("id IN ? AND sync_status <> ?", ids, models.SyncSynced).
		Updates(map[string]interface{}{
			"sync_status": models.SyncSynced,
			"synced_at":   now,
			"sync_error":  "",
		}).Error
}

func (s *sqliteStore) MarkOrderFailed(id, detail string) error {
	// The order stays PENDING_SYNC: a lost order is unacceptable, so it is
	// retried every cycle while the detail stays visible to the operator.
	return s.db.Model(&models.Order{}).
		Where("id = ? AND sync_status <> ?", id, models.SyncSynced).
		Update("sync_error", detail).Error
}

func (s *sqliteStore) SaveOrdersBulk(orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	for i := range orders {
		if orders[i].SyncStatus == "" {
			orders[i].SyncStatus = models.SyncPending
		}
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(orderUpdateColumns),
	}).Create(&orders).Error
}

func (s *sqliteStore) SaveProductsBulk(products []models.Product) error {
	return replaceAll(s.db, "products", products)
}

func (s *sqliteStore) SaveCategoriesBulk(categories []models.Category) error {
	return replaceAll(s.db, "categories", categories)
}

func (s *sqliteStore) SaveTablesBulk(tables []models.DiningTable) error {
	return replaceAll(s.db, "tables", tables)
}

func (s *sqliteStore) SaveSettingsBulk(settings []models.Setting) error {
	return replaceAll(s.db, "settings", settings)
}

// replaceAll implements snapshot-pull semantics: the cached table is a full
// copy of the server's reference data, so refresh is clear-then-insert.
func replaceAll[T any](db *gorm.DB, table string, records []T) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
}

func (s *sqliteStore) ListProducts() ([]models.Product, error) {
	var products []models.Product
	err := s.db.Order("name asc").Find(&products).Error
	return products, err
}

func (s *sqliteStore) ListCategories() ([]models.Category, error) {
	var categories []models.Category
	err := s.db.Order("sort_order asc").Find(&categories).Error
	return categories, err
}

func (s *sqliteStore) ListTables() ([]models.DiningTable, error) {
	var tables []models.DiningTable
	err := s.db.Order("name asc").Find(&tables).Error
	return tables, err
}

func (s *sqliteStore) GetSetting(key string) (string, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
