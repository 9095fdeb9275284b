// Package localstore is the terminal-local persistence layer. A terminal
// keeps taking orders while disconnected from the server; everything it
// records lands here first, tagged PENDING_SYNC, and is reconciled with the
// server by the dispatcher once connectivity returns.
//
// Two interchangeable backends satisfy the Store interface: an embedded
// relational store (sqlite) for desktop deployments and an embedded
// key-value store (bolt) standing in for browser structured storage. The
// backend is chosen once at Open and fixed for the process lifetime;
// callers never know which one is active.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"time"

	"restaurant-pos/models"

	"go.uber.org/zap"
)

// ErrNotFound is returned by point lookups when no record exists.
var ErrNotFound = errors.New("localstore: not found")

var nowFunc = time.Now

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Store is the local persistence facade.
//
// Order writes are additive upserts: saving the same id twice updates the
// row, never duplicates it, and never reverts sync bookkeeping. The bulk
// cache writers for products/categories/tables/settings are
// destructive-replace, because a bootstrap pull is a full snapshot.
type Store interface {
	// SaveOrder upserts a locally created or updated order. A new row is
	// queued PENDING_SYNC; an existing row keeps its sync state.
	SaveOrder(order models.Order) error
	GetOrder(id string) (*models.Order, error)
	// GetPendingOrders returns every PENDING_SYNC order in creation order.
	// Orders already confirmed SYNCED are never returned.
	GetPendingOrders() ([]models.Order, error)
	GetRecentOrders(limit int) ([]models.Order, error)
	GetHeldOrders() ([]models.Order, error)
	// MarkOrdersSynced records server confirmation. Idempotent: marking an
	// already-synced id again is a no-op. A synced order never goes back
	// to pending.
	MarkOrdersSynced(ids []string) error
	// MarkOrderFailed records the server's per-order failure detail for
	// operator visibility. The order stays PENDING_SYNC and retryable.
	MarkOrderFailed(id, detail string) error

	SaveOrdersBulk(orders []models.Order) error

	// Snapshot-pull cache writers: clear-then-insert.
	SaveProductsBulk(products []models.Product) error
	SaveCategoriesBulk(categories []models.Category) error
	SaveTablesBulk(tables []models.DiningTable) error
	SaveSettingsBulk(settings []models.Setting) error

	ListProducts() ([]models.Product, error)
	ListCategories() ([]models.Category, error)
	ListTables() ([]models.DiningTable, error)
	GetSetting(key string) (string, error)

	Close() error
}

type Config struct {
	Backend string
	Path    string
	Logger  *zap.Logger
}

// DetectBackend probes the hosting environment once at startup. Desktop
// deployments default to the embedded relational store; POS_LOCAL_BACKEND
// overrides for embedded/web-shell runtimes that only get a key-value store.
func DetectBackend() string {
	switch os.Getenv("POS_LOCAL_BACKEND") {
	case BackendBolt:
		return BackendBolt
	case BackendSQLite:
		return BackendSQLite
	default:
		return BackendSQLite
	}
}

// Open selects and opens the backend. A failure here is fatal for the
// terminal: without local persistence it must not take orders at all.
func Open(cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendSQLite, "":
		return openSQLite(cfg)
	case BackendBolt:
		return openBolt(cfg)
	default:
		return nil, fmt.Errorf("localstore: unknown backend %q", cfg.Backend)
	}
}
