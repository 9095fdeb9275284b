package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the business lifecycle of an order, owned by the
// order-taking flow. Sync carries it but never interprets it.
type OrderStatus string

const (
	StatusHeld      OrderStatus = "HELD"
	StatusQueued    OrderStatus = "QUEUED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Terminal-local sync states. An order is created PENDING_SYNC and moves to
// SYNCED exactly once, after the server confirms it has the record.
const (
	SyncPending = "PENDING_SYNC"
	SyncSynced  = "SYNCED"
)

// Per-order outcomes returned by the reconciliation endpoint.
// ALREADY_EXISTS is a success: the server has the order, stop retrying it.
const (
	OutcomeSynced        = "SYNCED"
	OutcomeAlreadyExists = "ALREADY_EXISTS"
	OutcomeFailed        = "FAILED"
)

// AddOn is an extra attached to a line item (e.g. extra cheese).
type AddOn struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	AddOns   []AddOn `json:"addOns,omitempty"`
}

// OrderItems stores the line items as a single serialized text column on
// relational backends while callers always see structured data.
type OrderItems []OrderItem

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *OrderItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*items = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), items)
	case []byte:
		return json.Unmarshal(v, items)
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
}

// Order is the unit of synchronization. The ID is generated on the terminal
// at creation time and is never regenerated by the server; it is the
// idempotency key for the whole protocol.
type Order struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StoreID        string      `json:"storeId" gorm:"type:varchar(36);index"`
	KotNo          int         `json:"kotNo"`
	CustomerName   string      `json:"customerName"`
	CustomerMobile string      `json:"customerMobile"`
	TableID        string      `json:"tableId"`
	TableName      string      `json:"tableName"`
	Items          OrderItems  `json:"items" gorm:"type:text"`
	TotalAmount    float64     `json:"totalAmount"`
	DiscountAmount float64     `json:"discountAmount"`
	TaxAmount      float64     `json:"taxAmount"`
	PaymentMode    string      `json:"paymentMode"`
	Status         OrderStatus `json:"status" gorm:"index"`
	// OriginalStatus snapshots the business status at the moment of offline
	// creation so the server can restore intent on sync.
	OriginalStatus OrderStatus `json:"originalStatus,omitempty"`
	// CreatedAt is the client-assigned event time, preserved verbatim
	// through sync.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Terminal-local bookkeeping. Never crosses the wire.
	SyncStatus string     `json:"-" gorm:"index;default:'PENDING_SYNC'"`
	SyncedAt   *time.Time `json:"-"`
	SyncError  string     `json:"-"`
}

// NewOrderID returns a terminal-generated globally unique order id.
func NewOrderID() string {
	return uuid.NewString()
}
