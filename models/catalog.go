package models

import "time"

// Reference data pulled from the server and cached on terminals so they can
// operate offline. A bootstrap pull is a full snapshot: the local cache is
// replaced wholesale, never merged.

type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null"`
	Price       float64   `json:"price" gorm:"not null"`
	CategoryID  string    `json:"categoryId" gorm:"type:varchar(36);index"`
	IsAvailable bool      `json:"isAvailable" gorm:"default:true"`
	IsVeg       bool      `json:"isVeg" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Category struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string `json:"name" gorm:"not null"`
	SortOrder int    `json:"sortOrder"`
}

// DiningTable avoids the reserved-ish "Table" name; the table is still
// called "tables" on disk.
type DiningTable struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StoreID string `json:"storeId" gorm:"type:varchar(36);index"`
	Name    string `json:"name" gorm:"not null"`
	Seats   int    `json:"seats"`
}

func (DiningTable) TableName() string {
	return "tables"
}

type Setting struct {
	Key   string `json:"key" gorm:"primaryKey"`
	Value string `json:"value"`
}
