package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Entity type identifiers used by sync metadata bookkeeping.
const (
	EntityItems        = "items"
	EntityCustomers    = "customers"
	EntityTransactions = "transactions"
)

// TransactionStatusCompleted is the status that triggers inventory
// adjustment when a transaction is first created.
const TransactionStatusCompleted = "completed"

// User carries the profile fields the sync engine reads. Accounts and
// sessions are owned by the identity service; this table is never written
// here.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Company   *string   `json:"company"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Item is a sellable product owned by a single user. DeletedAt is a plain
// tombstone column rather than gorm.DeletedAt: pulls must return deleted
// rows, so the sync engine controls tombstone visibility in every query.
type Item struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	UserID         string     `gorm:"not null;index:idx_items_user_updated,priority:1;uniqueIndex:idx_items_user_idem,priority:1" json:"user_id"`
	Name           string     `gorm:"not null" json:"name"`
	Barcode        *string    `gorm:"index" json:"barcode"`
	SKU            *string    `gorm:"column:sku" json:"sku"`
	Price          float64    `gorm:"not null;default:0" json:"price"`
	Unit           string     `gorm:"not null;default:piece" json:"unit"`
	InventoryQty   float64    `gorm:"not null;default:0" json:"inventory_qty"`
	Category       *string    `gorm:"index" json:"category"`
	Recommended    bool       `gorm:"not null;default:false" json:"recommended"`
	ImagePath      *string    `json:"image_path"`
	IdempotencyKey *string    `gorm:"uniqueIndex:idx_items_user_idem,priority:2" json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `gorm:"index:idx_items_user_updated,priority:2" json:"updated_at"`
	DeletedAt      *time.Time `gorm:"index" json:"deleted_at"`
}

// Customer is a buyer record owned by a single user.
type Customer struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	UserID         string     `gorm:"not null;index:idx_customers_user_updated,priority:1;uniqueIndex:idx_customers_user_idem,priority:1" json:"user_id"`
	Name           string     `gorm:"not null" json:"name"`
	Phone          *string    `gorm:"index" json:"phone"`
	Email          *string    `json:"email"`
	Address        *string    `json:"address"`
	IdempotencyKey *string    `gorm:"uniqueIndex:idx_customers_user_idem,priority:2" json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `gorm:"index:idx_customers_user_updated,priority:2" json:"updated_at"`
	DeletedAt      *time.Time `gorm:"index" json:"deleted_at"`
}

// LineItem is one sold line inside a transaction. The list is stored as a
// JSON document on the transaction row, not as a child table.
type LineItem struct {
	ItemID    *string `json:"item_id"`
	ItemName  string  `json:"item_name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Transaction is a sale. VoucherNumber stays nil until the sequencer
// assigns one; ProvisionalVoucher is the client-side placeholder that
// exists until then.
type Transaction struct {
	ID                 string     `gorm:"primaryKey" json:"id"`
	UserID             string     `gorm:"not null;index:idx_tx_user_updated,priority:1;uniqueIndex:idx_tx_user_idem,priority:1;uniqueIndex:idx_tx_user_voucher,priority:1" json:"user_id"`
	CustomerID         *string    `gorm:"index" json:"customer_id"`
	VoucherNumber      *string    `gorm:"uniqueIndex:idx_tx_user_voucher,priority:2" json:"voucher_number"`
	ProvisionalVoucher *string    `json:"provisional_voucher"`
	Date               time.Time  `gorm:"not null;index" json:"date"`
	Subtotal           float64    `gorm:"not null;default:0" json:"subtotal"`
	Tax                float64    `gorm:"not null;default:0" json:"tax"`
	Discount           float64    `gorm:"not null;default:0" json:"discount"`
	OtherCharges       float64    `gorm:"not null;default:0" json:"other_charges"`
	GrandTotal         float64    `gorm:"not null;default:0" json:"grand_total"`
	ItemCount          int        `gorm:"not null;default:0" json:"item_count"`
	UnitCount          float64    `gorm:"not null;default:0" json:"unit_count"`
	PaymentType        string     `gorm:"not null;default:cash" json:"payment_type"`
	Status             string     `gorm:"not null;default:completed;index" json:"status"`
	ReceiptPath        *string    `json:"receipt_path"`
	IdempotencyKey     *string    `gorm:"uniqueIndex:idx_tx_user_idem,priority:2" json:"idempotency_key"`
	LineItems          []LineItem `gorm:"column:line_items;type:jsonb;serializer:json" json:"lines"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `gorm:"index:idx_tx_user_updated,priority:2" json:"updated_at"`
	DeletedAt          *time.Time `gorm:"index" json:"deleted_at"`
}

// SyncMetadata is per-user, per-entity-type sync bookkeeping. It is
// best-effort operational data; pull cursors are held by clients.
type SyncMetadata struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	UserID         string     `gorm:"not null;uniqueIndex:idx_sync_meta_user_entity,priority:1" json:"user_id"`
	EntityType     string     `gorm:"not null;uniqueIndex:idx_sync_meta_user_entity,priority:2" json:"entity_type"`
	LastSyncAt     time.Time  `gorm:"not null" json:"last_sync_at"`
	SyncCount      int64      `gorm:"not null;default:0" json:"sync_count"`
	LastConflictAt *time.Time `json:"last_conflict_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name; the default pluralizer mangles "metadata".
func (SyncMetadata) TableName() string { return "sync_metadata" }

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Item{},
		&Customer{},
		&Transaction{},
		&SyncMetadata{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
