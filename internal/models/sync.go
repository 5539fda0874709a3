package models

import "time"

// ItemChange is one item mutation uploaded by a client. A populated
// DeletedAt marks the change as a tombstone. Timestamps are optional;
// absent values fall back to server time.
type ItemChange struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Barcode        *string    `json:"barcode"`
	SKU            *string    `json:"sku"`
	Price          float64    `json:"price"`
	Unit           string     `json:"unit"`
	InventoryQty   float64    `json:"inventory_qty"`
	Category       *string    `json:"category"`
	Recommended    bool       `json:"recommended"`
	ImagePath      *string    `json:"image_path"`
	ImageURL       *string    `json:"image_url"` // legacy client alias for image_path
	IdempotencyKey *string    `json:"idempotency_key"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

// CustomerChange is one customer mutation uploaded by a client.
type CustomerChange struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Phone          *string    `json:"phone"`
	Email          *string    `json:"email"`
	Address        *string    `json:"address"`
	IdempotencyKey *string    `json:"idempotency_key"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

// TransactionChange is one transaction mutation uploaded by a client.
type TransactionChange struct {
	ID                 string     `json:"id"`
	CustomerID         *string    `json:"customer_id"`
	VoucherNumber      *string    `json:"voucher_number"`
	ProvisionalVoucher *string    `json:"provisional_voucher"`
	Date               *time.Time `json:"date"`
	Subtotal           float64    `json:"subtotal"`
	Tax                float64    `json:"tax"`
	Discount           float64    `json:"discount"`
	OtherCharges       float64    `json:"other_charges"`
	GrandTotal         float64    `json:"grand_total"`
	ItemCount          int        `json:"item_count"`
	UnitCount          float64    `json:"unit_count"`
	PaymentType        string     `json:"payment_type"`
	Status             string     `json:"status"`
	ReceiptPath        *string    `json:"receipt_path"`
	ReceiptFilePath    *string    `json:"receipt_file_path"` // legacy client alias for receipt_path
	IdempotencyKey     *string    `json:"idempotency_key"`
	Lines              []LineItem `json:"lines"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at"`
}

// PushRequest is one batched upload of local changes. Nil slices mean the
// entity type was absent from the request, which matters for sync metadata.
type PushRequest struct {
	Items        []ItemChange        `json:"items"`
	Customers    []CustomerChange    `json:"customers"`
	Transactions []TransactionChange `json:"transactions"`
}

// SyncedRecord reports one successfully applied change. CloudID is the
// server-side id the client must adopt; it differs from ID when the
// idempotency ledger matched an earlier upload.
type SyncedRecord struct {
	ID            string  `json:"id"`
	CloudID       string  `json:"cloud_id"`
	Action        string  `json:"action,omitempty"` // "created" | "updated" | "deleted"
	VoucherNumber *string `json:"voucher_number,omitempty"`
}

// Synced record actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Conflict reports one rejected or failed change. Reason is set for
// business-level rejections, Error for unexpected per-item failures.
type Conflict struct {
	ID              string     `json:"id"`
	Reason          string     `json:"reason,omitempty"`
	Error           string     `json:"error,omitempty"`
	ServerUpdatedAt *time.Time `json:"server_updated_at,omitempty"`
	ClientUpdatedAt *time.Time `json:"client_updated_at,omitempty"`
}

// EntityResults accumulates per-entity outcomes for one entity type.
type EntityResults struct {
	Synced    []SyncedRecord `json:"synced"`
	Conflicts []Conflict     `json:"conflicts"`
}

// PushResult is the full response to a push. Partial success is the normal
// case; conflicts never fail the batch.
type PushResult struct {
	Items           EntityResults `json:"items"`
	Customers       EntityResults `json:"customers"`
	Transactions    EntityResults `json:"transactions"`
	ServerTimestamp time.Time     `json:"server_timestamp"`
}

// NewPushResult returns a result with non-nil slices so empty groups
// serialize as [] instead of null.
func NewPushResult() *PushResult {
	return &PushResult{
		Items:        EntityResults{Synced: []SyncedRecord{}, Conflicts: []Conflict{}},
		Customers:    EntityResults{Synced: []SyncedRecord{}, Conflicts: []Conflict{}},
		Transactions: EntityResults{Synced: []SyncedRecord{}, Conflicts: []Conflict{}},
	}
}

// PullResult is the full response to a pull: every row of the user's data
// updated after the cursor, tombstones included, ordered by updated_at.
type PullResult struct {
	Items           []Item        `json:"items"`
	Customers       []Customer    `json:"customers"`
	Transactions    []Transaction `json:"transactions"`
	ServerTimestamp time.Time     `json:"server_timestamp"`
}
