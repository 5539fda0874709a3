package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/gurpos/services/sync/internal/models"
)

// Repositories here follow a split convention: read paths take a context
// and run against the read-only database, while methods participating in a
// push's atomic commit take the ambient *gorm.DB transaction handle.

// UserRepository provides read access to user profile data
type UserRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, readOnlyDB *gorm.DB) *UserRepository {
	return &UserRepository{db: db, readOnlyDB: readOnlyDB}
}

// FindByID gets a user by id within the given transaction scope.
func (r *UserRepository) FindByID(tx *gorm.DB, id string) (*models.User, error) {
	var user models.User
	err := tx.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get user by id")
	}
	return &user, nil
}

// ItemRepository provides access to item data
type ItemRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpdatedSince returns every item row changed after the cursor, tombstones
// included, ordered ascending by updated_at.
func (r *ItemRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Item, error) {
	var items []models.Item
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, since).
		Order("updated_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan items since cursor")
	}
	return items, nil
}

// FindActive gets a live (non-tombstoned) item by id, or nil if absent.
func (r *ItemRepository) FindActive(tx *gorm.DB, userID, id string) (*models.Item, error) {
	var item models.Item
	err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, userID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get item by id")
	}
	return &item, nil
}

// FindByIdempotencyKey resolves a retried upload to the row it created
// earlier, or nil when the key is unseen.
func (r *ItemRepository) FindByIdempotencyKey(tx *gorm.DB, userID, key string) (*models.Item, error) {
	var item models.Item
	err := tx.Where("user_id = ? AND idempotency_key = ? AND deleted_at IS NULL", userID, key).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get item by idempotency key")
	}
	return &item, nil
}

// Create inserts a new item inside the push transaction.
func (r *ItemRepository) Create(tx *gorm.DB, item *models.Item) error {
	return tx.Create(item).Error
}

// Overwrite replaces the stored fields of an existing item. The caller has
// already decided the write wins; updated_at must be part of fields.
func (r *ItemRepository) Overwrite(tx *gorm.DB, userID, id string, fields map[string]interface{}) error {
	err := tx.Model(&models.Item{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields).Error
	return errors.Wrap(err, "failed to overwrite item")
}

// MarkDeleted applies a tombstone. Returns the number of rows touched so
// the caller can tell a no-op delete from an applied one.
func (r *ItemRepository) MarkDeleted(tx *gorm.DB, userID, id string, deletedAt, now time.Time) (int64, error) {
	result := tx.Model(&models.Item{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"deleted_at": deletedAt, "updated_at": now})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to tombstone item")
	}
	return result.RowsAffected, nil
}

// DecrementInventory applies a stock decrement from a sold line. Inventory
// is allowed to go negative; offline sales can outrun the counted stock.
func (r *ItemRepository) DecrementInventory(tx *gorm.DB, userID, itemID string, qty float64, now time.Time) error {
	err := tx.Model(&models.Item{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", itemID, userID).
		Updates(map[string]interface{}{
			"inventory_qty": gorm.Expr("inventory_qty - ?", qty),
			"updated_at":    now,
		}).Error
	return errors.Wrap(err, "failed to decrement inventory")
}

// CustomerRepository provides access to customer data
type CustomerRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB, readOnlyDB *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpdatedSince returns every customer row changed after the cursor,
// tombstones included, ordered ascending by updated_at.
func (r *CustomerRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, since).
		Order("updated_at ASC").
		Find(&customers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan customers since cursor")
	}
	return customers, nil
}

// FindActive gets a live customer by id, or nil if absent.
func (r *CustomerRepository) FindActive(tx *gorm.DB, userID, id string) (*models.Customer, error) {
	var customer models.Customer
	err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, userID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get customer by id")
	}
	return &customer, nil
}

// FindByIdempotencyKey resolves a retried upload to the row it created
// earlier, or nil when the key is unseen.
func (r *CustomerRepository) FindByIdempotencyKey(tx *gorm.DB, userID, key string) (*models.Customer, error) {
	var customer models.Customer
	err := tx.Where("user_id = ? AND idempotency_key = ? AND deleted_at IS NULL", userID, key).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get customer by idempotency key")
	}
	return &customer, nil
}

// Create inserts a new customer inside the push transaction.
func (r *CustomerRepository) Create(tx *gorm.DB, customer *models.Customer) error {
	return tx.Create(customer).Error
}

// Overwrite replaces the stored fields of an existing customer.
func (r *CustomerRepository) Overwrite(tx *gorm.DB, userID, id string, fields map[string]interface{}) error {
	err := tx.Model(&models.Customer{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields).Error
	return errors.Wrap(err, "failed to overwrite customer")
}

// MarkDeleted applies a tombstone and reports the rows touched.
func (r *CustomerRepository) MarkDeleted(tx *gorm.DB, userID, id string, deletedAt, now time.Time) (int64, error) {
	result := tx.Model(&models.Customer{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"deleted_at": deletedAt, "updated_at": now})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to tombstone customer")
	}
	return result.RowsAffected, nil
}

// TransactionRepository provides access to transaction data
type TransactionRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB, readOnlyDB *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpdatedSince returns every transaction row changed after the cursor,
// tombstones included, ordered ascending by updated_at.
func (r *TransactionRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, since).
		Order("updated_at ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan transactions since cursor")
	}
	return transactions, nil
}

// FindActive gets a live transaction by id, or nil if absent.
func (r *TransactionRepository) FindActive(tx *gorm.DB, userID, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, userID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get transaction by id")
	}
	return &txn, nil
}

// FindByIdempotencyKey resolves a retried upload to the row it created
// earlier, or nil when the key is unseen.
func (r *TransactionRepository) FindByIdempotencyKey(tx *gorm.DB, userID, key string) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("user_id = ? AND idempotency_key = ? AND deleted_at IS NULL", userID, key).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get transaction by idempotency key")
	}
	return &txn, nil
}

// FindByVoucher gets the transaction carrying the exact voucher number,
// tombstoned or not. The unique (user_id, voucher_number) index spans
// deleted rows, so a tombstoned transaction still holds its number.
func (r *TransactionRepository) FindByVoucher(ctx context.Context, userID, voucherNumber string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ? AND voucher_number = ?", userID, voucherNumber).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get transaction by voucher number")
	}
	return &txn, nil
}

// Create inserts a new transaction inside the push transaction. Unique
// violations surface as gorm.ErrDuplicatedKey for the voucher retry path.
func (r *TransactionRepository) Create(tx *gorm.DB, txn *models.Transaction) error {
	return tx.Create(txn).Error
}

// Overwrite replaces the stored fields of an existing transaction.
func (r *TransactionRepository) Overwrite(tx *gorm.DB, userID, id string, fields map[string]interface{}) error {
	err := tx.Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields).Error
	return errors.Wrap(err, "failed to overwrite transaction")
}

// MarkDeleted applies a tombstone and reports the rows touched.
func (r *TransactionRepository) MarkDeleted(tx *gorm.DB, userID, id string, deletedAt, now time.Time) (int64, error) {
	result := tx.Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"deleted_at": deletedAt, "updated_at": now})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to tombstone transaction")
	}
	return result.RowsAffected, nil
}

// LastVoucherNumber returns the highest voucher number matching the given
// prefix for the user, or empty when none exists yet. Tombstoned rows are
// included: a deleted transaction keeps its number reserved, because the
// unique (user_id, voucher_number) index spans tombstones and reissuing a
// held number would wedge allocation for the rest of the day. Lexicographic
// order equals numeric order because sequences are zero-padded.
func (r *TransactionRepository) LastVoucherNumber(tx *gorm.DB, userID, prefix string) (string, error) {
	var txn models.Transaction
	err := tx.Where("user_id = ? AND voucher_number LIKE ?", userID, prefix+"%").
		Order("voucher_number DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to find last voucher number")
	}
	if txn.VoucherNumber == nil {
		return "", nil
	}
	return *txn.VoucherNumber, nil
}

// ConfirmVoucher upgrades a provisional voucher to its final number and
// reports the rows touched so the caller can translate zero to not-found.
func (r *TransactionRepository) ConfirmVoucher(ctx context.Context, userID, id, voucherNumber string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"voucher_number":      voucherNumber,
			"provisional_voucher": nil,
			"updated_at":          now,
		})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to confirm voucher")
	}
	return result.RowsAffected, nil
}

// StaleProvisionals lists transactions whose provisional voucher was never
// confirmed before the cutoff. Consumed by the worker's fallback job.
func (r *TransactionRepository) StaleProvisionals(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.readOnlyDB.WithContext(ctx).
		Where("provisional_voucher IS NOT NULL AND deleted_at IS NULL AND updated_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stale provisional vouchers")
	}
	return transactions, nil
}

// SyncMetadataRepository provides access to sync bookkeeping rows
type SyncMetadataRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSyncMetadataRepository creates a new sync metadata repository
func NewSyncMetadataRepository(db *gorm.DB, readOnlyDB *gorm.DB) *SyncMetadataRepository {
	return &SyncMetadataRepository{db: db, readOnlyDB: readOnlyDB}
}

// Upsert bumps (user, entity type) bookkeeping after a committed push.
func (r *SyncMetadataRepository) Upsert(ctx context.Context, userID, entityType string, now time.Time, hadConflict bool) error {
	assignments := map[string]interface{}{
		"last_sync_at": now,
		"sync_count":   gorm.Expr("sync_count + ?", 1),
	}
	if hadConflict {
		assignments["last_conflict_at"] = now
	}

	meta := models.SyncMetadata{
		ID:         uuid.NewString(),
		UserID:     userID,
		EntityType: entityType,
		LastSyncAt: now,
		SyncCount:  1,
	}
	if hadConflict {
		meta.LastConflictAt = &now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "entity_type"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&meta).Error
	return errors.Wrap(err, "failed to upsert sync metadata")
}

// Get reads one bookkeeping row, or nil when the user has never pushed
// that entity type.
func (r *SyncMetadataRepository) Get(ctx context.Context, userID, entityType string) (*models.SyncMetadata, error) {
	var meta models.SyncMetadata
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ? AND entity_type = ?", userID, entityType).
		First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get sync metadata")
	}
	return &meta, nil
}
