package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/gurpos/services/sync/internal/cache"
	"example.com/gurpos/services/sync/internal/metrics"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/repositories"
	"example.com/gurpos/services/sync/internal/search"
	"example.com/gurpos/services/sync/internal/tracing"
)

// SyncService is the sync engine: it serves delta pulls and applies
// batched pushes. A push runs as one database transaction spanning items,
// customers and transactions, including voucher allocation and inventory
// adjustment. Per-item failures become conflict entries in the response;
// only infrastructure failures abort the batch.
type SyncService struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB

	items        *repositories.ItemRepository
	customers    *repositories.CustomerRepository
	transactions *repositories.TransactionRepository
	syncMeta     *repositories.SyncMetadataRepository

	vouchers *VoucherService
	cache    *cache.RedisCache
	elastic  *search.ElasticClient
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
}

// NewSyncService creates a new sync service
func NewSyncService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	vouchers *VoucherService,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *SyncService {
	return &SyncService{
		db:           db,
		readOnlyDB:   readOnlyDB,
		items:        repositories.NewItemRepository(db, readOnlyDB),
		customers:    repositories.NewCustomerRepository(db, readOnlyDB),
		transactions: repositories.NewTransactionRepository(db, readOnlyDB),
		syncMeta:     repositories.NewSyncMetadataRepository(db, readOnlyDB),
		vouchers:     vouchers,
		cache:        redisCache,
		elastic:      elasticClient,
		metrics:      metricsCollector,
		tracer:       tracer,
	}
}

// Pull returns every record of the caller changed after the cursor,
// tombstones included, ordered ascending by updated_at, plus the server
// timestamp the client must use as its next cursor. A row updated
// concurrently with the read may land in this pull or the next one;
// clients rely on idempotent full-state overwrite, so either is fine.
func (s *SyncService) Pull(ctx context.Context, userID string, since *time.Time) (*models.PullResult, error) {
	txn := s.tracer.StartTransaction("sync-pull")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "user_id", userID)

	cursor := time.Unix(0, 0).UTC()
	if since != nil {
		cursor = *since
	}

	// Captured before the scans: a row committed while we read would
	// otherwise fall between this timestamp and the data, and a client
	// resuming from it would never see that row.
	serverTimestamp := time.Now().UTC()

	items, err := s.items.UpdatedSince(ctx, userID, cursor)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	customers, err := s.customers.UpdatedSince(ctx, userID, cursor)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	transactions, err := s.transactions.UpdatedSince(ctx, userID, cursor)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrementCounter("sync.pull.requests")

	if items == nil {
		items = []models.Item{}
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	return &models.PullResult{
		Items:           items,
		Customers:       customers,
		Transactions:    transactions,
		ServerTimestamp: serverTimestamp,
	}, nil
}

// Push applies a batch of local changes in one atomic commit: items first,
// then customers, then transactions, because transaction line items
// reference item ids. Returns per-entity outcomes even on full success.
func (s *SyncService) Push(ctx context.Context, userID string, req *models.PushRequest) (*models.PushResult, error) {
	txn := s.tracer.StartTransaction("sync-push")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "user_id", userID)

	start := time.Now()
	results := models.NewPushResult()
	var indexable []models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.pushItems(ctx, tx, userID, req.Items, &results.Items); err != nil {
			return err
		}
		if err := s.pushCustomers(ctx, tx, userID, req.Customers, &results.Customers); err != nil {
			return err
		}
		created, err := s.pushTransactions(ctx, tx, userID, req.Transactions, &results.Transactions)
		if err != nil {
			return err
		}
		indexable = created
		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("sync.push")
		return nil, errors.Wrap(err, "push transaction failed")
	}

	now := time.Now().UTC()
	s.recordSyncMetadata(ctx, userID, req, results, now)
	s.indexTransactions(ctx, indexable)

	s.metrics.RecordSuccess("sync.push")
	s.metrics.IncrementCounter("sync.push.requests")
	s.metrics.IncrementCounterBy("sync.push.synced", int64(len(results.Items.Synced)+len(results.Customers.Synced)+len(results.Transactions.Synced)))
	s.metrics.IncrementCounterBy("sync.push.conflicts", int64(len(results.Items.Conflicts)+len(results.Customers.Conflicts)+len(results.Transactions.Conflicts)))
	s.metrics.RecordTimer("sync.push.duration_ms", time.Since(start).Milliseconds())

	results.ServerTimestamp = now
	return results, nil
}

// pushItems applies one entity group. Each change runs under a savepoint:
// a failed statement would otherwise poison the surrounding transaction,
// and per-item errors must not take the batch down with them.
func (s *SyncService) pushItems(ctx context.Context, tx *gorm.DB, userID string, changes []models.ItemChange, results *models.EntityResults) error {
	for i := range changes {
		change := &changes[i]

		sp := fmt.Sprintf("sp_item_%d", i)
		if err := tx.SavePoint(sp).Error; err != nil {
			return errors.Wrap(err, "failed to create savepoint")
		}

		synced, conflict, err := s.applyItem(tx, userID, change)
		if err != nil {
			if isFatal(err) {
				return err
			}
			if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
				return errors.Wrap(rbErr, "failed to roll back savepoint")
			}
			log.Error().Err(err).Str("item_id", change.ID).Msg("Item sync error")
			results.Conflicts = append(results.Conflicts, models.Conflict{ID: change.ID, Error: err.Error()})
			continue
		}
		if conflict != nil {
			results.Conflicts = append(results.Conflicts, *conflict)
			continue
		}
		results.Synced = append(results.Synced, *synced)
	}
	return nil
}

func (s *SyncService) pushCustomers(ctx context.Context, tx *gorm.DB, userID string, changes []models.CustomerChange, results *models.EntityResults) error {
	for i := range changes {
		change := &changes[i]

		sp := fmt.Sprintf("sp_customer_%d", i)
		if err := tx.SavePoint(sp).Error; err != nil {
			return errors.Wrap(err, "failed to create savepoint")
		}

		synced, conflict, err := s.applyCustomer(tx, userID, change)
		if err != nil {
			if isFatal(err) {
				return err
			}
			if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
				return errors.Wrap(rbErr, "failed to roll back savepoint")
			}
			log.Error().Err(err).Str("customer_id", change.ID).Msg("Customer sync error")
			results.Conflicts = append(results.Conflicts, models.Conflict{ID: change.ID, Error: err.Error()})
			continue
		}
		if conflict != nil {
			results.Conflicts = append(results.Conflicts, *conflict)
			continue
		}
		results.Synced = append(results.Synced, *synced)
	}
	return nil
}

func (s *SyncService) pushTransactions(ctx context.Context, tx *gorm.DB, userID string, changes []models.TransactionChange, results *models.EntityResults) ([]models.Transaction, error) {
	var created []models.Transaction
	for i := range changes {
		change := &changes[i]

		sp := fmt.Sprintf("sp_transaction_%d", i)
		if err := tx.SavePoint(sp).Error; err != nil {
			return nil, errors.Wrap(err, "failed to create savepoint")
		}

		synced, conflict, createdTxn, err := s.applyTransaction(ctx, tx, userID, change)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
				return nil, errors.Wrap(rbErr, "failed to roll back savepoint")
			}
			log.Error().Err(err).Str("transaction_id", change.ID).Msg("Transaction sync error")
			results.Conflicts = append(results.Conflicts, models.Conflict{ID: change.ID, Error: err.Error()})
			continue
		}
		if conflict != nil {
			results.Conflicts = append(results.Conflicts, *conflict)
			continue
		}
		results.Synced = append(results.Synced, *synced)
		if createdTxn != nil {
			created = append(created, *createdTxn)
		}
	}
	return created, nil
}

// applyItem resolves one item change: tombstone, then idempotency ledger,
// then id match with last-write-wins.
func (s *SyncService) applyItem(tx *gorm.DB, userID string, in *models.ItemChange) (*models.SyncedRecord, *models.Conflict, error) {
	now := time.Now().UTC()

	if in.DeletedAt != nil {
		// Deletion wins over anything in flight; a delete of a record the
		// server never saw is still reported synced.
		if _, err := s.items.MarkDeleted(tx, userID, in.ID, *in.DeletedAt, now); err != nil {
			return nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: in.ID, Action: models.ActionDeleted}, nil, nil
	}

	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		existing, err := s.items.FindByIdempotencyKey(tx, userID, *in.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			return &models.SyncedRecord{ID: in.ID, CloudID: existing.ID}, nil, nil
		}
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	existing, err := s.items.FindActive(tx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	clientUpdated := timestampOr(in.UpdatedAt, now)

	if existing != nil {
		if resolveWrite(existing.UpdatedAt, clientUpdated) == ResolutionReject {
			server := existing.UpdatedAt
			return nil, &models.Conflict{
				ID:              in.ID,
				Reason:          conflictReasonStale,
				ServerUpdatedAt: &server,
				ClientUpdatedAt: &clientUpdated,
			}, nil
		}

		err := s.items.Overwrite(tx, userID, id, map[string]interface{}{
			"name":          in.Name,
			"barcode":       in.Barcode,
			"sku":           in.SKU,
			"price":         in.Price,
			"unit":          stringOr(in.Unit, "piece"),
			"inventory_qty": in.InventoryQty,
			"category":      in.Category,
			"recommended":   in.Recommended,
			"image_path":    firstNonNil(in.ImagePath, in.ImageURL),
			"updated_at":    clientUpdated,
			"deleted_at":    nil,
		})
		if err != nil {
			return nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionUpdated}, nil, nil
	}

	if in.Name == "" {
		return nil, nil, errors.Wrap(ErrValidation, "item name is required")
	}

	item := &models.Item{
		ID:             id,
		UserID:         userID,
		Name:           in.Name,
		Barcode:        in.Barcode,
		SKU:            in.SKU,
		Price:          in.Price,
		Unit:           stringOr(in.Unit, "piece"),
		InventoryQty:   in.InventoryQty,
		Category:       in.Category,
		Recommended:    in.Recommended,
		ImagePath:      firstNonNil(in.ImagePath, in.ImageURL),
		IdempotencyKey: keyOr(in.IdempotencyKey, "item-"+id),
		CreatedAt:      timestampOr(in.CreatedAt, now),
		UpdatedAt:      clientUpdated,
	}
	if err := s.items.Create(tx, item); err != nil {
		return nil, nil, err
	}
	return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionCreated}, nil, nil
}

func (s *SyncService) applyCustomer(tx *gorm.DB, userID string, in *models.CustomerChange) (*models.SyncedRecord, *models.Conflict, error) {
	now := time.Now().UTC()

	if in.DeletedAt != nil {
		if _, err := s.customers.MarkDeleted(tx, userID, in.ID, *in.DeletedAt, now); err != nil {
			return nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: in.ID, Action: models.ActionDeleted}, nil, nil
	}

	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		existing, err := s.customers.FindByIdempotencyKey(tx, userID, *in.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			return &models.SyncedRecord{ID: in.ID, CloudID: existing.ID}, nil, nil
		}
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	existing, err := s.customers.FindActive(tx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	clientUpdated := timestampOr(in.UpdatedAt, now)

	if existing != nil {
		if resolveWrite(existing.UpdatedAt, clientUpdated) == ResolutionReject {
			server := existing.UpdatedAt
			return nil, &models.Conflict{
				ID:              in.ID,
				Reason:          conflictReasonStale,
				ServerUpdatedAt: &server,
				ClientUpdatedAt: &clientUpdated,
			}, nil
		}

		err := s.customers.Overwrite(tx, userID, id, map[string]interface{}{
			"name":       in.Name,
			"phone":      in.Phone,
			"email":      in.Email,
			"address":    in.Address,
			"updated_at": clientUpdated,
			"deleted_at": nil,
		})
		if err != nil {
			return nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionUpdated}, nil, nil
	}

	if in.Name == "" {
		return nil, nil, errors.Wrap(ErrValidation, "customer name is required")
	}

	customer := &models.Customer{
		ID:             id,
		UserID:         userID,
		Name:           in.Name,
		Phone:          in.Phone,
		Email:          in.Email,
		Address:        in.Address,
		IdempotencyKey: keyOr(in.IdempotencyKey, "customer-"+id),
		CreatedAt:      timestampOr(in.CreatedAt, now),
		UpdatedAt:      clientUpdated,
	}
	if err := s.customers.Create(tx, customer); err != nil {
		return nil, nil, err
	}
	return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionCreated}, nil, nil
}

// applyTransaction is the widest path: besides the usual tombstone,
// idempotency and LWW steps, a create may allocate a voucher number and
// decrement inventory for sold lines, all inside the same transaction
// scope. The fourth return value is the created row when the change
// produced one, for post-commit indexing.
func (s *SyncService) applyTransaction(ctx context.Context, tx *gorm.DB, userID string, in *models.TransactionChange) (*models.SyncedRecord, *models.Conflict, *models.Transaction, error) {
	now := time.Now().UTC()

	if in.DeletedAt != nil {
		if _, err := s.transactions.MarkDeleted(tx, userID, in.ID, *in.DeletedAt, now); err != nil {
			return nil, nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: in.ID, Action: models.ActionDeleted}, nil, nil, nil
	}

	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		existing, err := s.transactions.FindByIdempotencyKey(tx, userID, *in.IdempotencyKey)
		if err != nil {
			return nil, nil, nil, err
		}
		if existing != nil {
			// Replay: hand back the voucher assigned the first time so the
			// client can retire its provisional number.
			return &models.SyncedRecord{ID: in.ID, CloudID: existing.ID, VoucherNumber: existing.VoucherNumber}, nil, nil, nil
		}
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	existing, err := s.transactions.FindActive(tx, userID, id)
	if err != nil {
		return nil, nil, nil, err
	}

	clientUpdated := timestampOr(in.UpdatedAt, now)

	if existing != nil {
		if resolveWrite(existing.UpdatedAt, clientUpdated) == ResolutionReject {
			server := existing.UpdatedAt
			return nil, &models.Conflict{
				ID:              in.ID,
				Reason:          conflictReasonStale,
				ServerUpdatedAt: &server,
				ClientUpdatedAt: &clientUpdated,
			}, nil, nil
		}

		// The voucher already assigned server-side is sticky: an update
		// can never blank it out.
		voucher := existing.VoucherNumber
		if in.VoucherNumber != nil && *in.VoucherNumber != "" {
			voucher = in.VoucherNumber
		}

		lines := in.Lines
		if lines == nil {
			lines = []models.LineItem{}
		}
		linesJSON, err := json.Marshal(lines)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "failed to marshal line items")
		}

		err = s.transactions.Overwrite(tx, userID, id, map[string]interface{}{
			"customer_id":         in.CustomerID,
			"voucher_number":      voucher,
			"provisional_voucher": in.ProvisionalVoucher,
			"date":                timestampOr(in.Date, existing.Date),
			"subtotal":            in.Subtotal,
			"tax":                 in.Tax,
			"discount":            in.Discount,
			"other_charges":       in.OtherCharges,
			"grand_total":         in.GrandTotal,
			"item_count":          in.ItemCount,
			"unit_count":          in.UnitCount,
			"payment_type":        stringOr(in.PaymentType, "cash"),
			"status":              stringOr(in.Status, models.TransactionStatusCompleted),
			"receipt_path":        firstNonNil(in.ReceiptPath, in.ReceiptFilePath),
			"line_items":          string(linesJSON),
			"updated_at":          clientUpdated,
			"deleted_at":          nil,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionUpdated, VoucherNumber: voucher}, nil, nil, nil
	}

	txn := &models.Transaction{
		ID:                 id,
		UserID:             userID,
		CustomerID:         in.CustomerID,
		VoucherNumber:      in.VoucherNumber,
		ProvisionalVoucher: in.ProvisionalVoucher,
		Date:               timestampOr(in.Date, now),
		Subtotal:           in.Subtotal,
		Tax:                in.Tax,
		Discount:           in.Discount,
		OtherCharges:       in.OtherCharges,
		GrandTotal:         in.GrandTotal,
		ItemCount:          in.ItemCount,
		UnitCount:          in.UnitCount,
		PaymentType:        stringOr(in.PaymentType, "cash"),
		Status:             stringOr(in.Status, models.TransactionStatusCompleted),
		ReceiptPath:        firstNonNil(in.ReceiptPath, in.ReceiptFilePath),
		IdempotencyKey:     keyOr(in.IdempotencyKey, "transaction-"+id),
		LineItems:          in.Lines,
		CreatedAt:          timestampOr(in.CreatedAt, now),
		UpdatedAt:          clientUpdated,
	}
	if txn.LineItems == nil {
		txn.LineItems = []models.LineItem{}
	}

	needsVoucher := txn.VoucherNumber == nil || *txn.VoucherNumber == "" ||
		(in.ProvisionalVoucher != nil && *in.ProvisionalVoucher != "")
	if needsVoucher {
		if err := s.vouchers.AssignAndCreate(ctx, tx, userID, txn); err != nil {
			return nil, nil, nil, err
		}
	} else {
		if err := s.transactions.Create(tx, txn); err != nil {
			return nil, nil, nil, err
		}
	}

	// Inventory moves only when a sale is first recorded, never on update
	// or replay; stock may go negative.
	if txn.Status == models.TransactionStatusCompleted {
		for _, line := range txn.LineItems {
			if line.ItemID == nil || *line.ItemID == "" {
				continue
			}
			if err := s.items.DecrementInventory(tx, userID, *line.ItemID, line.Quantity, now); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	return &models.SyncedRecord{ID: in.ID, CloudID: id, Action: models.ActionCreated, VoucherNumber: txn.VoucherNumber}, nil, txn, nil
}

// recordSyncMetadata bumps per-entity bookkeeping for each group present
// in the request. Best-effort: a failure here is logged, never surfaced.
func (s *SyncService) recordSyncMetadata(ctx context.Context, userID string, req *models.PushRequest, results *models.PushResult, now time.Time) {
	groups := []struct {
		entityType string
		present    bool
		conflicts  int
	}{
		{models.EntityItems, req.Items != nil, len(results.Items.Conflicts)},
		{models.EntityCustomers, req.Customers != nil, len(results.Customers.Conflicts)},
		{models.EntityTransactions, req.Transactions != nil, len(results.Transactions.Conflicts)},
	}
	for _, g := range groups {
		if !g.present {
			continue
		}
		if err := s.syncMeta.Upsert(ctx, userID, g.entityType, now, g.conflicts > 0); err != nil {
			log.Warn().Err(err).
				Str("user_id", userID).
				Str("entity_type", g.entityType).
				Msg("Failed to update sync metadata")
		}
	}
}

// indexTransactions pushes freshly created transactions to the search
// index after commit. Best-effort: search lags rather than failing a push.
func (s *SyncService) indexTransactions(ctx context.Context, created []models.Transaction) {
	if s.elastic == nil || len(created) == 0 {
		return
	}
	for i := range created {
		if err := s.elastic.IndexTransaction(ctx, &created[i]); err != nil {
			log.Warn().Err(err).
				Str("transaction_id", created[i].ID).
				Msg("Failed to index transaction")
		}
	}
}

// Status returns the per-entity sync bookkeeping for a user. Entities the
// user has never pushed have no row and are omitted.
func (s *SyncService) Status(ctx context.Context, userID string) ([]models.SyncMetadata, error) {
	entityTypes := []string{models.EntityItems, models.EntityCustomers, models.EntityTransactions}

	status := make([]models.SyncMetadata, 0, len(entityTypes))
	for _, entityType := range entityTypes {
		meta, err := s.syncMeta.Get(ctx, userID, entityType)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			continue
		}
		status = append(status, *meta)
	}
	return status, nil
}

// SearchTransactions runs a full-text search over the caller's indexed
// transactions. Returns ErrUnavailable when the deployment runs without
// Elasticsearch.
func (s *SyncService) SearchTransactions(ctx context.Context, userID, term string) ([]map[string]interface{}, error) {
	if s.elastic == nil {
		return nil, errors.Wrap(ErrUnavailable, "search backend not configured")
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{
						"multi_match": map[string]interface{}{
							"query":  term,
							"fields": []string{"item_names", "voucher_number", "payment_type", "status"},
						},
					},
				},
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"user_id": userID}},
				},
			},
		},
	}

	return s.elastic.SearchTransactions(ctx, query)
}

// PushMessage is the queued form of a push: devices on flaky links enqueue
// batches instead of holding an HTTP connection open.
type PushMessage struct {
	UserID string             `json:"user_id"`
	Batch  models.PushRequest `json:"batch"`
}

// ProcessPushMessage applies one queued push batch from the service bus.
func (s *SyncService) ProcessPushMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var msg PushMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal push message")
	}
	if msg.UserID == "" {
		return errors.Wrap(ErrValidation, "push message missing user_id")
	}

	result, err := s.Push(ctx, msg.UserID, &msg.Batch)
	if err != nil {
		return errors.Wrap(err, "failed to apply queued push batch")
	}

	log.Info().
		Str("user_id", msg.UserID).
		Int("synced", len(result.Items.Synced)+len(result.Customers.Synced)+len(result.Transactions.Synced)).
		Int("conflicts", len(result.Items.Conflicts)+len(result.Customers.Conflicts)+len(result.Transactions.Conflicts)).
		Msg("Queued push batch applied")
	return nil
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func keyOr(key *string, fallback string) *string {
	if key != nil && *key != "" {
		return key
	}
	return &fallback
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
