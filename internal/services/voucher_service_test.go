package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/models"
)

func newTestVoucherService(t *testing.T, db *gorm.DB) *VoucherService {
	t.Helper()
	return NewVoucherService(db, db, nil, config.VoucherConfig{})
}

func TestNextSequence(t *testing.T) {
	require.Equal(t, 1, nextSequence(""))
	require.Equal(t, 2, nextSequence("GUR-20260820-0001"))
	require.Equal(t, 100, nextSequence("GUR-20260820-0099"))
	require.Equal(t, 10000, nextSequence("GUR-20260820-9999"))
	require.Equal(t, 1, nextSequence("garbage"))
}

func TestFormatVoucher(t *testing.T) {
	require.Equal(t, "GUR-20260820-0001", formatVoucher("GUR", "20260820", 1))
	require.Equal(t, "ABC-20260820-0042", formatVoucher("ABC", "20260820", 42))
	// Sequences past four digits widen instead of wrapping.
	require.Equal(t, "GUR-20260820-10000", formatVoucher("GUR", "20260820", 10000))
}

func TestDeriveCompanyCode(t *testing.T) {
	require.Equal(t, "GUR", deriveCompanyCode(nil, "GUR"))
	require.Equal(t, "GUR", deriveCompanyCode(strPtr("   "), "GUR"))
	require.Equal(t, "ACM", deriveCompanyCode(strPtr("Acme Traders"), "GUR"))
	require.Equal(t, "AB", deriveCompanyCode(strPtr("ab"), "GUR"))
}

func TestCompanyCodeFromUserProfile(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{ID: "user-1", Company: strPtr("Acme Traders")}).Error)

	require.Equal(t, "ACM", service.CompanyCode(ctx, db, "user-1"))
	require.Equal(t, "GUR", service.CompanyCode(ctx, db, "unknown-user"))
}

func TestConfirmVoucherNotFound(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)

	err := service.Confirm(context.Background(), "user-1", "missing-tx", "GUR-20260820-0001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmVoucherClearsProvisional(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Transaction{
		ID:                 "tx-1",
		UserID:             "user-1",
		ProvisionalVoucher: strPtr("PROV-1"),
		Date:               time.Now().UTC(),
		LineItems:          []models.LineItem{},
	}).Error)

	require.NoError(t, service.Confirm(ctx, "user-1", "tx-1", "GUR-20260820-0007"))

	var txn models.Transaction
	require.NoError(t, db.First(&txn, "id = ?", "tx-1").Error)
	require.Equal(t, "GUR-20260820-0007", *txn.VoucherNumber)
	require.Nil(t, txn.ProvisionalVoucher)
}

func TestConfirmIsScopedToUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)

	require.NoError(t, db.Create(&models.Transaction{
		ID:        "tx-1",
		UserID:    "user-1",
		Date:      time.Now().UTC(),
		LineItems: []models.LineItem{},
	}).Error)

	err := service.Confirm(context.Background(), "user-2", "tx-1", "GUR-20260820-0001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateConflictsOnTakenNumber(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	number, err := service.Generate(ctx, "user-1", "GUR", "20260820", "0001")
	require.NoError(t, err)
	require.Equal(t, "GUR-20260820-0001", number)

	require.NoError(t, db.Create(&models.Transaction{
		ID:            "tx-1",
		UserID:        "user-1",
		VoucherNumber: strPtr("GUR-20260820-0001"),
		Date:          time.Now().UTC(),
		LineItems:     []models.LineItem{},
	}).Error)

	_, err = service.Generate(ctx, "user-1", "GUR", "20260820", "0001")
	require.ErrorIs(t, err, ErrConflict)

	// The same number is free for a different user.
	_, err = service.Generate(ctx, "user-2", "GUR", "20260820", "0001")
	require.NoError(t, err)
}

func TestInitDaily(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	prefix, next, err := service.InitDaily(ctx, "user-1", "GUR", "20260820")
	require.NoError(t, err)
	require.Equal(t, "GUR-20260820", prefix)
	require.Equal(t, 1, next)

	require.NoError(t, db.Create(&models.Transaction{
		ID:            "tx-1",
		UserID:        "user-1",
		VoucherNumber: strPtr("GUR-20260820-0004"),
		Date:          time.Now().UTC(),
		LineItems:     []models.LineItem{},
	}).Error)

	_, next, err = service.InitDaily(ctx, "user-1", "GUR", "20260820")
	require.NoError(t, err)
	require.Equal(t, 5, next)
}

func TestAssignAndCreateSkipsTombstonedVoucher(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	// A deleted transaction keeps its number reserved by the unique
	// (user_id, voucher_number) index, so allocation must step past it
	// instead of retrying the same number forever.
	deletedAt := time.Now().UTC()
	require.NoError(t, db.Create(&models.Transaction{
		ID:            "tx-gone",
		UserID:        "user-1",
		VoucherNumber: strPtr("GUR-20260820-0001"),
		Date:          time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		DeletedAt:     &deletedAt,
		LineItems:     []models.LineItem{},
	}).Error)

	txn := &models.Transaction{
		ID:        "tx-next",
		UserID:    "user-1",
		Date:      time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC),
		LineItems: []models.LineItem{},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return service.AssignAndCreate(ctx, tx, "user-1", txn)
	}))
	require.Equal(t, "GUR-20260820-0002", *txn.VoucherNumber)
}

func TestAssignAndCreateRetriesPastCollision(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	// The highest voucher by string order is 9999 while 10000 also exists,
	// so the first derived number collides and the retry path has to
	// advance the sequence to 10001.
	for _, seed := range []struct{ id, number string }{
		{"tx-9999", "GUR-20260820-9999"},
		{"tx-10000", "GUR-20260820-10000"},
	} {
		require.NoError(t, db.Create(&models.Transaction{
			ID:            seed.id,
			UserID:        "user-1",
			VoucherNumber: strPtr(seed.number),
			Date:          time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
			LineItems:     []models.LineItem{},
		}).Error)
	}

	txn := &models.Transaction{
		ID:        "tx-next",
		UserID:    "user-1",
		Date:      time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC),
		LineItems: []models.LineItem{},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return service.AssignAndCreate(ctx, tx, "user-1", txn)
	}))
	require.Equal(t, "GUR-20260820-10001", *txn.VoucherNumber)
}

func TestGenerateConflictsOnTombstonedVoucher(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	deletedAt := time.Now().UTC()
	require.NoError(t, db.Create(&models.Transaction{
		ID:            "tx-gone",
		UserID:        "user-1",
		VoucherNumber: strPtr("GUR-20260820-0001"),
		Date:          time.Now().UTC(),
		DeletedAt:     &deletedAt,
		LineItems:     []models.LineItem{},
	}).Error)

	_, err := service.Generate(ctx, "user-1", "GUR", "20260820", "0001")
	require.ErrorIs(t, err, ErrConflict)
}

func TestFinalizeStaleProvisionals(t *testing.T) {
	db := newTestDB(t)
	service := newTestVoucherService(t, db)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()

	require.NoError(t, db.Create(&models.Transaction{
		ID:                 "tx-stale",
		UserID:             "user-1",
		ProvisionalVoucher: strPtr("PROV-1"),
		Date:               time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          stale,
		LineItems:          []models.LineItem{},
	}).Error)
	require.NoError(t, db.Create(&models.Transaction{
		ID:                 "tx-fresh",
		UserID:             "user-1",
		ProvisionalVoucher: strPtr("PROV-2"),
		Date:               time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          fresh,
		LineItems:          []models.LineItem{},
	}).Error)

	finalized, err := service.FinalizeStaleProvisionals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, finalized)

	var txn models.Transaction
	require.NoError(t, db.First(&txn, "id = ?", "tx-stale").Error)
	require.Equal(t, "GUR-20260820-0001", *txn.VoucherNumber)
	require.Nil(t, txn.ProvisionalVoucher)

	// The recently updated provisional is left alone.
	require.NoError(t, db.First(&txn, "id = ?", "tx-fresh").Error)
	require.Nil(t, txn.VoucherNumber)
	require.NotNil(t, txn.ProvisionalVoucher)
}
