package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/cache"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/repositories"
)

const (
	voucherDateLayout = "20060102"
	companyCacheTTL   = time.Hour
)

var voucherSeqPattern = regexp.MustCompile(`-(\d+)$`)

// VoucherService allocates and manages the human-readable voucher numbers
// assigned to transactions. Numbers take the form
// {company_code}-{YYYYMMDD}-{sequence:04d}, unique per user, with the
// sequence increasing per (user, company code, day).
type VoucherService struct {
	db           *gorm.DB
	readOnlyDB   *gorm.DB
	users        *repositories.UserRepository
	transactions *repositories.TransactionRepository
	cache        *cache.RedisCache
	cfg          config.VoucherConfig
}

// NewVoucherService creates a new voucher service
func NewVoucherService(db, readOnlyDB *gorm.DB, redisCache *cache.RedisCache, cfg config.VoucherConfig) *VoucherService {
	if cfg.DefaultCompanyCode == "" {
		cfg.DefaultCompanyCode = "GUR"
	}
	if cfg.MaxAllocationAttempts <= 0 {
		cfg.MaxAllocationAttempts = 5
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 100
	}
	if cfg.ProvisionalMaxAge <= 0 {
		cfg.ProvisionalMaxAge = 30 * time.Minute
	}

	return &VoucherService{
		db:           db,
		readOnlyDB:   readOnlyDB,
		users:        repositories.NewUserRepository(db, readOnlyDB),
		transactions: repositories.NewTransactionRepository(db, readOnlyDB),
		cache:        redisCache,
		cfg:          cfg,
	}
}

// CompanyCode resolves the caller's company code: the first three letters
// of the company name, uppercased, falling back to the configured default.
// The lookup is cached; a profile rename takes up to an hour to show in
// new voucher numbers.
func (s *VoucherService) CompanyCode(ctx context.Context, tx *gorm.DB, userID string) string {
	key := cache.UserCompanyKey(userID)

	var cached string
	if err := s.cache.Get(ctx, key, &cached); err == nil && cached != "" {
		return cached
	}

	user, err := s.users.FindByID(tx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to look up user for company code, using default")
		return s.cfg.DefaultCompanyCode
	}

	code := s.cfg.DefaultCompanyCode
	if user != nil {
		code = deriveCompanyCode(user.Company, s.cfg.DefaultCompanyCode)
	}

	if err := s.cache.Set(ctx, key, code, companyCacheTTL); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to cache company code")
	}

	return code
}

// nextSequenceFor derives the next free sequence for the (user, company,
// day) prefix from the highest voucher on record. Read-max-then-insert is
// not atomic under concurrent pushes; callers must pair this with the
// unique (user_id, voucher_number) index and retry on
// gorm.ErrDuplicatedKey.
func (s *VoucherService) nextSequenceFor(tx *gorm.DB, userID, companyCode, dateKey string) (int, error) {
	last, err := s.transactions.LastVoucherNumber(tx, userID, companyCode+"-"+dateKey+"-")
	if err != nil {
		return 0, err
	}
	return nextSequence(last), nil
}

// AssignAndCreate inserts a transaction that still needs a final voucher
// number. Each attempt runs under a savepoint so a duplicate-key rollback
// leaves the surrounding push transaction usable. On collision the next
// attempt advances past the taken sequence rather than re-deriving it:
// re-reading inside the same transaction would keep producing the same
// number forever.
func (s *VoucherService) AssignAndCreate(ctx context.Context, tx *gorm.DB, userID string, txn *models.Transaction) error {
	companyCode := s.CompanyCode(ctx, tx, userID)
	dateKey := txn.Date.Format(voucherDateLayout)

	seq, err := s.nextSequenceFor(tx, userID, companyCode, dateKey)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAllocationAttempts; attempt++ {
		number := formatVoucher(companyCode, dateKey, seq)
		txn.VoucherNumber = &number
		txn.ProvisionalVoucher = nil

		sp := fmt.Sprintf("sp_voucher_%d", attempt)
		if err := tx.SavePoint(sp).Error; err != nil {
			return errors.Wrap(err, "failed to create voucher savepoint")
		}

		err = s.transactions.Create(tx, txn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if err := tx.RollbackTo(sp).Error; err != nil {
			return errors.Wrap(err, "failed to roll back voucher savepoint")
		}

		lastErr = err
		seq++
		log.Warn().
			Str("user_id", userID).
			Str("voucher_number", number).
			Int("attempt", attempt).
			Msg("Voucher number collision, retrying allocation")
	}

	return errors.Wrapf(lastErr, "voucher allocation exhausted after %d attempts", s.cfg.MaxAllocationAttempts)
}

// Confirm upgrades a provisional voucher to its final number on an
// existing transaction. Returns ErrNotFound when the transaction does not
// exist or is not owned by the caller.
func (s *VoucherService) Confirm(ctx context.Context, userID, transactionID, voucherNumber string) error {
	rows, err := s.transactions.ConfirmVoucher(ctx, userID, transactionID, voucherNumber, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(ErrNotFound, "transaction not found")
	}

	log.Info().
		Str("user_id", userID).
		Str("transaction_id", transactionID).
		Str("voucher_number", voucherNumber).
		Msg("Voucher number confirmed")
	return nil
}

// Generate builds a voucher number from client-supplied parts and verifies
// it is still free. Returns ErrConflict when the number is already taken.
func (s *VoucherService) Generate(ctx context.Context, userID, companyCode, date, sequence string) (string, error) {
	voucherNumber := fmt.Sprintf("%s-%s-%s", companyCode, date, sequence)

	existing, err := s.transactions.FindByVoucher(ctx, userID, voucherNumber)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return voucherNumber, errors.Wrap(ErrConflict, "voucher number already exists")
	}

	return voucherNumber, nil
}

// InitDaily previews the next sequence for a (company code, day) pair so a
// client can pre-number offline receipts. The preview is advisory; the
// authoritative number is still assigned at push time.
func (s *VoucherService) InitDaily(ctx context.Context, userID, companyCode, date string) (string, int, error) {
	prefix := companyCode + "-" + date

	last, err := s.transactions.LastVoucherNumber(s.readOnlyDB.WithContext(ctx), userID, prefix+"-")
	if err != nil {
		return "", 0, err
	}

	return prefix, nextSequence(last), nil
}

// FinalizeStaleProvisionals assigns final voucher numbers to transactions
// whose provisional voucher was never confirmed. This is the worker's
// fallback path; each transaction gets its own commit scope so one failure
// does not hold up the rest.
func (s *VoucherService) FinalizeStaleProvisionals(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.ProvisionalMaxAge)

	stale, err := s.transactions.StaleProvisionals(ctx, cutoff, s.cfg.ReconcileBatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	log.Info().Int("count", len(stale)).Msg("Finalizing stale provisional vouchers")

	finalized := 0
	for _, txn := range stale {
		txn := txn
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.finalizeOne(ctx, tx, &txn)
		})
		if err != nil {
			log.Error().Err(err).
				Str("transaction_id", txn.ID).
				Str("user_id", txn.UserID).
				Msg("Failed to finalize provisional voucher")
			continue
		}
		finalized++
	}

	return finalized, nil
}

func (s *VoucherService) finalizeOne(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	companyCode := s.CompanyCode(ctx, tx, txn.UserID)
	dateKey := txn.Date.Format(voucherDateLayout)
	now := time.Now().UTC()

	seq, err := s.nextSequenceFor(tx, txn.UserID, companyCode, dateKey)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAllocationAttempts; attempt++ {
		number := formatVoucher(companyCode, dateKey, seq)

		sp := fmt.Sprintf("sp_finalize_%d", attempt)
		if err := tx.SavePoint(sp).Error; err != nil {
			return errors.Wrap(err, "failed to create finalize savepoint")
		}

		err = s.transactions.Overwrite(tx, txn.UserID, txn.ID, map[string]interface{}{
			"voucher_number":      number,
			"provisional_voucher": nil,
			"updated_at":          now,
		})
		if err == nil {
			log.Info().
				Str("transaction_id", txn.ID).
				Str("voucher_number", number).
				Msg("Provisional voucher finalized")
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if err := tx.RollbackTo(sp).Error; err != nil {
			return errors.Wrap(err, "failed to roll back finalize savepoint")
		}
		lastErr = err
		seq++
	}

	return errors.Wrapf(lastErr, "voucher finalization exhausted after %d attempts", s.cfg.MaxAllocationAttempts)
}

// nextSequence parses the numeric suffix of the highest existing voucher
// and returns the sequence after it, or 1 when there is no usable
// predecessor.
func nextSequence(lastVoucher string) int {
	if m := voucherSeqPattern.FindStringSubmatch(lastVoucher); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n + 1
		}
	}
	return 1
}

// formatVoucher renders the canonical voucher form; the zero-padded
// sequence keeps lexicographic and numeric order aligned.
func formatVoucher(companyCode, dateKey string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", companyCode, dateKey, seq)
}

// deriveCompanyCode takes the first three letters of a company name,
// uppercased, or the fallback when the name is missing or blank.
func deriveCompanyCode(company *string, fallback string) string {
	if company == nil {
		return fallback
	}
	trimmed := strings.TrimSpace(*company)
	if trimmed == "" {
		return fallback
	}
	upper := []rune(strings.ToUpper(trimmed))
	if len(upper) > 3 {
		upper = upper[:3]
	}
	return string(upper)
}
