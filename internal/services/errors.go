package services

import (
	"context"
	"database/sql"
	"net"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to the API layer. Handlers translate them with
// errors.Is; everything else maps to an internal error response.
var (
	// ErrNotFound marks operations targeting a record that does not exist
	// or is not owned by the caller.
	ErrNotFound = errors.New("record not found")

	// ErrConflict marks a business-level collision, such as generating a
	// voucher number that is already taken.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks a malformed request rejected before any storage
	// work.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable marks an operation that depends on an optional
	// backend the deployment is running without.
	ErrUnavailable = errors.New("service unavailable")
)

// isFatal separates infrastructure failures from per-item errors inside a
// push. Fatal errors abort the whole transaction scope; anything else is
// recorded as a per-item conflict and the batch continues.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}
	if errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, gorm.ErrInvalidDB) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
