package services

import "time"

// Resolution is the outcome of comparing an incoming write against the
// stored row.
type Resolution int

const (
	// ResolutionApply means the incoming write wins and replaces the
	// stored record wholesale.
	ResolutionApply Resolution = iota
	// ResolutionReject means the stored record is newer; the change is
	// reported back as a conflict for the client to re-pull and reconcile.
	ResolutionReject
)

// conflictReasonStale is the reason string clients key on to trigger a
// re-pull.
const conflictReasonStale = "Server version is newer"

// resolveWrite applies last-write-wins on updated_at. Ties go to the
// incoming write: a client pushing at exactly the stored timestamp is
// treated as the later writer, which keeps retried pushes deterministic.
func resolveWrite(serverUpdatedAt, clientUpdatedAt time.Time) Resolution {
	if clientUpdatedAt.Before(serverUpdatedAt) {
		return ResolutionReject
	}
	return ResolutionApply
}

// timestampOr returns the client-supplied timestamp, or the fallback when
// the client omitted it.
func timestampOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}
