// CLAUDE:SUMMARY Session-scoped sticky quota flag suppressing generative calls after a quota-shaped error.
package adscan

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// quotaSignatures are the lowercase substrings that mark an analysis error as
// a quota, rate-limit, credit or key-blocked condition.
var quotaSignatures = []string{
	"quota", "resource exhausted", "credit", "rate limit",
	"429", "503", "exceeded", "leaked", "403",
}

// IsQuotaSignature reports whether an error message matches the quota
// signature set.
func IsQuotaSignature(msg string) bool {
	low := strings.ToLower(msg)
	for _, sig := range quotaSignatures {
		if strings.Contains(low, sig) {
			return true
		}
	}
	return false
}

// QuotaTracker is a per-session sticky flag. Once tripped, all further
// generative calls in the session are skipped without network I/O. A fresh
// tracker (or Reset) is installed at the start of every search session, so a
// quota topped up between sessions gets a new chance.
type QuotaTracker struct {
	exhausted atomic.Bool
	logger    *slog.Logger
}

// NewQuotaTracker returns a tracker in the available state.
func NewQuotaTracker(logger *slog.Logger) *QuotaTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaTracker{logger: logger}
}

// Exhausted reports whether the session's quota flag has tripped.
func (q *QuotaTracker) Exhausted() bool {
	return q.exhausted.Load()
}

// Trip marks the quota exhausted. The transition is a compare-and-swap so
// only the first trip emits the warning, even under concurrent callers.
func (q *QuotaTracker) Trip(reason string) {
	if q.exhausted.CompareAndSwap(false, true) {
		if strings.Contains(strings.ToLower(reason), "leaked") || strings.Contains(reason, "403") {
			q.logger.Warn("generative API key blocked or revoked", "error", reason)
		} else {
			q.logger.Warn("generative quota exhausted, skipping further analysis this session", "error", reason)
		}
	}
}

// TripOnSignature trips the tracker when msg matches the quota signature set
// and reports whether it matched.
func (q *QuotaTracker) TripOnSignature(msg string) bool {
	if !IsQuotaSignature(msg) {
		return false
	}
	q.Trip(msg)
	return true
}

// Reset returns the tracker to the available state.
func (q *QuotaTracker) Reset() {
	q.exhausted.Store(false)
}
