package adscan

import "testing"

// WHAT: the signature set catches quota, rate-limit, credit and key-blocked
// error text, and nothing else.
func TestIsQuotaSignature(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"429 Resource has been exhausted", true},
		{"Quota exceeded for requests", true},
		{"rate limit reached", true},
		{"genai: http 503: overloaded", true},
		{"credit balance too low", true},
		{"API key leaked, access revoked", true},
		{"genai: http 403: forbidden", true},
		{"connection refused", false},
		{"invalid argument", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsQuotaSignature(tt.msg); got != tt.want {
			t.Errorf("IsQuotaSignature(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

// WHAT: Trip is sticky until Reset; TripOnSignature only trips on matching
// text.
// WHY: a tripped flag must suppress every later call in the session, and a
// new session must get a fresh chance.
func TestQuotaTrackerLifecycle(t *testing.T) {
	q := NewQuotaTracker(nil)

	if q.Exhausted() {
		t.Fatal("fresh tracker already exhausted")
	}
	if q.TripOnSignature("connection refused") {
		t.Error("non-quota error tripped the tracker")
	}
	if q.Exhausted() {
		t.Fatal("tracker exhausted after non-quota error")
	}

	if !q.TripOnSignature("quota exceeded") {
		t.Error("quota error did not trip the tracker")
	}
	if !q.Exhausted() {
		t.Fatal("tracker not exhausted after trip")
	}

	// Second trip is a no-op, not an error.
	q.Trip("429 again")
	if !q.Exhausted() {
		t.Fatal("tracker lost its state")
	}

	q.Reset()
	if q.Exhausted() {
		t.Fatal("tracker still exhausted after Reset")
	}
}
