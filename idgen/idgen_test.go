package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7_ValidAndUnique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("invalid UUID %q: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("req_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("missing prefix: %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "req_")); err != nil {
		t.Errorf("suffix not a UUID: %q", id)
	}
}
