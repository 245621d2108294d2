package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewCarriesPrefixAndIsUnique(t *testing.T) {
	a := New("rcp")
	b := New("rcp")
	rest, ok := strings.CutPrefix(a, "rcp-")
	if !ok {
		t.Fatalf("expected rcp- prefix, got %s", a)
	}
	if _, err := uuid.Parse(rest); err != nil {
		t.Fatalf("expected uuid suffix, got %s: %v", rest, err)
	}
	if a == b {
		t.Fatalf("expected unique ids, got %s twice", a)
	}
}
