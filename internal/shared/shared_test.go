package shared

import (
	"strings"
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	t.Run("Length And Alphabet", func(t *testing.T) {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(id) != SessionIDLength {
			t.Errorf("expected %d characters, got %d", SessionIDLength, len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune(sessionIDAlphabet, r) {
				t.Errorf("unexpected character %q in session id", r)
			}
		}
	})

	t.Run("Unique", func(t *testing.T) {
		seen := map[string]bool{}
		for range 100 {
			id, err := GenerateSessionID()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if seen[id] {
				t.Fatalf("duplicate session id %s", id)
			}
			seen[id] = true
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a == b {
		t.Error("expected distinct state tokens")
	}
	if a == "" {
		t.Error("expected non-empty state token")
	}
}
