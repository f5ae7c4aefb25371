package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedSentinel(t *testing.T) {
	errTierMissing := New(NotFound, "tier_not_found")
	wrapped := fmt.Errorf("resolve plan STARTER: %w", errTierMissing)

	if got := KindOf(wrapped); got != NotFound {
		t.Fatalf("expected %s, got %s", NotFound, got)
	}
	if !errors.Is(wrapped, errTierMissing) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if CodeOf(wrapped) != "tier_not_found" {
		t.Fatalf("unexpected code %q", CodeOf(wrapped))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %s", got)
	}
}
