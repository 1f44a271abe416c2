package pipeline

import (
	"context"
	"testing"
)

func TestTokenCancelInvalidatesBeforeContext(t *testing.T) {
	tok := NewToken(context.Background())

	if tok.Invalidated() {
		t.Fatal("fresh token must not be invalidated")
	}
	if tok.Context().Err() != nil {
		t.Fatal("fresh token context must be live")
	}

	tok.Cancel()

	if !tok.Invalidated() {
		t.Error("cancelled token must report invalidated")
	}
	if tok.Context().Err() == nil {
		t.Error("cancelled token context must be done")
	}
}

func TestTokenParentCancellationDoesNotInvalidate(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tok := NewToken(parent)

	cancel()

	// The context dies with the parent, but only an explicit Cancel marks the
	// token superseded.
	if tok.Context().Err() == nil {
		t.Error("token context must follow parent cancellation")
	}
	if tok.Invalidated() {
		t.Error("parent cancellation must not invalidate the token")
	}
}
