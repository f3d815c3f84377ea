package authn

import (
	"context"

	"ark/internal/apperr"
)

// FakeVerifier is a test double for Verifier: tokens are plain user ids, any
// id present in Tokens verifies successfully. Used by internal/core and
// internal/httpapi tests in place of a live Firebase project, the same role
// memstore plays for store.Store.
type FakeVerifier struct {
	Tokens map[string]Caller
}

// NewFakeVerifier returns a FakeVerifier that accepts the given token ->
// caller mappings.
func NewFakeVerifier(tokens map[string]Caller) *FakeVerifier {
	if tokens == nil {
		tokens = map[string]Caller{}
	}
	return &FakeVerifier{Tokens: tokens}
}

func (f *FakeVerifier) Verify(ctx context.Context, idToken string) (Caller, error) {
	caller, ok := f.Tokens[idToken]
	if !ok {
		return Caller{}, apperr.New(apperr.Unauthenticated, "invalid or expired credential")
	}
	return caller, nil
}
