// Package authn verifies the caller's identity token — step 1 of the
// admission layer's six-step sequence (spec §4.1: "auth -> validate ->
// kill-switch -> role -> dispatch -> translate"). Grounded on the teacher's
// internal/infra/firebase.go NewFirebaseVerifier/TokenVerifier, which wraps
// firebase.google.com/go/v4/auth the same way: verify an ID token, hand back
// the subject.
package authn

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"ark/internal/apperr"
	"ark/internal/types"
)

// Caller is the verified identity of an authenticated request.
type Caller struct {
	UserID types.ID
}

// Verifier verifies a bearer token and extracts the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Caller, error)
}

// FirebaseVerifier verifies tokens against Firebase Auth, adapted directly
// from the teacher's infra.firebaseVerifier.
type FirebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier wraps an already-initialized Firebase auth client.
// Construction of that client (service-account credentials, project id) is
// the caller's concern, mirroring the teacher's infra.NewFirebaseVerifier.
func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify checks idToken's signature and expiry and returns the caller it
// names. Any failure becomes apperr.Unauthenticated (spec §4.1 step 1) —
// the admission layer never distinguishes expired vs malformed vs revoked to
// the client.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Caller, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Caller{}, apperr.New(apperr.Unauthenticated, "invalid or expired credential")
	}
	return Caller{UserID: types.ID(token.UID)}, nil
}
