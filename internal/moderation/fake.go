package moderation

import "context"

// NoopClassifier never flags anything — used when no Gemini key is
// configured, so submitRating still works (fail-open by design, not just
// by accident).
type NoopClassifier struct{}

func (NoopClassifier) Classify(ctx context.Context, comment string) (bool, bool) { return false, true }

// FakeClassifier is a test double driven by a static decision.
type FakeClassifier struct {
	Flagged bool
	OK      bool
}

func (f FakeClassifier) Classify(ctx context.Context, comment string) (bool, bool) {
	return f.Flagged, f.OK
}
