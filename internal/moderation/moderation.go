// Package moderation classifies free-text rating comments for submitRating
// (SPEC_FULL §C.1) using the Gemini API. Grounded on the teacher's
// internal/ai.GeminiProvider client setup (genai.NewClient,
// GenerativeModel, ResponseMIMEType="application/json" for structured
// output) — the prompt itself is new, since the teacher's provider builds a
// ride-booking intent parser, a different job than flagging an abusive
// comment.
//
// Moderation is fail-open: any classifier error lets the comment through
// unflagged rather than blocking submitRating, since it is a quality signal
// for manager review, not a correctness gate.
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Classifier flags abusive or inappropriate rating comments.
type Classifier interface {
	// Classify reports whether comment should be flagged for manager
	// review. ok=false means classification could not be completed and the
	// caller should treat the comment as unflagged.
	Classify(ctx context.Context, comment string) (flagged bool, ok bool)
}

// GeminiClassifier is the production Classifier.
type GeminiClassifier struct {
	model *genai.GenerativeModel
}

// NewGeminiClassifier wraps a Gemini client configured for structured JSON
// output, mirroring the teacher's GeminiProvider construction.
func NewGeminiClassifier(ctx context.Context, apiKey string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("moderation: creating gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)
	return &GeminiClassifier{model: model}, nil
}

type classification struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason"`
}

const prompt = `You moderate passenger-written ratings of taxi drivers for a ride-hailing platform.
Given the comment below, decide whether it contains harassment, hate speech, threats, or content unrelated to the ride that should be flagged for manager review.
Respond with JSON only: {"flagged": true|false, "reason": "<short reason>"}.

Comment: %s`

// Classify implements Classifier.
func (c *GeminiClassifier) Classify(ctx context.Context, comment string) (bool, bool) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(prompt, comment)))
	if err != nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return false, false
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var result classification
	if err := json.Unmarshal([]byte(text.String()), &result); err != nil {
		return false, false
	}
	return result.Flagged, true
}
