package agent

import (
	"strings"

	"github.com/ashureev/truthguard/internal/domain"
)

const (
	confidenceMarker = "confidence: 1.0"
	highConfidence   = 1.0
	baseConfidence   = 0.5
)

var verifiedMarkers = []string{"legitimate", "verdict: true"}

// Classify derives a verdict and confidence from the agent's final text.
// It is a case-insensitive substring heuristic over free text and will
// misfire on phrasings like "not legitimate".
func Classify(raw string) (domain.Verdict, float64) {
	text := strings.ToLower(raw)

	confidence := baseConfidence
	if strings.Contains(text, confidenceMarker) {
		confidence = highConfidence
	}

	for _, marker := range verifiedMarkers {
		if strings.Contains(text, marker) {
			return domain.VerdictVerified, confidence
		}
	}
	return domain.VerdictUnverified, confidence
}
