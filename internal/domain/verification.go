// Package domain contains core domain types for the TruthGuard gateway.
package domain

// Channel tags the messaging surface a request arrived on.
type Channel string

const (
	// ChannelTelegram is the chat-bot webhook channel.
	ChannelTelegram Channel = "telegram"
	// ChannelWhatsApp is the business-messaging webhook channel.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelExtension is the direct programmatic caller (browser extension, scripts).
	ChannelExtension Channel = "extension"
)

// Verdict is the outcome of a verification.
type Verdict string

const (
	VerdictVerified   Verdict = "verified"
	VerdictUnverified Verdict = "unverified"
)

// Status reports whether the upstream call completed.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// MaxEvidence caps the evidence list attached to a result.
const MaxEvidence = 3

// VerificationRequest is the canonical inbound shape built by channel adapters.
type VerificationRequest struct {
	Text     string            `json:"text" validate:"required"`
	Identity string            `json:"identity" validate:"required"`
	Channel  Channel           `json:"channel" validate:"required,max=64"`
	Links    []string          `json:"links,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Evidence is a single supporting source. Every field is optional.
type Evidence struct {
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	URL     string `json:"url,omitempty"`
}

// VerificationResult is returned to channel adapters. It is built fresh per
// call and never mutated after being handed out.
type VerificationResult struct {
	Status     Status     `json:"status"`
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
	RawText    string     `json:"raw_final,omitempty"`
	Diagnostic string     `json:"error,omitempty"`
}

// ErrorResult builds the degraded result used for every failure path.
func ErrorResult(diagnostic string) VerificationResult {
	return VerificationResult{
		Status:     StatusError,
		Verdict:    VerdictUnverified,
		Confidence: 0,
		Evidence:   []Evidence{},
		Diagnostic: diagnostic,
	}
}

// OK reports whether the result carries an upstream answer.
func (r VerificationResult) OK() bool {
	return r.Status == StatusOK
}

// EvidenceURLs returns the non-empty evidence URLs, capped at MaxEvidence.
func (r VerificationResult) EvidenceURLs() []string {
	var urls []string
	for _, ev := range r.Evidence {
		if len(urls) == MaxEvidence {
			break
		}
		if ev.URL != "" {
			urls = append(urls, ev.URL)
		}
	}
	return urls
}
