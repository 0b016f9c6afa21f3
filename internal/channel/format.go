// Package channel holds the outbound messaging clients and the reply
// formatting shared by every channel.
package channel

import (
	"strings"

	"github.com/ashureev/truthguard/internal/domain"
)

const (
	// MaxReplyRunes bounds the agent text quoted in a reply.
	MaxReplyRunes = 3500

	// EmptyReply is sent when the result carries neither text nor sources.
	EmptyReply = "No response content was produced."
)

// Style selects the per-channel reply decoration.
type Style int

const (
	// StylePlain is used by WhatsApp and direct callers.
	StylePlain Style = iota
	// StyleTelegram uses emoji headers and bullet points.
	StyleTelegram
)

// StyleFor returns the reply style for a channel.
func StyleFor(ch domain.Channel) Style {
	if ch == domain.ChannelTelegram {
		return StyleTelegram
	}
	return StylePlain
}

// FormatReply renders a result as a chat message.
func FormatReply(result domain.VerificationResult, style Style) string {
	if !result.OK() {
		if style == StyleTelegram {
			return "❌ Error: " + result.Diagnostic
		}
		return "Error: " + result.Diagnostic
	}

	var lines []string
	if raw := truncateRunes(strings.TrimSpace(result.RawText), MaxReplyRunes); raw != "" {
		lines = append(lines, raw)
	}

	if urls := result.EvidenceURLs(); len(urls) > 0 {
		header, bullet := "Sources:", "- "
		if style == StyleTelegram {
			header, bullet = "🔗 Sources:", "• "
		}
		lines = append(lines, "", header)
		for _, u := range urls {
			lines = append(lines, bullet+u)
		}
	}

	reply := strings.TrimSpace(strings.Join(lines, "\n"))
	if reply == "" {
		return EmptyReply
	}
	return reply
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
