package channel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okResult(raw string, urls ...string) domain.VerificationResult {
	res := domain.VerificationResult{Status: domain.StatusOK, RawText: raw, Evidence: []domain.Evidence{}}
	for _, u := range urls {
		res.Evidence = append(res.Evidence, domain.Evidence{URL: u})
	}
	return res
}

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name  string
		res   domain.VerificationResult
		style Style
		want  string
	}{
		{"plain text only", okResult("  Verdict: false  "), StylePlain, "Verdict: false"},
		{"telegram sources", okResult("Looks fake", "https://a", "https://b"), StyleTelegram, "Looks fake\n\n🔗 Sources:\n• https://a\n• https://b"},
		{"plain sources", okResult("Looks fake", "https://a"), StylePlain, "Looks fake\n\nSources:\n- https://a"},
		{"sources capped at three", okResult("x", "1", "2", "3", "4"), StylePlain, "x\n\nSources:\n- 1\n- 2\n- 3"},
		{"sources without text", okResult("", "https://a"), StylePlain, "Sources:\n- https://a"},
		{"evidence without urls", okResult("", "", ""), StyleTelegram, EmptyReply},
		{"empty", okResult("   "), StylePlain, EmptyReply},
		{"telegram error", domain.ErrorResult("timeout"), StyleTelegram, "❌ Error: timeout"},
		{"plain error", domain.ErrorResult("http_error"), StylePlain, "Error: http_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReply(tt.res, tt.style))
		})
	}
}

func TestFormatReply_TruncatesByRunes(t *testing.T) {
	long := strings.Repeat("é", MaxReplyRunes+50)

	got := FormatReply(okResult(long), StylePlain)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxReplyRunes, utf8.RuneCountInString(got))
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, StyleTelegram, StyleFor(domain.ChannelTelegram))
	assert.Equal(t, StylePlain, StyleFor(domain.ChannelWhatsApp))
	assert.Equal(t, StylePlain, StyleFor(domain.ChannelExtension))
}

func TestTelegramClient_SendMessage(t *testing.T) {
	var gotPath string
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL, "123:abc", nil, discardLogger())
	require.NoError(t, c.SendMessage(context.Background(), 987654321, "hello"))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, float64(987654321), got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, true, got["disable_web_page_preview"])
}

func TestTelegramClient_RejectedSendIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL, "t", nil, discardLogger())
	assert.NoError(t, c.SendMessage(context.Background(), 1, "x"))
}

func TestTelegramClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewTelegramClient(url, "t", nil, discardLogger())
	assert.Error(t, c.SendMessage(context.Background(), 1, "x"))
}

func TestTelegramClient_SetWebhook(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT/setWebhook", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"description":"Webhook was set"}`)
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL+"/", "T", nil, discardLogger())
	res, err := c.SetWebhook(context.Background(), "https://gw.example/telegram/T")
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "Webhook was set", res.Description)
	assert.Equal(t, "https://gw.example/telegram/T", got["url"])
}

func TestWhatsAppClient_SendText(t *testing.T) {
	var gotPath, gotAuth string
	var got whatsappMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.1"}]}`)
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "1100", "secret", nil, discardLogger())
	require.NoError(t, c.SendText(context.Background(), "15550100", "reply"))

	assert.Equal(t, "/1100/messages", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "15550100", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "reply", got.Text.Body)
}

func TestWhatsAppClient_RejectedSendIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, strings.Repeat("x", 1000))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "1100", "bad", nil, discardLogger())
	assert.NoError(t, c.SendText(context.Background(), "1", "x"))
}
