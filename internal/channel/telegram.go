package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	telegramSendTimeout    = 8 * time.Second
	telegramWebhookTimeout = 10 * time.Second
)

// TelegramClient calls the Telegram Bot API.
type TelegramClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewTelegramClient creates a client for the bot identified by token.
// apiBase defaults to https://api.telegram.org.
func NewTelegramClient(apiBase, token string, httpClient *http.Client, logger *slog.Logger) *TelegramClient {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramClient{
		baseURL: strings.TrimSuffix(apiBase, "/") + "/bot" + token,
		http:    httpClient,
		logger:  logger,
	}
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// SendMessage posts text to a chat. Link previews are disabled. A non-2xx
// answer is logged and not returned.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, telegramSendTimeout)
	defer cancel()

	resp, err := postJSON(ctx, c.http, c.baseURL+"/sendMessage", nil, sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if !resp.ok() {
		c.logger.Error("Telegram sendMessage rejected",
			"chat_id", chatID,
			"status", resp.status,
			"body", resp.snippet())
	}
	return nil
}

// WebhookResult is Telegram's answer to setWebhook.
type WebhookResult struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SetWebhook points the bot's updates at url.
func (c *TelegramClient) SetWebhook(ctx context.Context, url string) (*WebhookResult, error) {
	ctx, cancel := context.WithTimeout(ctx, telegramWebhookTimeout)
	defer cancel()

	resp, err := postJSON(ctx, c.http, c.baseURL+"/setWebhook", nil, map[string]string{"url": url})
	if err != nil {
		return nil, fmt.Errorf("telegram setWebhook: %w", err)
	}

	var out WebhookResult
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decode setWebhook response (status %d): %w", resp.status, err)
	}
	return &out, nil
}
