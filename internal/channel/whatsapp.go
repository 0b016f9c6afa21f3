package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const whatsappSendTimeout = 10 * time.Second

// WhatsAppClient sends messages through the WhatsApp Cloud (Graph) API.
type WhatsAppClient struct {
	endpoint    string
	accessToken string
	http        *http.Client
	logger      *slog.Logger
}

// NewWhatsAppClient creates a client sending from phoneNumberID.
func NewWhatsAppClient(graphBase, phoneNumberID, accessToken string, httpClient *http.Client, logger *slog.Logger) *WhatsAppClient {
	if graphBase == "" {
		graphBase = "https://graph.facebook.com/v20.0"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppClient{
		endpoint:    strings.TrimSuffix(graphBase, "/") + "/" + url.PathEscape(phoneNumberID) + "/messages",
		accessToken: accessToken,
		http:        httpClient,
		logger:      logger,
	}
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

// SendText sends a plain text message to a phone number. A non-2xx answer
// is logged and not returned.
func (c *WhatsAppClient) SendText(ctx context.Context, to, text string) error {
	ctx, cancel := context.WithTimeout(ctx, whatsappSendTimeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := postJSON(ctx, c.http, c.endpoint, headers, whatsappMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsappText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	if !resp.ok() {
		c.logger.Error("WhatsApp send rejected",
			"to", to,
			"status", resp.status,
			"body", resp.snippet())
	}
	return nil
}
