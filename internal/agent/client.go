package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/truthguard/internal/domain"
)

const (
	// DefaultTimeout is the per-call budget; the upstream agent can be very slow.
	DefaultTimeout = 300 * time.Second

	maxResponseBytes = 8 << 20
	logBodyLimit     = 300
)

var (
	errMissingBaseURL = errors.New("agent base URL is required")
	errMissingAppName = errors.New("agent app name is required")
)

// ClientConfig holds configuration for the upstream agent client.
type ClientConfig struct {
	BaseURL string
	AppName string
	Timeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "https://truthguardagent.onrender.com",
		AppName: "news_info_verification_v2",
		Timeout: DefaultTimeout,
	}
}

// Client talks to the remote verification agent over HTTP. It provisions
// sessions and runs single conversational turns.
type Client struct {
	baseURL string
	appName string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a new upstream agent client. A nil httpClient selects a
// dedicated client without its own timeout; every call is bounded by cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errMissingBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse agent base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("agent base URL must use http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		return nil, errMissingAppName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		appName: cfg.AppName,
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger,
		now:     time.Now,
	}, nil
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession provisions a new upstream session for identity. A new
// session is created on every call.
func (c *Client) CreateSession(ctx context.Context, identity string) (domain.Session, error) {
	start := c.now()
	endpoint := fmt.Sprintf("%s/apps/%s/users/%s/sessions",
		c.baseURL, url.PathEscape(c.appName), url.PathEscape(identity))

	body, err := c.post(ctx, endpoint, nil, identity)
	if err != nil {
		return domain.Session{}, err
	}

	var created createSessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		c.logger.Error("agent session response invalid",
			"identity", identity,
			"error", err,
			"body", truncate(string(body), logBodyLimit),
		)
		return domain.Session{}, newError(KindMalformedResponse, "invalid session response", err)
	}
	if created.ID == "" {
		c.logger.Error("agent session id missing", "identity", identity)
		return domain.Session{}, newError(KindMalformedResponse, "session id missing", nil)
	}

	c.logger.Info("agent session created",
		"identity", identity,
		"session_id", created.ID,
		"duration", c.now().Sub(start),
	)
	return domain.Session{Handle: created.ID, CreatedAt: start}, nil
}

type runPart struct {
	Text string `json:"text"`
}

type runMessage struct {
	Parts []runPart `json:"parts"`
	Role  string    `json:"role"`
}

type runRequest struct {
	AppName    string     `json:"app_name"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	NewMessage runMessage `json:"new_message"`
}

// runLogEntry is the narrow view over one entry of the run log. Only
// content.parts[0].text is read; everything else is ignored.
type runLogEntry struct {
	Content *struct {
		Parts []struct {
			Text *string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

func (e runLogEntry) finalText() (string, bool) {
	if e.Content == nil || len(e.Content.Parts) == 0 || e.Content.Parts[0].Text == nil {
		return "", false
	}
	return *e.Content.Parts[0].Text, true
}

// Run sends text as one user turn to session and returns the agent's final
// utterance, which is the text of the last entry in the returned log.
func (c *Client) Run(ctx context.Context, session domain.Session, identity, text string) (string, error) {
	start := c.now()
	payload, err := json.Marshal(runRequest{
		AppName:   c.appName,
		UserID:    identity,
		SessionID: session.Handle,
		NewMessage: runMessage{
			Parts: []runPart{{Text: text}},
			Role:  "user",
		},
	})
	if err != nil {
		return "", newError(KindUnexpected, "unexpected", fmt.Errorf("marshal run request: %w", err))
	}

	body, err := c.post(ctx, c.baseURL+"/run", payload, identity)
	if err != nil {
		return "", err
	}

	c.logger.Info("agent run ok",
		"identity", identity,
		"session_id", session.Handle,
		"duration", c.now().Sub(start),
	)

	var logs []json.RawMessage
	if err := json.Unmarshal(body, &logs); err != nil || len(logs) == 0 {
		c.logger.Error("agent returned no logs",
			"identity", identity,
			"body", truncate(string(body), logBodyLimit),
		)
		return "", newError(KindMalformedResponse, "missing logs in response", err)
	}

	last := logs[len(logs)-1]
	var entry runLogEntry
	if err := json.Unmarshal(last, &entry); err != nil {
		c.logger.Error("agent last log unreadable",
			"identity", identity,
			"error", err,
			"last_log", truncate(string(last), logBodyLimit),
		)
		return "", newError(KindMalformedResponse, "missing final text in response", err)
	}
	final, ok := entry.finalText()
	if !ok {
		c.logger.Error("agent missing final text",
			"identity", identity,
			"last_log", truncate(string(last), logBodyLimit),
		)
		return "", newError(KindMalformedResponse, "missing final text in response", nil)
	}
	return final, nil
}

// post issues a bounded POST and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte, identity string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, newError(KindUnexpected, "unexpected", fmt.Errorf("build request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		ae := transportError(ctx, err)
		c.logFailure(identity, endpoint, ae, "")
		return nil, ae
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		ae := transportError(ctx, err)
		c.logFailure(identity, endpoint, ae, "")
		return nil, ae
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := newError(KindTransportFailure, "http_error", fmt.Errorf("status %d", resp.StatusCode))
		ae.StatusCode = resp.StatusCode
		c.logFailure(identity, endpoint, ae, string(data))
		return nil, ae
	}
	return data, nil
}

func (c *Client) logFailure(identity, endpoint string, err *Error, body string) {
	if err.Kind == KindTimeout {
		c.logger.Error("agent timeout", "identity", identity, "endpoint", endpoint, "timeout", c.timeout)
		return
	}
	c.logger.Error("agent http error",
		"identity", identity,
		"endpoint", endpoint,
		"status", err.StatusCode,
		"error", err.Err,
		"body", truncate(body, logBodyLimit),
	)
}

// truncate cuts s to at most n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
