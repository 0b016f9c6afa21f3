package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	maxSendResponseBytes = 1 << 20
	logBodyLimit         = 300
)

type sendResponse struct {
	status int
	body   []byte
}

func (r *sendResponse) ok() bool {
	return r.status >= 200 && r.status <= 299
}

func (r *sendResponse) snippet() string {
	if len(r.body) <= logBodyLimit {
		return string(r.body)
	}
	return string(r.body[:logBodyLimit])
}

// postJSON sends v as a JSON body and reads a bounded response. Only
// transport and encoding failures are returned as errors.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers http.Header, v interface{}) (*sendResponse, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range headers {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSendResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &sendResponse{status: resp.StatusCode, body: body}, nil
}
