package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testApp = "test-app"

// fakeAgentServer mimics the upstream agent's session and run endpoints.
type fakeAgentServer struct {
	*httptest.Server

	creates atomic.Int32
	runs    atomic.Int32

	mu        sync.Mutex
	order     []string
	lastRun   runRequest
	createFn  http.HandlerFunc
	runFn     http.HandlerFunc
	sessionID func(n int32) string
}

func newFakeAgentServer(t *testing.T, configure ...func(*fakeAgentServer)) *fakeAgentServer {
	t.Helper()
	f := &fakeAgentServer{
		sessionID: func(n int32) string { return fmt.Sprintf("sess-%d", n) },
	}
	for _, fn := range configure {
		fn(f)
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAgentServer) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/apps/"+testApp+"/users/") && strings.HasSuffix(r.URL.Path, "/sessions"):
		n := f.creates.Add(1)
		f.record("create")
		if f.createFn != nil {
			f.createFn(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": f.sessionID(n)})
	case r.Method == http.MethodPost && r.URL.Path == "/run":
		f.runs.Add(1)
		f.record("run")
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastRun = req
		f.mu.Unlock()
		if f.runFn != nil {
			f.runFn(w, r)
			return
		}
		writeRunLog(w, "VERDICT: true, confidence: 1.0")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAgentServer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, call)
}

func (f *fakeAgentServer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func writeRunLog(w http.ResponseWriter, finalText string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `[{"author":"planner","content":{"parts":[{"text":"thinking..."}]}},{"content":{"parts":[{"text":%q}],"role":"model"}}]`, finalText)
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: baseURL, AppName: testApp, Timeout: timeout}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{AppName: testApp}, nil, nil)
	assert.ErrorIs(t, err, errMissingBaseURL)

	_, err = NewClient(ClientConfig{BaseURL: "ftp://example.com", AppName: testApp}, nil, nil)
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "http://example.com"}, nil, nil)
	assert.ErrorIs(t, err, errMissingAppName)

	c, err := NewClient(ClientConfig{BaseURL: "http://example.com/", AppName: testApp}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, "http://example.com", c.baseURL)
}

func TestCreateSession_Success(t *testing.T) {
	type seen struct {
		path string
		body []byte
	}
	got := make(chan seen, 1)
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.createFn = func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got <- seen{path: r.URL.EscapedPath(), body: body}
			_, _ = io.WriteString(w, `{"id":"abc-123","appName":"test-app"}`)
		}
	})
	c := newTestClient(t, srv.URL, time.Second)

	before := time.Now()
	sess, err := c.CreateSession(context.Background(), "+1 555/0100")
	require.NoError(t, err)

	assert.Equal(t, "abc-123", sess.Handle)
	assert.False(t, sess.CreatedAt.Before(before))
	req := <-got
	assert.Equal(t, "/apps/test-app/users/+1%20555%2F0100/sessions", req.path)
	assert.Empty(t, req.body)
}

func TestCreateSession_MissingID(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.createFn = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"state":{}}`)
		}
	})
	c := newTestClient(t, srv.URL, time.Second)

	_, err := c.CreateSession(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, "session id missing", DetailOf(err))
}

func TestCreateSession_InvalidJSON(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.createFn = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>sleeping</html>`)
		}
	})
	c := newTestClient(t, srv.URL, time.Second)

	_, err := c.CreateSession(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCreateSession_NonSuccessStatus(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.createFn = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}
	})
	c := newTestClient(t, srv.URL, time.Second)

	_, err := c.CreateSession(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportFailure)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadGateway, ae.StatusCode)
	assert.Equal(t, "http_error", ae.Detail)
}

func TestCreateSession_Timeout(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.createFn = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
	})
	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	_, err := c.CreateSession(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestCreateSession_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := newTestClient(t, url, time.Second)

	_, err := c.CreateSession(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestRun_SendsProtocolBodyAndReturnsLastText(t *testing.T) {
	srv := newFakeAgentServer(t)
	c := newTestClient(t, srv.URL, time.Second)

	text, err := c.Run(context.Background(), domain.Session{Handle: "sess-9"}, "user-1", "Is this true?")
	require.NoError(t, err)
	assert.Equal(t, "VERDICT: true, confidence: 1.0", text)

	srv.mu.Lock()
	got := srv.lastRun
	srv.mu.Unlock()
	assert.Equal(t, testApp, got.AppName)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "sess-9", got.SessionID)
	assert.Equal(t, "user", got.NewMessage.Role)
	require.Len(t, got.NewMessage.Parts, 1)
	assert.Equal(t, "Is this true?", got.NewMessage.Parts[0].Text)
}

func TestRun_MalformedReplies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"empty list", `[]`, "missing logs in response"},
		{"object instead of list", `{"content":{"parts":[{"text":"hi"}]}}`, "missing logs in response"},
		{"not json", `oops`, "missing logs in response"},
		{"last entry without content", `[{"content":{"parts":[{"text":"early"}]}},{"actions":{}}]`, "missing final text in response"},
		{"last entry with empty parts", `[{"content":{"parts":[]}}]`, "missing final text in response"},
		{"last entry part without text", `[{"content":{"parts":[{"functionCall":{}}]}}]`, "missing final text in response"},
		{"text is not a string", `[{"content":{"parts":[{"text":42}]}}]`, "missing final text in response"},
		{"last entry is a string", `["done"]`, "missing final text in response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
				f.runFn = func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, tt.body)
				}
			})
			c := newTestClient(t, srv.URL, time.Second)

			_, err := c.Run(context.Background(), domain.Session{Handle: "s"}, "user-1", "text")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, tt.detail, DetailOf(err))
		})
	}
}

func TestRun_NonSuccessStatus(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.runFn = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
		}
	})
	c := newTestClient(t, srv.URL, time.Second)

	_, err := c.Run(context.Background(), domain.Session{Handle: "gone"}, "user-1", "text")
	assert.ErrorIs(t, err, ErrTransportFailure)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.StatusCode)
}

func TestRun_Timeout(t *testing.T) {
	srv := newFakeAgentServer(t, func(f *fakeAgentServer) {
		f.runFn = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
	})
	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	_, err := c.Run(context.Background(), domain.Session{Handle: "s"}, "user-1", "text")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestErrorIs_DoesNotCrossKinds(t *testing.T) {
	err := newError(KindTimeout, "timeout", nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrTransportFailure)
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
	assert.Equal(t, "unexpected", DetailOf(errors.New("plain")))
}

func TestTruncate_KeepsCharactersWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 300))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	// "ж" is two bytes; cutting at an odd byte count must back off.
	got := truncate(strings.Repeat("ж", 200), 301)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 300, len(got))

	assert.Equal(t, "", truncate("ж", 1))
}
