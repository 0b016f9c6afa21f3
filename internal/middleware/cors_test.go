package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(method, "/verify", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	prod := AllowedOrigins("https://truthguard.example/", false)

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllow   string
		wantCredent string
	}{
		{"dev wildcard", AllowedOrigins("", true), http.MethodGet, "http://localhost:3000", http.StatusTeapot, "http://localhost:3000", ""},
		{"frontend exact", prod, http.MethodPost, "https://truthguard.example", http.StatusTeapot, "https://truthguard.example", "true"},
		{"extension prefix", prod, http.MethodPost, "chrome-extension://abcdef", http.StatusTeapot, "chrome-extension://abcdef", "true"},
		{"foreign origin", prod, http.MethodGet, "https://evil.example", http.StatusTeapot, "", ""},
		{"preflight", prod, http.MethodOptions, "https://truthguard.example", http.StatusOK, "https://truthguard.example", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.origins, tt.method, tt.origin)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredent, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
