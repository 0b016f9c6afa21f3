package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ashureev/truthguard/internal/channel"
	"github.com/ashureev/truthguard/internal/domain"
	"github.com/ashureev/truthguard/internal/gateway"
	"github.com/ashureev/truthguard/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ExtensionHandler serves direct callers such as the browser extension.
type ExtensionHandler struct {
	*Handler
}

// NewExtensionHandler creates the direct-caller handler.
func NewExtensionHandler(base *Handler) *ExtensionHandler {
	return &ExtensionHandler{Handler: base}
}

// RegisterRoutes registers the verification routes.
func (h *ExtensionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/verify", h.Describe)
	r.Post("/verify_for_frontend_extension_app", h.Verify)
}

type extensionRequest struct {
	Text    string                 `json:"text"`
	Links   []string               `json:"links"`
	User    map[string]interface{} `json:"user"`
	Channel string                 `json:"channel"`
}

type extensionResponse struct {
	Status            string                     `json:"status"`
	FormattedResponse string                     `json:"formatted_response,omitempty"`
	Result            *domain.VerificationResult `json:"result,omitempty"`
	Error             string                     `json:"error,omitempty"`
}

// userField returns a string or numeric user attribute as text.
func userField(user map[string]interface{}, key string) string {
	switch v := user[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Describe handles GET /verify.
func (h *ExtensionHandler) Describe(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Verification endpoint"})
}

// Verify handles POST /verify_for_frontend_extension_app.
func (h *ExtensionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req extensionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.Debug("Extension request unreadable", "error", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	ch := domain.ChannelExtension
	if c := strings.TrimSpace(req.Channel); c != "" {
		ch = domain.Channel(c)
	}
	who := identity.Resolve(r.Context(), userField(req.User, "wa_from"), userField(req.User, "id"))

	result := h.gateway.Submit(r.Context(), domain.VerificationRequest{
		Text:     req.Text,
		Identity: who,
		Channel:  ch,
		Links:    req.Links,
		Metadata: map[string]string{"ip": identity.IPFromRequest(r)},
	})

	if !result.OK() {
		status := http.StatusInternalServerError
		if result.Diagnostic == gateway.DiagnosticInvalidRequest {
			status = http.StatusBadRequest
		}
		h.logger.Error("Extension verification failed", "identity", who, "error", result.Diagnostic)
		JSON(w, status, extensionResponse{Status: "error", Error: result.Diagnostic})
		return
	}

	JSON(w, http.StatusOK, extensionResponse{
		Status:            "ok",
		FormattedResponse: channel.FormatReply(result, channel.StylePlain),
		Result:            &result,
	})
}
