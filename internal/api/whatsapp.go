package api

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/ashureev/truthguard/internal/channel"
	"github.com/ashureev/truthguard/internal/domain"
	"github.com/go-chi/chi/v5"
)

// WhatsAppSender delivers a reply to a WhatsApp number.
type WhatsAppSender interface {
	SendText(ctx context.Context, to, text string) error
}

// WhatsAppHandler handles the Cloud API webhook.
type WhatsAppHandler struct {
	*Handler
	verifyToken string
	sender      WhatsAppSender
}

// NewWhatsAppHandler creates the webhook handler.
func NewWhatsAppHandler(base *Handler, verifyToken string, sender WhatsAppSender) *WhatsAppHandler {
	return &WhatsAppHandler{Handler: base, verifyToken: verifyToken, sender: sender}
}

// RegisterRoutes registers the subscription check and the message webhook.
func (h *WhatsAppHandler) RegisterRoutes(r chi.Router) {
	r.Get("/whatsapp", h.Subscribe)
	r.Post("/whatsapp", h.Webhook)
}

// Subscribe answers the hub.challenge handshake.
func (h *WhatsAppHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Forbidden")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value whatsappValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsappValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []struct {
		From string `json:"from"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
	Statuses []struct{} `json:"statuses"`
}

// firstValue returns the value of the first change of the first entry.
func (p *whatsappPayload) firstValue() whatsappValue {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return whatsappValue{}
	}
	return p.Entry[0].Changes[0].Value
}

// Webhook handles POST /whatsapp.
func (h *WhatsAppHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload whatsappPayload
	if err := decodeBody(w, r, &payload); err != nil {
		h.logger.Warn("WhatsApp payload unreadable", "error", err)
		JSON(w, http.StatusOK, okBody)
		return
	}

	value := payload.firstValue()
	if len(value.Messages) == 0 || len(value.Statuses) > 0 {
		JSON(w, http.StatusOK, okBody)
		return
	}

	msg := value.Messages[0]
	if msg.From == value.Metadata.PhoneNumberID {
		JSON(w, http.StatusOK, okBody)
		return
	}
	if msg.From == "" || msg.Text.Body == "" {
		JSON(w, http.StatusOK, okBody)
		return
	}

	h.logger.Info("WhatsApp inbound", "from", msg.From, "text", preview(msg.Text.Body))

	result := h.gateway.Submit(r.Context(), domain.VerificationRequest{
		Text:     msg.Text.Body,
		Identity: msg.From,
		Channel:  domain.ChannelWhatsApp,
	})
	reply := channel.FormatReply(result, channel.StylePlain)

	if err := h.sender.SendText(context.WithoutCancel(r.Context()), msg.From, reply); err != nil {
		h.logger.Error("WhatsApp send failed", "to", msg.From, "error", err)
	}

	JSON(w, http.StatusOK, okBody)
}
