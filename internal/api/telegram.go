package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ashureev/truthguard/internal/channel"
	"github.com/ashureev/truthguard/internal/domain"
	"github.com/go-chi/chi/v5"
)

// TelegramSender delivers a reply to a Telegram chat.
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramHandler handles the bot webhook.
type TelegramHandler struct {
	*Handler
	token  string
	sender TelegramSender
}

// NewTelegramHandler creates the webhook handler for the bot with token.
func NewTelegramHandler(base *Handler, token string, sender TelegramSender) *TelegramHandler {
	return &TelegramHandler{Handler: base, token: token, sender: sender}
}

// RegisterRoutes registers the webhook route.
func (h *TelegramHandler) RegisterRoutes(r chi.Router) {
	r.Post("/telegram/{token}", h.Webhook)
}

type telegramUpdate struct {
	Message struct {
		Chat struct {
			ID json.Number `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Webhook handles POST /telegram/{token}.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		JSON(w, http.StatusForbidden, map[string]interface{}{"ok": false, "error": "Unauthorized"})
		return
	}

	var update telegramUpdate
	if err := decodeBody(w, r, &update); err != nil {
		h.logger.Warn("Telegram update unreadable", "error", err)
		JSON(w, http.StatusOK, okBody)
		return
	}

	chatID, err := strconv.ParseInt(update.Message.Chat.ID.String(), 10, 64)
	text := update.Message.Text
	if err != nil || chatID == 0 || text == "" {
		JSON(w, http.StatusOK, okBody)
		return
	}

	identity := strconv.FormatInt(chatID, 10)
	h.logger.Info("Telegram inbound", "chat_id", chatID, "text", preview(text))

	result := h.gateway.Submit(r.Context(), domain.VerificationRequest{
		Text:     text,
		Identity: identity,
		Channel:  domain.ChannelTelegram,
	})
	reply := channel.FormatReply(result, channel.StyleTelegram)

	if err := h.sender.SendMessage(context.WithoutCancel(r.Context()), chatID, reply); err != nil {
		h.logger.Error("Telegram send failed", "chat_id", chatID, "error", err)
	}

	JSON(w, http.StatusOK, okBody)
}
