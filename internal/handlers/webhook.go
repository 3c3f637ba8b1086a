package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"chatrelay/internal/chat"
	"chatrelay/internal/viewmodel"
)

const maxWebhookBody = 1 << 20

// Keys are the pre-shared webhook credentials.
type Keys struct {
	Service string
	Client  string
}

type WebhookHandler struct {
	ingest *chat.Ingestor
	keys   Keys
}

func NewWebhookHandler(ingest *chat.Ingestor, keys Keys) *WebhookHandler {
	return &WebhookHandler{ingest: ingest, keys: keys}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/functions/v1/webhook-valezap", h.receive)
	r.Post("/api/webhook", h.receive)
}

type caller int

const (
	callerUnknown caller = iota
	callerClient
	callerService
)

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req chat.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn().Err(err).Msg("webhook rejected: malformed body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	logger := log.With().Str("session", req.Session).Str("player", req.Player).Logger()
	if err := req.Validate(); err != nil {
		logger.Warn().Err(err).Bool("has_message", req.Message != "").Msg("webhook rejected")
		writeError(w, http.StatusBadRequest, "Parametros obrigatorios: sessao, player, mensagem")
		return
	}

	who := h.authenticate(r, req.ServiceKey)
	if who == callerUnknown {
		logger.Warn().Msg("webhook rejected: unknown api key")
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	key := req.Key()
	if who == callerService {
		m, err := h.ingest.Service(r.Context(), key, req.Message)
		if err != nil {
			h.fail(w, err)
			return
		}
		logger.Info().Str("id", m.ID).Msg("service message accepted")
		writeJSON(w, http.StatusOK, viewmodel.Envelope{Success: true, Data: m})
		return
	}

	res, err := h.ingest.User(r.Context(), req.Inbound())
	if err != nil {
		h.fail(w, err)
		return
	}

	data := viewmodel.UserMessageData[chat.Message]{
		Session: key.Session,
		Player:  key.Player,
		Message: req.Message,
		Vendor:  req.Vendor,
		Room:    req.Room,
		Record:  res.Record,
		Reply:   res.Reply,
	}
	status := http.StatusAccepted
	if res.Reply != nil {
		status = http.StatusOK
	}
	logger.Info().Str("id", res.Record.ID).Bool("reply", res.Reply != nil).Msg("user message accepted")
	writeJSON(w, status, viewmodel.Envelope{Success: true, Data: data})
}

func (h *WebhookHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrInvalidKey) || errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Msg("webhook failed to persist message")
	writeError(w, http.StatusInternalServerError, "Erro interno ao registrar mensagem")
}

// authenticate resolves the caller from the X-API-Key or bearer header, or
// from a service key carried in the body.
func (h *WebhookHandler) authenticate(r *http.Request, bodyKey string) caller {
	provided := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if provided == "" {
		provided = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}

	switch {
	case keyMatches(provided, h.keys.Service), keyMatches(bodyKey, h.keys.Service):
		return callerService
	case keyMatches(provided, h.keys.Client):
		return callerClient
	}
	return callerUnknown
}

func keyMatches(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
