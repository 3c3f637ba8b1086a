package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"chatrelay/internal/chat"
	"chatrelay/internal/viewmodel"
	"chatrelay/pkg/realtime"
)

const missingKeyError = "Missing sessao or player parameter"

type MessagesHandler struct {
	store  chat.Store
	stream *chat.Stream
}

func NewMessagesHandler(store chat.Store, stream *chat.Stream) *MessagesHandler {
	return &MessagesHandler{store: store, stream: stream}
}

// RegisterRoutes mounts the history endpoint. The stream is mounted
// separately so it stays outside request timeouts.
func (h *MessagesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/messages", h.list)
}

func (h *MessagesHandler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/api/messages/stream", h.streamMessages)
}

func (h *MessagesHandler) list(w http.ResponseWriter, r *http.Request) {
	key := keyFromQuery(r)
	if !key.Valid() {
		writeError(w, http.StatusBadRequest, missingKeyError)
		return
	}

	msgs, err := h.store.List(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("key", key.String()).Msg("list messages")
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, viewmodel.MessageList[chat.Message]{Messages: msgs})
}

func (h *MessagesHandler) streamMessages(w http.ResponseWriter, r *http.Request) {
	key := keyFromQuery(r)
	if !key.Valid() {
		writeError(w, http.StatusBadRequest, missingKeyError)
		return
	}

	out, err := realtime.NewEventWriter(w)
	if err != nil {
		log.Error().Err(err).Msg("streaming unsupported")
		return
	}

	if err := h.stream.Serve(r.Context(), key, out); err != nil {
		log.Debug().Err(err).Str("key", key.String()).Msg("stream ended")
	}
}
