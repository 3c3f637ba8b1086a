package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/chat"
	"chatrelay/internal/viewmodel"
	"chatrelay/views/pages"
)

type HomeHandler struct {
	page   viewmodel.ChatPage
	broker *chat.Broker
}

func NewHomeHandler(page viewmodel.ChatPage, broker *chat.Broker) *HomeHandler {
	return &HomeHandler{page: page, broker: broker}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/health", h.health)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	render(w, r, pages.ChatPage(h.page))
}

func (h *HomeHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": h.broker.Keys(),
	})
}
