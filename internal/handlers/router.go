package handlers

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chatrelay/internal/chat"
	"chatrelay/internal/viewmodel"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Store          chat.Store
	Broker         *chat.Broker
	Stream         *chat.Stream
	Ingest         *chat.Ingestor
	Keys           Keys
	Page           viewmodel.ChatPage
	Static         fs.FS
	RequestTimeout time.Duration
}

// NewRouter assembles every route. The event stream is mounted outside the
// request timeout.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	messagesHandler := NewMessagesHandler(d.Store, d.Stream)
	messagesHandler.RegisterStreamRoutes(r)

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		if d.Static != nil {
			r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.FS(d.Static))))
		}

		NewHomeHandler(d.Page, d.Broker).RegisterRoutes(r)
		messagesHandler.RegisterRoutes(r)
		NewWebhookHandler(d.Ingest, d.Keys).RegisterRoutes(r)
	})
	return r
}
