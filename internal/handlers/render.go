package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"chatrelay/internal/chat"
	"chatrelay/internal/viewmodel"
)

func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "failed to render", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, viewmodel.ErrorBody{Error: msg})
}

// keyFromQuery reads the subscription key from the first non-empty alias of
// each part.
func keyFromQuery(r *http.Request) chat.Key {
	q := r.URL.Query()
	first := func(aliases []string) string {
		for _, a := range aliases {
			if v := strings.TrimSpace(q.Get(a)); v != "" {
				return v
			}
		}
		return ""
	}
	return chat.NewKey(first(chat.SessionAliases), first(chat.PlayerAliases))
}
