package chat

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Field aliases accepted on inbound webhooks, checked in order.
var (
	SessionAliases    = []string{"sessao", "session", "session_id"}
	PlayerAliases     = []string{"player", "player_id", "jogador"}
	MessageAliases    = []string{"mensagem", "message", "content", "texto"}
	ServiceKeyAliases = []string{"service_api_key", "serviceKey", "service-token", "serviceToken"}
	VendorAliases     = []string{"vendedor", "vendor"}
	RoomAliases       = []string{"nom_sala", "nome_sala", "sala"}
)

var errInvalidJSON = errors.New("request body is not a JSON object")

// WebhookRequest is the decoded body of an inbound webhook call.
type WebhookRequest struct {
	Session    string
	Player     string
	Message    string
	ServiceKey string
	Vendor     string
	Room       string
}

func (r *WebhookRequest) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errInvalidJSON
	}
	*r = WebhookRequest{
		Session:    FirstString(root, SessionAliases),
		Player:     FirstString(root, PlayerAliases),
		Message:    FirstString(root, MessageAliases),
		ServiceKey: FirstString(root, ServiceKeyAliases),
		Vendor:     FirstString(root, VendorAliases),
		Room:       FirstString(root, RoomAliases),
	}
	return nil
}

// Key returns the subscription key named by the request.
func (r WebhookRequest) Key() Key {
	return NewKey(r.Session, r.Player)
}

// Inbound converts the request into the user-message form the ingestor takes.
func (r WebhookRequest) Inbound() Inbound {
	return Inbound{Key: r.Key(), Text: r.Message, Vendor: r.Vendor, Room: r.Room}
}

// Validate reports the first missing required field.
func (r WebhookRequest) Validate() error {
	if !r.Key().Valid() {
		return ErrInvalidKey
	}
	if r.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// FirstString returns the first alias of obj holding a non-empty scalar.
// Numbers and booleans are accepted in their JSON text form.
func FirstString(obj gjson.Result, aliases []string) string {
	for _, alias := range aliases {
		v := obj.Get(gjson.Escape(alias))
		switch v.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
