// Package chat holds the relay's message model, its durable store contract,
// the webhook ingest pipeline and the per-connection stream session.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatrelay/pkg/realtime"
)

var (
	ErrInvalidKey   = errors.New("session and player are required")
	ErrEmptyMessage = errors.New("message is required")
)

// Key identifies one logical stream of messages.
type Key struct {
	Session string
	Player  string
}

// NewKey trims both parts.
func NewKey(session, player string) Key {
	return Key{Session: strings.TrimSpace(session), Player: strings.TrimSpace(player)}
}

// Valid reports whether both parts are present.
func (k Key) Valid() bool {
	return k.Session != "" && k.Player != ""
}

func (k Key) String() string {
	return k.Session + "/" + k.Player
}

// Message is a stored chat message. It is never mutated after insertion.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	PlayerID  string    `json:"player_id"`
	Body      string    `json:"message"`
	FromUser  bool      `json:"is_from_user"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the subscription key the message belongs to.
func (m Message) Key() Key {
	return Key{Session: m.SessionID, Player: m.PlayerID}
}

// Draft is a message before the store has assigned its identity.
type Draft struct {
	Key      Key
	Body     string
	FromUser bool
}

// Validate checks the draft carries a full key and a body.
func (d Draft) Validate() error {
	if !d.Key.Valid() {
		return ErrInvalidKey
	}
	if strings.TrimSpace(d.Body) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Stamp turns d into a record with a fresh id and creation time. Times are
// truncated to microseconds so every store round-trips them exactly.
func (d Draft) Stamp(now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		SessionID: d.Key.Session,
		PlayerID:  d.Key.Player,
		Body:      d.Body,
		FromUser:  d.FromUser,
		CreatedAt: now.UTC().Truncate(time.Microsecond),
	}
}

// Broker is the relay's broadcast broker.
type Broker = realtime.Broker[Key, Message]

// NewBroker creates a broker routing messages by their (session, player) key.
func NewBroker() *Broker {
	return realtime.NewBroker(func(m Message) (Key, bool) {
		k := m.Key()
		return k, k.Valid()
	})
}
