package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ReplyMode selects what happens after a user message is stored.
type ReplyMode string

const (
	// ReplyForward dispatches to the responder and discards its reply.
	ReplyForward ReplyMode = "forward"
	// ReplyWebhook dispatches to the responder and stores its reply.
	ReplyWebhook ReplyMode = "webhook"
	// ReplyRules answers with the built-in rule responder.
	ReplyRules ReplyMode = "rules"
	// ReplyOff skips automation entirely.
	ReplyOff ReplyMode = "off"
)

// ParseReplyMode maps configuration values onto a mode. Empty and "echo"
// fall back to ReplyForward; "external" is an alias for ReplyWebhook.
func ParseReplyMode(s string) (ReplyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "echo", string(ReplyForward):
		return ReplyForward, nil
	case "external", string(ReplyWebhook):
		return ReplyWebhook, nil
	case string(ReplyRules):
		return ReplyRules, nil
	case string(ReplyOff), "none", "disabled":
		return ReplyOff, nil
	}
	return "", fmt.Errorf("unknown auto reply mode %q", s)
}

// Reply is an automated answer. Empty Session or Player keep the original.
type Reply struct {
	Session string
	Player  string
	Text    string
}

// Inbound is an end-user message with the routing hints that came with it.
// Vendor and Room are optional and only forwarded to the responder.
type Inbound struct {
	Key    Key
	Text   string
	Vendor string
	Room   string
}

// Responder produces automated replies. ok is false when there is no reply;
// failures are the responder's to log, never the caller's to handle.
type Responder interface {
	Respond(ctx context.Context, in Inbound) (reply Reply, ok bool)
}

// Result describes a processed user message.
type Result struct {
	Record Message
	Reply  *Message
}

// Ingestor persists inbound messages and publishes them to the broker.
type Ingestor struct {
	store     Store
	broker    *Broker
	mode      ReplyMode
	responder Responder
}

// NewIngestor wires the ingest pipeline. A nil responder behaves like ReplyOff.
func NewIngestor(store Store, broker *Broker, mode ReplyMode, responder Responder) *Ingestor {
	if responder == nil {
		mode = ReplyOff
	}
	return &Ingestor{store: store, broker: broker, mode: mode, responder: responder}
}

// Mode returns the effective reply mode.
func (i *Ingestor) Mode() ReplyMode { return i.mode }

// Service stores a system-originated message and publishes it.
func (i *Ingestor) Service(ctx context.Context, key Key, text string) (Message, error) {
	return i.persist(ctx, Draft{Key: key, Body: text, FromUser: false})
}

// User stores an end-user message, publishes it, and runs the automation
// step. A reply is stored and published under its own key.
func (i *Ingestor) User(ctx context.Context, in Inbound) (Result, error) {
	key := in.Key
	record, err := i.persist(ctx, Draft{Key: key, Body: in.Text, FromUser: true})
	if err != nil {
		return Result{}, err
	}
	res := Result{Record: record}

	if i.mode == ReplyOff {
		return res, nil
	}

	reply, ok := i.responder.Respond(ctx, in)
	if i.mode == ReplyForward {
		log.Debug().Str("key", key.String()).Bool("reply", ok).Msg("message forwarded, reply ignored")
		return res, nil
	}
	if !ok {
		log.Info().Str("key", key.String()).Msg("automation returned no reply")
		return res, nil
	}

	replyKey := key
	if reply.Session != "" {
		replyKey.Session = reply.Session
	}
	if reply.Player != "" {
		replyKey.Player = reply.Player
	}
	stored, err := i.persist(ctx, Draft{Key: replyKey, Body: reply.Text, FromUser: false})
	if err != nil {
		return res, errors.Wrap(err, "store reply")
	}
	res.Reply = &stored
	return res, nil
}

func (i *Ingestor) persist(ctx context.Context, d Draft) (Message, error) {
	if err := d.Validate(); err != nil {
		return Message{}, err
	}
	m, err := i.store.Insert(ctx, d)
	if err != nil {
		return Message{}, errors.Wrap(err, "insert message")
	}
	n := i.broker.Publish(m)
	log.Info().
		Str("id", m.ID).
		Str("key", m.Key().String()).
		Bool("from_user", m.FromUser).
		Int("subscribers", n).
		Msg("message stored and published")
	return m, nil
}
