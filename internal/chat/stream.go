package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"chatrelay/pkg/realtime"
)

// DefaultPollInterval bounds each queue wait before the store is consulted.
const DefaultPollInterval = 5 * time.Second

const keepAliveComment = "keep-alive"

// Emitter receives the frames produced by a stream session.
type Emitter interface {
	Data(v any) error
	Comment(text string) error
}

// Source is the read side of the store used to catch up on missed pushes.
type Source interface {
	ListSince(ctx context.Context, key Key, after time.Time) ([]Message, error)
}

// Stream serves long-lived connections for one key each, combining broker
// pushes with store polling.
type Stream struct {
	broker *Broker
	source Source
	wait   time.Duration
	now    func() time.Time
}

// NewStream creates a stream server. wait <= 0 uses DefaultPollInterval.
func NewStream(broker *Broker, source Source, wait time.Duration) *Stream {
	if wait <= 0 {
		wait = DefaultPollInterval
	}
	return &Stream{broker: broker, source: source, wait: wait, now: time.Now}
}

// Serve streams messages for key to out until ctx is done or a write fails.
// The broker queue is always released on return.
func (s *Stream) Serve(ctx context.Context, key Key, out Emitter) error {
	if !key.Valid() {
		return ErrInvalidKey
	}

	q := s.broker.Subscribe(key)
	defer s.broker.Unsubscribe(key, q)

	cur := newCursor(s.now())
	logger := log.With().Str("session", key.Session).Str("player", key.Player).Logger()
	logger.Debug().Msg("stream opened")
	defer logger.Debug().Msg("stream closed")

	for {
		if err := s.step(ctx, key, q, cur, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// step runs one wait cycle: deliver a push, or reconcile against the store and
// fall back to a keep-alive.
func (s *Stream) step(ctx context.Context, key Key, q *realtime.Queue[Message], cur *cursor, out Emitter) error {
	msg, ok := q.Wait(ctx, s.wait)
	if ctx.Err() != nil {
		return nil
	}
	if ok {
		if !cur.admit(msg) {
			return nil
		}
		return out.Data(msg)
	}

	emitted, err := s.reconcile(ctx, key, cur, out)
	if err != nil {
		return err
	}
	if emitted == 0 {
		return out.Comment(keepAliveComment)
	}
	return nil
}

// reconcile emits stored messages newer than the high-water mark that have not
// been seen yet. Store failures are logged and count as zero messages.
func (s *Stream) reconcile(ctx context.Context, key Key, cur *cursor, out Emitter) (int, error) {
	missed, err := s.source.ListSince(ctx, key, cur.mark)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Str("key", key.String()).Msg("stream reconcile failed")
		}
		return 0, nil
	}

	emitted := 0
	for _, m := range missed {
		if !cur.admit(m) {
			continue
		}
		if err := out.Data(m); err != nil {
			return emitted, err
		}
		emitted++
	}
	return emitted, nil
}

// cursor is the per-connection dedup set and high-water mark.
type cursor struct {
	mark time.Time
	seen map[string]struct{}
}

func newCursor(start time.Time) *cursor {
	return &cursor{mark: start.UTC(), seen: make(map[string]struct{})}
}

// admit records m and reports whether it has not been delivered before.
func (c *cursor) admit(m Message) bool {
	if m.ID != "" {
		if _, dup := c.seen[m.ID]; dup {
			return false
		}
		c.seen[m.ID] = struct{}{}
	}
	if !m.CreatedAt.IsZero() && m.CreatedAt.After(c.mark) {
		c.mark = m.CreatedAt
	}
	return true
}
