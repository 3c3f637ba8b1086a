package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// EventWriter writes Server-Sent Event frames and flushes after each one.
type EventWriter struct {
	w     io.Writer
	flush func() error
}

// NewEventWriter prepares w for streaming: it sets the event-stream headers,
// clears any server write deadline and flushes the headers to the client.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, err
	}
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &EventWriter{w: w, flush: rc.Flush}, nil
}

// NewRawEventWriter wraps a plain writer. Frames are not flushed.
func NewRawEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w, flush: func() error { return nil }}
}

// Data writes v as a single-line JSON data frame.
func (e *EventWriter) Data(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	return e.write(buf)
}

// Comment writes a comment frame. Clients ignore it; proxies see traffic.
func (e *EventWriter) Comment(text string) error {
	return e.write([]byte(": " + text + "\n\n"))
}

func (e *EventWriter) write(frame []byte) error {
	if _, err := e.w.Write(frame); err != nil {
		return err
	}
	return e.flush()
}
