// Package automation talks to the external workflow endpoint that may answer
// inbound chat messages.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"chatrelay/internal/chat"
)

const (
	DefaultTimeout = 5 * time.Second

	// Replies larger than this are treated as malformed.
	maxReplyBytes = 1 << 20
)

// Reply aliases, checked in order at the top level and then under "data".
var (
	textAliases    = []string{"message", "mensagem", "reply", "text", "conteudo", "content"}
	sessionAliases = []string{"sessao", "session", "session_id"}
	playerAliases  = chat.PlayerAliases
)

// placeholderReply is what the workflow engine answers before a flow finishes.
const placeholderReply = "workflow was started"

var (
	errNotConfigured = errors.New("automation url not configured")
	errHostBlocked   = errors.New("automation host not allowed")
)

// Client posts chat messages to an allow-listed HTTPS endpoint.
type Client struct {
	endpoint string
	allowed  map[string]struct{}
	http     *http.Client
}

var _ chat.Responder = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Redirects are still refused.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		clone := *hc
		clone.CheckRedirect = noRedirects
		c.http = &clone
	}
}

// New creates a client for endpoint. allowedHosts are matched against the URL
// host including any port.
func New(endpoint string, allowedHosts []string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		allowed:  make(map[string]struct{}, len(allowedHosts)),
		http:     &http.Client{Timeout: timeout, CheckRedirect: noRedirects},
	}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			c.allowed[h] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout == 0 {
		c.http.Timeout = timeout
	}
	return c
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Respond forwards text and extracts the reply. Every failure is logged and
// reported as no reply.
func (c *Client) Respond(ctx context.Context, in chat.Inbound) (chat.Reply, bool) {
	key := in.Key
	logger := log.With().
		Str("session", key.Session).
		Str("player", key.Player).
		Str("vendor", in.Vendor).
		Str("room", in.Room).
		Logger()

	body, err := c.post(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, errNotConfigured):
			logger.Debug().Msg("automation skipped: no url configured")
		case errors.Is(err, errHostBlocked):
			logger.Warn().Err(err).Msg("automation blocked")
		default:
			logger.Error().Err(err).Msg("automation request failed")
		}
		return chat.Reply{}, false
	}

	reply, ok := ParseReply(body, key)
	if !ok {
		logger.Info().Msg("automation returned no usable reply")
		return chat.Reply{}, false
	}
	logger.Info().Str("reply_session", reply.Session).Msg("automation produced reply")
	return reply, true
}

type dispatchPayload struct {
	Session string `json:"session"`
	Player  string `json:"player,omitempty"`
	Message string `json:"message"`
	Vendor  string `json:"vendedor,omitempty"`
	Room    string `json:"nom_sala,omitempty"`
}

func (c *Client) post(ctx context.Context, in chat.Inbound) ([]byte, error) {
	if c.endpoint == "" {
		return nil, errNotConfigured
	}
	if err := c.checkHost(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(dispatchPayload{
		Session: in.Key.Session,
		Player:  in.Key.Player,
		Message: in.Text,
		Vendor:  in.Vendor,
		Room:    in.Room,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	return body, nil
}

func (c *Client) checkHost() error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(errHostBlocked, err.Error())
	}
	if u.Scheme != "https" {
		return errors.Wrapf(errHostBlocked, "scheme %q", u.Scheme)
	}
	if _, ok := c.allowed[strings.ToLower(u.Host)]; !ok {
		return errors.Wrapf(errHostBlocked, "host %q", u.Host)
	}
	return nil
}

// ParseReply extracts the reply text and optional key overrides from an
// automation response body. Overrides that are not UUIDs are ignored.
func ParseReply(body []byte, key chat.Key) (chat.Reply, bool) {
	if !gjson.ValidBytes(body) {
		return chat.Reply{}, false
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		root = root.Get("0")
	}
	if !root.IsObject() {
		return chat.Reply{}, false
	}

	text := lookup(root, textAliases)
	if text == "" || strings.EqualFold(text, placeholderReply) {
		return chat.Reply{}, false
	}
	return chat.Reply{
		Session: override(lookup(root, sessionAliases), key.Session),
		Player:  override(lookup(root, playerAliases), key.Player),
		Text:    text,
	}, true
}

func lookup(root gjson.Result, aliases []string) string {
	if v := chat.FirstString(root, aliases); v != "" {
		return v
	}
	if data := root.Get("data"); data.IsObject() {
		return chat.FirstString(data, aliases)
	}
	return ""
}

func override(value, fallback string) string {
	if value == "" || value == fallback {
		return fallback
	}
	if _, err := uuid.Parse(value); err != nil {
		log.Info().Str("value", value).Msg("automation override is not a uuid; keeping original")
		return fallback
	}
	return value
}
