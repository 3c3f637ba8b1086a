package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/chat"
)

var testKey = chat.NewKey("s1", "p1")

func newTLSAutomation(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c := New(srv.URL+"/hook", []string{u.Host}, time.Second, WithHTTPClient(srv.Client()))
	return srv, c
}

func TestClient_RespondSendsPayloadAndParsesReply(t *testing.T) {
	var got dispatchPayload
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hook", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mensagem":"resposta"}`))
	})

	reply, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	require.True(t, ok)
	assert.Equal(t, "resposta", reply.Text)
	assert.Equal(t, "s1", reply.Session)
	assert.Equal(t, "p1", reply.Player)
	assert.Equal(t, dispatchPayload{Session: "s1", Player: "p1", Message: "oi"}, got)
}

func TestClient_RespondForwardsVendorAndRoom(t *testing.T) {
	var raw map[string]any
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi", Vendor: "v-42", Room: "sala-azul"})
	require.True(t, ok)
	assert.Equal(t, "v-42", raw["vendedor"])
	assert.Equal(t, "sala-azul", raw["nom_sala"])
}

func TestClient_RespondOmitsEmptyVendorAndRoom(t *testing.T) {
	var raw map[string]any
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	require.True(t, ok)
	assert.NotContains(t, raw, "vendedor")
	assert.NotContains(t, raw, "nom_sala")
}

func TestClient_ServerErrorMeansNoReply(t *testing.T) {
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
}

func TestClient_NonJSONMeansNoReply(t *testing.T) {
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	})

	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
}

func TestClient_RedirectIsNotFollowed(t *testing.T) {
	_, c := newTLSAutomation(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hook" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(`{"message":"followed"}`))
	})

	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
}

func TestClient_BlockedHostIsNeverCalled(t *testing.T) {
	called := false
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, []string{"automation.example.com"}, time.Second, WithHTTPClient(srv.Client()))
	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
	assert.False(t, called)
}

func TestClient_PlainHTTPIsBlocked(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	c := New(srv.URL, []string{u.Host}, time.Second)
	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
	assert.False(t, called)
}

func TestClient_NoEndpointMeansNoReply(t *testing.T) {
	c := New("", nil, 0)
	_, ok := c.Respond(context.Background(), chat.Inbound{Key: testKey, Text: "oi"})
	assert.False(t, ok)
}

func TestParseReply(t *testing.T) {
	override := "0b5a2b4e-8c1e-4c5f-9d0a-3a8f1f0e6c11"

	tests := []struct {
		name   string
		body   string
		want   chat.Reply
		wantOK bool
	}{
		{"top level", `{"reply":"ok"}`, chat.Reply{Session: "s1", Player: "p1", Text: "ok"}, true},
		{"alias order", `{"text":"second","message":"first"}`, chat.Reply{Session: "s1", Player: "p1", Text: "first"}, true},
		{"under data", `{"data":{"conteudo":"nested"}}`, chat.Reply{Session: "s1", Player: "p1", Text: "nested"}, true},
		{"array body", `[{"output":"x","content":"from array"}]`, chat.Reply{Session: "s1", Player: "p1", Text: "from array"}, true},
		{"uuid override", `{"message":"m","sessao":"` + override + `"}`, chat.Reply{Session: override, Player: "p1", Text: "m"}, true},
		{"non-uuid override ignored", `{"message":"m","session":"other","player":"nope"}`, chat.Reply{Session: "s1", Player: "p1", Text: "m"}, true},
		{"placeholder", `{"message":"Workflow was started"}`, chat.Reply{}, false},
		{"missing text", `{"status":"done"}`, chat.Reply{}, false},
		{"blank text", `{"message":"   "}`, chat.Reply{}, false},
		{"not json", `oops`, chat.Reply{}, false},
		{"scalar", `"just text"`, chat.Reply{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseReply([]byte(tt.body), testKey)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
