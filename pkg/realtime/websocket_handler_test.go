package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/presence"
)

type server struct {
	hub    *Hub
	issuer *auth.Issuer
	url    string
}

func startServer(t *testing.T) *server {
	t.Helper()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	hub := NewHub(presence.NewTable[Conn](), nil, metrics.NewGateway(prometheus.NewRegistry()), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, issuer, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &server{hub: hub, issuer: issuer, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (s *server) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	tok, err := s.issuer.GenerateToken(user)
	require.NoError(t, err)
	header := http.Header{}
	header.Add("Authorization", "Bearer "+tok)
	c, _, err := websocket.DefaultDialer.Dial(s.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func write(t *testing.T, c *websocket.Conn, event EventName, data any) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, frame(t, event, data)))
}

// await reads until event arrives, decoding it into v.
func await(t *testing.T, c *websocket.Conn, event EventName, v any) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := c.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Event == event {
			if v != nil {
				require.NoError(t, json.Unmarshal(env.Data, v))
			}
			return
		}
	}
}

func TestRejectsMissingToken(t *testing.T) {
	s := startServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndToEndRelay(t *testing.T) {
	s := startServer(t)

	a := s.dial(t, "alice")
	write(t, a, EventIdentify, IdentifyData{UserID: "alice"})
	var online OnlineUsersData
	await(t, a, EventOnlineUsers, &online)
	assert.Equal(t, []string{"alice"}, online.Users)

	b := s.dial(t, "bob")
	write(t, b, EventIdentify, IdentifyData{UserID: "bob"})
	await(t, b, EventOnlineUsers, &online)
	assert.Equal(t, []string{"alice", "bob"}, online.Users)

	var st StatusData
	for st.UserID != "bob" {
		await(t, a, EventStatus, &st)
	}
	assert.Equal(t, StatusOnline, st.Status)

	write(t, a, EventSend, SendData{RecipientID: "bob", SenderID: "alice", Text: "hi"})
	var got ReceiveData
	await(t, b, EventReceive, &got)
	assert.Equal(t, ReceiveData{SenderID: "alice", Text: "hi", ConversationID: "alice_bob", Timestamp: got.Timestamp}, got)

	var ack SentData
	await(t, a, EventSent, &ack)
	assert.True(t, ack.Success)
	assert.Equal(t, "alice_bob", ack.ConversationID)

	write(t, b, EventTyping, TypingData{ConversationID: "alice_bob", UserID: "bob"})
	var td TypingData
	await(t, a, EventTyping, &td)
	assert.Equal(t, "bob", td.UserID)

	s.hub.Deliver(&model.Notification{ID: "n1", RecipientID: "bob", SenderID: "alice", Type: model.NotificationFollow})
	var n model.Notification
	await(t, b, EventNotification, &n)
	assert.Equal(t, "n1", n.ID)

	require.NoError(t, b.Close())
	st = StatusData{}
	for st.UserID != "bob" || st.Status != StatusOffline {
		await(t, a, EventStatus, &st)
	}
	assert.Eventually(t, func() bool {
		return len(s.hub.Online()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
