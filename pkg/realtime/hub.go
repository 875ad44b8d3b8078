// Package realtime is the websocket relay: presence, direct message push,
// typing indicators and notification push.
//
// All events of all connections are handled on the single goroutine running
// Hub.Run, in arrival order. Handlers never block on I/O other than the
// optional presence mirror, and nothing is queued for offline users.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/presence"
)

const mirrorTimeout = 2 * time.Second

// Conn is a live connection handle as seen by the hub.
type Conn interface {
	// UserID is the authenticated principal of the connection.
	UserID() string
	// Send queues payload without blocking. It reports false when the
	// connection cannot keep up.
	Send(payload []byte) bool
	// Close releases the outbound queue. It is called once the hub forgets
	// the connection and must be idempotent.
	Close()
}

type inbound struct {
	conn Conn
	raw  []byte
}

type Hub struct {
	presence *presence.Table[Conn]
	conns    map[Conn]struct{}
	mirror   presence.Mirror
	metrics  *metrics.Gateway
	log      *slog.Logger
	now      func() time.Time

	register   chan Conn
	unregister chan Conn
	inbound    chan inbound
	deliver    chan *model.Notification
	done       chan struct{}
}

// NewHub builds a hub around table. mirror may be nil.
func NewHub(table *presence.Table[Conn], mirror presence.Mirror, m *metrics.Gateway, log *slog.Logger) *Hub {
	return &Hub{
		presence:   table,
		conns:      make(map[Conn]struct{}),
		mirror:     mirror,
		metrics:    m,
		log:        log.With("component", "hub"),
		now:        func() time.Time { return time.Now().UTC() },
		register:   make(chan Conn),
		unregister: make(chan Conn),
		inbound:    make(chan inbound, 256),
		deliver:    make(chan *model.Notification, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.conns {
				h.removeConn(c)
			}
			return
		case c := <-h.register:
			h.addConn(c)
		case c := <-h.unregister:
			h.removeConn(c)
		case in := <-h.inbound:
			h.handle(in.conn, in.raw)
		case n := <-h.deliver:
			h.deliverNotification(n)
		}
	}
}

func (h *Hub) Register(c Conn) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch hands one raw client frame to the loop.
func (h *Hub) Dispatch(c Conn, raw []byte) {
	select {
	case h.inbound <- inbound{conn: c, raw: raw}:
	case <-h.done:
	}
}

// Deliver pushes a stored notification to its recipient if they are online
// on this gateway.
func (h *Hub) Deliver(n *model.Notification) {
	select {
	case h.deliver <- n:
	case <-h.done:
	}
}

// Online lists the users connected to this gateway.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

func (h *Hub) addConn(c Conn) {
	h.conns[c] = struct{}{}
	h.log.Debug("connection registered", "user_id", c.UserID())
}

func (h *Hub) removeConn(c Conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	c.Close()

	userID, ok := h.presence.Disconnect(c)
	if !ok {
		return
	}
	h.metrics.OnlineUsers.Set(float64(h.presence.Len()))
	h.mirrorStatus(userID, false)
	h.log.Info("user offline", "user_id", userID)
	h.broadcast(EventStatus, StatusData{UserID: userID, Status: StatusOffline})
}

func (h *Hub) handle(c Conn, raw []byte) {
	if _, ok := h.conns[c]; !ok {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.replyError(c, "malformed event")
		return
	}
	h.metrics.Events.WithLabelValues(string(env.Event)).Inc()

	switch env.Event {
	case EventIdentify:
		var d IdentifyData
		if !h.decode(c, env, &d) {
			return
		}
		h.identify(c, d)
	case EventSend:
		var d SendData
		if !h.decode(c, env, &d) {
			return
		}
		h.relay(c, d)
	case EventTyping, EventStopTyping:
		var d TypingData
		if !h.decode(c, env, &d) {
			return
		}
		h.typing(c, env.Event, d)
	default:
		h.replyError(c, "unknown event "+string(env.Event))
	}
}

func (h *Hub) decode(c Conn, env Envelope, v any) bool {
	if len(env.Data) == 0 || json.Unmarshal(env.Data, v) != nil {
		h.replyError(c, "malformed "+string(env.Event)+" payload")
		return false
	}
	return true
}

func (h *Hub) identify(c Conn, d IdentifyData) {
	userID := d.UserID
	if userID == "" {
		userID = c.UserID()
	}
	if userID != c.UserID() {
		h.replyError(c, "identity does not match token")
		return
	}

	if _, replaced := h.presence.Connect(userID, c); replaced {
		h.log.Info("connection replaced", "user_id", userID)
	}
	h.metrics.OnlineUsers.Set(float64(h.presence.Len()))
	h.mirrorStatus(userID, true)
	h.log.Info("user online", "user_id", userID)

	h.sendTo(c, EventOnlineUsers, OnlineUsersData{Users: h.presence.Online()})
	h.broadcast(EventStatus, StatusData{UserID: userID, Status: StatusOnline})
}

// identified returns the user c announced itself as.
func (h *Hub) identified(c Conn) (string, bool) {
	userID, ok := h.presence.UserOf(c)
	if !ok {
		h.replyError(c, "identify first")
	}
	return userID, ok
}

// relay pushes a message to the recipient's connection when there is one and
// always acknowledges the sender. Storing the message is the client's
// separate call to the API.
func (h *Hub) relay(c Conn, d SendData) {
	userID, ok := h.identified(c)
	if !ok {
		return
	}
	if d.SenderID != "" && d.SenderID != userID {
		h.replyError(c, "sender does not match identity")
		return
	}
	convID, err := chat.ConversationID(userID, d.RecipientID)
	if err != nil {
		h.replyError(c, err.Error())
		return
	}
	if d.ConversationID != "" && d.ConversationID != convID {
		h.replyError(c, "conversation id does not match participants")
		return
	}

	ts := h.now()
	if rc, ok := h.presence.Lookup(d.RecipientID); ok {
		outcome := "delivered"
		if !h.sendTo(rc, EventReceive, ReceiveData{SenderID: userID, Text: d.Text, ConversationID: convID, Timestamp: ts}) {
			outcome = "dropped"
		}
		h.metrics.Deliveries.WithLabelValues("receive", outcome).Inc()
	} else {
		h.metrics.Deliveries.WithLabelValues("receive", "offline").Inc()
	}

	h.sendTo(c, EventSent, SentData{Success: true, ConversationID: convID, Timestamp: ts})
}

// typing forwards a typing signal to the other participant only. Nothing is
// retained.
func (h *Hub) typing(c Conn, event EventName, d TypingData) {
	userID, ok := h.identified(c)
	if !ok {
		return
	}
	if d.UserID != "" && d.UserID != userID {
		h.replyError(c, "user does not match identity")
		return
	}
	other, err := chat.OtherParticipant(d.ConversationID, userID)
	if err != nil {
		h.replyError(c, err.Error())
		return
	}

	rc, ok := h.presence.Lookup(other)
	if !ok {
		h.metrics.Deliveries.WithLabelValues("typing", "offline").Inc()
		return
	}
	outcome := "delivered"
	if !h.sendTo(rc, event, TypingData{ConversationID: d.ConversationID, UserID: userID}) {
		outcome = "dropped"
	}
	h.metrics.Deliveries.WithLabelValues("typing", outcome).Inc()
}

func (h *Hub) deliverNotification(n *model.Notification) {
	rc, ok := h.presence.Lookup(n.RecipientID)
	if !ok {
		h.metrics.Deliveries.WithLabelValues("notification", "offline").Inc()
		return
	}
	outcome := "delivered"
	if !h.sendTo(rc, EventNotification, n) {
		outcome = "dropped"
	}
	h.metrics.Deliveries.WithLabelValues("notification", outcome).Inc()
}

// sendTo encodes and queues one event. A connection whose queue is full is
// dropped, like a disconnect.
func (h *Hub) sendTo(c Conn, event EventName, data any) bool {
	payload, err := Encode(event, data)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "err", err)
		return false
	}
	if c.Send(payload) {
		return true
	}
	h.log.Warn("dropping slow connection", "user_id", c.UserID())
	h.removeConn(c)
	return false
}

func (h *Hub) broadcast(event EventName, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "err", err)
		return
	}
	var slow []Conn
	for c := range h.conns {
		if !c.Send(payload) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.removeConn(c)
	}
}

func (h *Hub) replyError(c Conn, msg string) {
	h.sendTo(c, EventError, ErrorData{Message: msg})
}

func (h *Hub) mirrorStatus(userID string, online bool) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	var err error
	if online {
		err = h.mirror.SetOnline(ctx, userID)
	} else {
		err = h.mirror.SetOffline(ctx, userID)
	}
	if err != nil {
		h.log.Warn("failed to mirror presence", "user_id", userID, "err", err)
	}
}
