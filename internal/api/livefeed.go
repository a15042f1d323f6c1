// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/notify"
	"github.com/convene-app/convene/internal/store"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10

	// Inbound frames are ignored; the limit only bounds abuse.
	liveMaxMessageSize = 4 * 1024
)

// LiveFeed streams group voting events to connected members over
// websockets. Events arrive from the notify dispatcher and fan out to
// every client watching the event's group; a client that cannot keep up
// loses events rather than blocking the fan-out.
//
// The route serving ServeGroup must bypass the Prometheus and gzip
// middleware: both wrap the ResponseWriter in types that cannot hijack
// the connection.
type LiveFeed struct {
	store    *store.Store
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*liveClient]struct{} // groupID → clients
}

type liveClient struct {
	groupID string
	conn    *websocket.Conn
	send    chan notify.Event
}

// NewLiveFeed creates the feed. Origin checks stay permissive: the
// gateway in front of this service owns browser-facing policy.
func NewLiveFeed(st *store.Store) *LiveFeed {
	return &LiveFeed{
		store: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*liveClient]struct{}),
	}
}

// Register subscribes the feed to every group-scoped topic on the
// dispatcher. Call before the dispatcher starts.
func (f *LiveFeed) Register(d *notify.Dispatcher) {
	for _, topic := range []string{
		notify.TopicRecommendations,
		notify.TopicGroupVotes,
		notify.TopicGroupFinalized,
	} {
		d.On(topic, f.HandleEvent)
	}
}

// HandleEvent fans a bus event out to the clients watching its group.
// Full client buffers drop the event and count an error.
func (f *LiveFeed) HandleEvent(ev notify.Event) {
	if ev.GroupID == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients[ev.GroupID] {
		select {
		case c.send <- ev:
		default:
			metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
		}
	}
}

// ServeGroup handles GET /api/v1/groups/{id}/live: membership check,
// upgrade, then stream until the client goes away.
func (f *LiveFeed) ServeGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCaller(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "id")

	group, err := f.store.GetGroup(groupID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !group.IsMember(actor) {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "caller is not a group member", nil)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		metrics.WSErrors.WithLabelValues("upgrade_failed").Inc()
		return
	}

	client := &liveClient{
		groupID: groupID,
		conn:    conn,
		send:    make(chan notify.Event, 64),
	}
	f.add(client)
	metrics.WSConnections.Inc()
	logging.Debug().Str("group_id", groupID).Str("user_id", actor).
		Msg("Live feed client connected")

	go client.writePump(f)
	client.readPump(f)
}

func (f *LiveFeed) add(c *liveClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clients[c.groupID] == nil {
		f.clients[c.groupID] = make(map[*liveClient]struct{})
	}
	f.clients[c.groupID][c] = struct{}{}
}

func (f *LiveFeed) remove(c *liveClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group := f.clients[c.groupID]
	if _, ok := group[c]; !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(f.clients, c.groupID)
	}
	close(c.send)
	metrics.WSConnections.Dec()
}

// ClientCount reports connected clients for a group.
func (f *LiveFeed) ClientCount(groupID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients[groupID])
}

// readPump discards inbound frames, keeping the read side alive for
// pong handling and close detection.
func (c *liveClient) readPump(f *LiveFeed) {
	defer func() {
		f.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(liveMaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(livePongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Msg("Live feed client closed unexpectedly")
			}
			return
		}
	}
}

// writePump serializes events to the connection and keeps it alive with
// pings.
func (c *liveClient) writePump(f *LiveFeed) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				metrics.WSErrors.WithLabelValues("write_failed").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
