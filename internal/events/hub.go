// Package events streams engine events to websocket clients.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultBuffer is the number of events queued per subscriber before it is dropped.
	DefaultBuffer = 64
)

// Message is the envelope written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Filter selects the events a subscriber receives. Zero fields match everything.
type Filter struct {
	Battle string
	Player models.Address
}

func (f Filter) Match(ev game.Event) bool {
	if f.Battle != "" && ev.Battle != f.Battle {
		return false
	}
	if f.Player != "" && ev.Actor != f.Player {
		for _, p := range ev.Players {
			if p == f.Player {
				return true
			}
		}
		return false
	}
	return true
}

// Subscriber is one registered listener. C is closed when the subscriber is
// removed, either by Unsubscribe or because it fell behind.
type Subscriber struct {
	ID     string
	Filter Filter
	C      <-chan game.Event

	ch chan game.Event
}

// Hub fans engine events out to subscribers. It implements game.Notifier and
// never blocks the caller: a subscriber whose buffer is full is dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	buffer int
	log    zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs:     make(map[string]*Subscriber),
		buffer:   DefaultBuffer,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// SetBuffer changes the queue size of subscribers registered afterwards.
func (h *Hub) SetBuffer(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > 0 {
		h.buffer = n
	}
}

func (h *Hub) Subscribe(f Filter) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan game.Event, h.buffer)
	s := &Subscriber{ID: uuid.NewString(), Filter: f, C: ch, ch: ch}
	h.subs[s.ID] = s
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s.ID)
}

func (h *Hub) removeLocked(id string) {
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Notify(_ context.Context, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		if !s.Filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.log.Warn().Str("subscriber", id).Uint64("seq", ev.Seq).Msg("ws: subscriber too slow, dropping")
			h.removeLocked(id)
		}
	}
}

// ServeWS upgrades the request and streams matching events until the client
// disconnects. Query parameters "battle" and "player" set the filter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws: upgrade failed")
		return
	}
	f := Filter{
		Battle: r.URL.Query().Get("battle"),
		Player: models.Address(r.URL.Query().Get("player")),
	}
	sub := h.Subscribe(f)
	h.log.Info().Str("subscriber", sub.ID).Str("battle", f.Battle).Str("player", f.Player.String()).
		Str("from", r.RemoteAddr).Msg("ws: connect")

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)

	h.Unsubscribe(sub)
	_ = conn.Close()
	h.log.Info().Str("subscriber", sub.ID).Msg("ws: disconnect")
}

// readPump discards client input and closes done when the connection breaks.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{Type: "you", Data: map[string]string{"id": sub.ID}}); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"))
				return
			}
			if err := conn.WriteJSON(Message{Type: string(ev.Kind), Data: ev}); err != nil {
				h.log.Debug().Err(err).Str("subscriber", sub.ID).Msg("ws: write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
