package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/notice"
	playbackview "github.com/zappabad/stockpond/internal/playback/view"
)

// Message is the envelope sent to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	out  chan Message
	done chan struct{}
}

// Hub fans controller and notice events out to websocket clients.
type Hub struct {
	cfg      Config
	greeting func() []Message

	mu      sync.RWMutex
	clients map[*client]struct{}

	droppedMessages atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHub creates a Hub. greeting, if non-nil, supplies the messages sent to
// each client on connect.
func NewHub(cfg Config, greeting func() []Message) *Hub {
	def := DefaultConfig()
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Hub{
		cfg:      cfg,
		greeting: greeting,
		clients:  make(map[*client]struct{}),
		closed:   make(chan struct{}),
	}
}

// AttachPlaybackEvents starts forwarding controller events.
func (h *Hub) AttachPlaybackEvents(events <-chan playbackview.Event) {
	h.wg.Add(1)
	go h.runPlaybackListener(events)
}

func (h *Hub) runPlaybackListener(events <-chan playbackview.Event) {
	defer h.wg.Done()

	for {
		select {
		case <-h.closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(playbackMessage(ev))
		}
	}
}

func playbackMessage(ev playbackview.Event) Message {
	switch ev.Type {
	case playbackview.EventSnapshot:
		return Message{Type: "snapshot", Data: ev.Snapshot}
	case playbackview.EventStateChanged:
		return Message{Type: "state", Data: map[string]string{"state": ev.State}}
	case playbackview.EventQuotes:
		return Message{Type: "quotes", Data: ev.Quotes}
	default:
		return Message{Type: ev.Type.String(), Data: ev}
	}
}

// AttachNoticeEvents starts forwarding notices.
func (h *Hub) AttachNoticeEvents(events <-chan notice.Notice) {
	h.wg.Add(1)
	go h.runNoticeListener(events)
}

func (h *Hub) runNoticeListener(events <-chan notice.Notice) {
	defer h.wg.Done()

	for {
		select {
		case <-h.closed:
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(Message{Type: "notice", Data: n})
		}
	}
}

// Broadcast queues m for every client. Slow clients lose messages.
func (h *Hub) Broadcast(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.out <- m:
		default:
			h.droppedMessages.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages returns the count of messages dropped for slow clients.
func (h *Hub) DroppedMessages() int64 {
	return h.droppedMessages.Load()
}

// ServeHTTP upgrades the request and streams messages until the client goes
// away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.closed:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.WithContext(r.Context()).Errorf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, out: make(chan Message, h.cfg.ClientBuffer), done: make(chan struct{})}
	if h.greeting != nil {
		for _, m := range h.greeting() {
			select {
			case cl.out <- m:
			default:
			}
		}
	}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	writerDone := make(chan struct{})
	go h.writeLoop(cl, writerDone)

	readTimeout := 2 * h.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(cl.done)
	<-writerDone
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
}

func (h *Hub) writeLoop(cl *client, done chan<- struct{}) {
	defer close(done)

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case m := <-cl.out:
			if err := cl.conn.WriteJSON(m); err != nil {
				_ = cl.conn.Close()
				return
			}
		case <-ping.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = cl.conn.Close()
				return
			}
		case <-h.closed:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			_ = cl.conn.Close()
			return
		case <-cl.done:
			return
		}
	}
}

// Close stops the listeners and disconnects all clients.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
	})
	h.wg.Wait()
}
