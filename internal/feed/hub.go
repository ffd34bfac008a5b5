// Package feed pushes freshly written portfolio snapshots to websocket subscribers.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Portfolio access is checked by the HTTP handler before upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the message sent to subscribers for every written snapshot.
type Event struct {
	Type        string             `json:"type"`
	PortfolioID string             `json:"portfolioId"`
	Date        string             `json:"date"`
	TotalValue  decimal.Decimal    `json:"totalValue"`
	Holdings    model.HoldingsData `json:"holdings"`
}

// Hub fans snapshots out to the subscribers of each portfolio.
// Publish never blocks: when the hub or a subscriber falls behind, messages are dropped.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan model.PortfolioSnapshot
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logging.Logger
}

type client struct {
	portfolioID string
	send        chan []byte
}

// NewHub creates a new Hub. Call Run in a goroutine before use.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan model.PortfolioSnapshot, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger.Component("feed"),
	}
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Str("portfolio_id", c.portfolioID).Int("clients", h.ClientCount()).Msg("subscriber connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Str("portfolio_id", c.portfolioID).Int("clients", h.ClientCount()).Msg("subscriber disconnected")

		case snapshot := <-h.broadcast:
			h.dispatch(snapshot)
		}
	}
}

func (h *Hub) dispatch(snapshot model.PortfolioSnapshot) {
	data, err := json.Marshal(Event{
		Type:        "snapshot",
		PortfolioID: snapshot.PortfolioID,
		Date:        model.FormatDate(snapshot.Date),
		TotalValue:  snapshot.TotalValue,
		Holdings:    snapshot.HoldingsData,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal snapshot event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.portfolioID != snapshot.PortfolioID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("portfolio_id", c.portfolioID).Msg("subscriber too slow, dropping event")
		}
	}
}

// Stop signals the event loop to exit and closes every subscription.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Publish queues a snapshot for delivery.
func (h *Hub) Publish(snapshot model.PortfolioSnapshot) {
	select {
	case h.broadcast <- snapshot:
	default:
		h.logger.Warn().Str("portfolio_id", snapshot.PortfolioID).Msg("feed broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscription is one registered subscriber to a portfolio's events.
type subscription struct {
	hub    *Hub
	client *client
	once   sync.Once
}

// subscribe registers a subscriber for portfolioID. Messages are JSON encoded Events.
// After Stop the returned subscription's channel is already closed.
func (h *Hub) subscribe(portfolioID string) *subscription {
	c := &client{portfolioID: portfolioID, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return &subscription{hub: h, client: c}
}

// C returns the channel events are delivered on. It is closed by Close or Stop.
func (s *subscription) C() <-chan []byte {
	return s.client.send
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s.client:
		case <-s.hub.done:
		}
	})
}

// ServeWS upgrades the request to a websocket and streams the portfolio's events to it
// until either side closes the connection or the hub stops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, portfolioID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.subscribe(portfolioID)
	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// writePump sends messages from the send channel to the websocket connection.
func (h *Hub) writePump(conn *websocket.Conn, sub *subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection to detect close.
func (h *Hub) readPump(conn *websocket.Conn, sub *subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
