// Package dashboard serves the HTTP surface of a strategy feed session.
//
// It exposes the current connection state, strategies and prices as JSON,
// accepts toggle requests, serves Prometheus metrics and relays every decoded
// feed message to browser websocket clients.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dashboard-portfolios/internal/feed"
	"dashboard-portfolios/internal/wire"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	broadcastBuffer = 100
	clientWriteWait = 5 * time.Second
)

// Feed is the part of a feed session the dashboard needs.
type Feed interface {
	ID() string
	State() feed.State
	Strategies() []wire.Strategy
	Prices() map[string]float64
	ToggleStrategy(id int64)
	OnUpdate(fn func(wire.Message)) (unsubscribe func())
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Session    string    `json:"session"`
	State      string    `json:"state"`
	Strategies int       `json:"strategies"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToggleResponse is the body of POST /api/strategies/{id}/toggle.
type ToggleResponse struct {
	StrategyID int64  `json:"strategyId"`
	Status     string `json:"status"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Dashboard relays one feed session over HTTP and websockets.
type Dashboard struct {
	feed             Feed
	router           *mux.Router
	server           *http.Server
	upgrader         websocket.Upgrader
	clients          map[*client]bool
	clientsMu        sync.RWMutex
	broadcastChannel chan []byte
	stopChannel      chan struct{}
	unsubscribe      func()
	isRunning        bool
	mu               sync.Mutex
}

// New creates a dashboard for f. Metrics are served from gatherer. A port of
// 0 builds the handler without listening, for embedding or tests.
func New(f Feed, gatherer prometheus.Gatherer, port int) *Dashboard {
	d := &Dashboard{
		feed:             f,
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*client]bool),
		broadcastChannel: make(chan []byte, broadcastBuffer),
		stopChannel:      make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/api/state", d.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/strategies", d.handleStrategies).Methods(http.MethodGet)
	r.HandleFunc("/api/prices", d.handlePrices).Methods(http.MethodGet)
	r.HandleFunc("/api/strategies/{id}/toggle", d.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/ws", d.handleWebSocket).Methods(http.MethodGet)
	d.router = r

	if port > 0 {
		d.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return d
}

// Handler returns the dashboard's router.
func (d *Dashboard) Handler() http.Handler {
	return d.router
}

// Start subscribes to the feed, starts relaying and, when a port was given,
// starts the HTTP server.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	d.unsubscribe = d.feed.OnUpdate(d.relay)
	go d.clientBroadcaster()

	if d.server != nil {
		go func() {
			log.Info().Str("address", d.server.Addr).Msg("Starting dashboard server")
			if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Dashboard server failed")
			}
		}()
	}

	d.isRunning = true
	return nil
}

// Stop unsubscribes from the feed, drops every browser client and shuts the
// HTTP server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}
	d.isRunning = false

	d.unsubscribe()
	close(d.stopChannel)

	d.clientsMu.Lock()
	for c := range d.clients {
		c.conn.Close()
	}
	d.clients = make(map[*client]bool)
	d.clientsMu.Unlock()

	if d.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}
	log.Info().Msg("Dashboard stopped")
	return nil
}

// Clients returns the number of attached browser clients.
func (d *Dashboard) Clients() int {
	d.clientsMu.RLock()
	defer d.clientsMu.RUnlock()
	return len(d.clients)
}

// relay runs on the feed's reader goroutine and must not block it.
func (d *Dashboard) relay(msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode message for relay")
		return
	}
	select {
	case d.broadcastChannel <- data:
	default:
		log.Debug().Str("type", msg.Type.String()).Msg("Relay buffer full, dropping message")
	}
}

func (d *Dashboard) clientBroadcaster() {
	for {
		select {
		case data := <-d.broadcastChannel:
			d.broadcastToClients(data)
		case <-d.stopChannel:
			return
		}
	}
}

func (d *Dashboard) broadcastToClients(data []byte) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	for c := range d.clients {
		if err := c.write(data); err != nil {
			log.Warn().Err(err).Msg("Failed to send message to dashboard client")
			c.conn.Close()
			delete(d.clients, c)
		}
	}
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (d *Dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Session:    d.feed.ID(),
		State:      d.feed.State().String(),
		Strategies: len(d.feed.Strategies()),
		Timestamp:  time.Now().UTC(),
	})
}

func (d *Dashboard) handleStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := d.feed.Strategies()
	if strategies == nil {
		strategies = []wire.Strategy{}
	}
	writeJSON(w, http.StatusOK, strategies)
}

func (d *Dashboard) handlePrices(w http.ResponseWriter, r *http.Request) {
	prices := d.feed.Prices()
	if prices == nil {
		prices = map[string]float64{}
	}
	writeJSON(w, http.StatusOK, prices)
}

func (d *Dashboard) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid strategy id", http.StatusBadRequest)
		return
	}
	if d.feed.State() != feed.Open {
		http.Error(w, "feed not connected", http.StatusServiceUnavailable)
		return
	}

	d.feed.ToggleStrategy(id)
	log.Info().Int64("strategy_id", id).Str("remote", r.RemoteAddr).Msg("Toggle requested")
	writeJSON(w, http.StatusAccepted, ToggleResponse{StrategyID: id, Status: "sent"})
}

// handleWebSocket attaches a browser client. The client is registered before
// the current collection is sent as an initial message, so no relayed
// message is lost in between.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	d.clientsMu.Lock()
	d.clients[c] = true
	d.clientsMu.Unlock()
	defer d.removeClient(c)

	strategies := d.feed.Strategies()
	if strategies == nil {
		strategies = []wire.Strategy{}
	}
	snapshot := wire.Message{Type: wire.KindInitial, Data: wire.Payload{Strategies: strategies}}
	if data, err := wire.Encode(snapshot); err == nil {
		if err := c.write(data); err != nil {
			return
		}
	}

	// browser clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (d *Dashboard) removeClient(c *client) {
	d.clientsMu.Lock()
	delete(d.clients, c)
	d.clientsMu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}
