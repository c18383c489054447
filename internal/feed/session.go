// Package feed implements the strategy feed session manager. A Session owns
// one logical connection to the feed server, decodes inbound frames, keeps
// the shared strategies collection, fans messages out to observers and sends
// toggle commands.
//
// Frames of one connection are handled by a single reader goroutine, each run
// to completion, so observers for a session never run concurrently with each
// other. Public methods may be called from any goroutine, including from
// inside an observer. Transport and decode failures are reported to the
// diagnostic sinks (log, metrics, error channel, journal) and never returned.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"dashboard-portfolios/internal/metrics"
	"dashboard-portfolios/internal/storage"
	"dashboard-portfolios/internal/wire"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Journal receives diagnostic entries for transport and decode failures.
type Journal interface {
	Record(e storage.Entry) error
}

type Option func(*Session)

// WithDialer replaces the default gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithErrors forwards every reported error to ch. Sends never block; errors
// are dropped when ch is full.
func WithErrors(ch chan<- error) Option {
	return func(s *Session) { s.errs = ch }
}

func WithJournal(j Journal) Option {
	return func(s *Session) { s.journal = j }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l.With().Str("session", s.id).Logger() }
}

// Session is a feed session owned by its caller.
type Session struct {
	id      string
	cfg     Config
	dialer  Dialer
	metrics *metrics.Metrics
	journal Journal
	errs    chan<- error
	logger  zerolog.Logger

	mu     sync.Mutex
	state  State
	conn   Conn
	gen    uint64 // bumped on every Connect/Disconnect; stale loops compare against it
	cancel context.CancelFunc

	// state notifications are queued under mu and delivered in order by
	// whichever goroutine finds the queue idle
	notifyMu sync.Mutex
	pending  []State
	draining bool

	dataMu     sync.RWMutex
	strategies []wire.Strategy
	prices     map[string]float64

	ids       atomic.Uint64
	updates   *registry[wire.Message]
	states    *registry[State]
	snapshots *registry[[]wire.Strategy]
}

// New creates a disconnected session. Nothing is dialed until Connect.
func New(cfg Config, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:  uuid.New().String(),
		cfg: cfg,
	}
	s.logger = log.With().Str("component", "feed").Str("session", s.id).Logger()
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = NewWebsocketDialer(cfg)
	}

	s.updates = newRegistry[wire.Message](&s.ids, s.observerPanicked)
	s.states = newRegistry[State](&s.ids, s.observerPanicked)
	s.snapshots = newRegistry[[]wire.Strategy](&s.ids, s.observerPanicked)
	s.metrics.SetState(int(Disconnected))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts connecting in the background and returns immediately.
// It is a no-op while the session is connecting or open.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		// a reconnect is waiting out its backoff; start over now
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	s.logger.Info().Str("url", s.cfg.URL).Msg("Connecting to strategy feed")
	s.drainStates()

	go s.run(ctx, gen)
}

// Disconnect closes the connection and cancels any pending reconnect. The
// session is Disconnected when it returns; the server's close acknowledgment
// is not awaited. Observers stay registered. It is a no-op when nothing is
// connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.gen++
	conn := s.conn
	s.conn = nil
	s.setStateLocked(Disconnected)
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.reportTransport("close", err)
		}
		s.logger.Info().Msg("Disconnected from strategy feed")
	}
	s.drainStates()
}

// Close tears the session down: it disconnects and removes every observer.
func (s *Session) Close() {
	s.Disconnect()
	s.updates.clear()
	s.states.clear()
	s.snapshots.clear()
}

// Subscribe registers fn for every decoded inbound message.
func (s *Session) Subscribe(fn func(wire.Message)) ObserverID {
	return s.updates.add(fn)
}

// Unsubscribe removes a registration made with any of the session's
// observer methods. Unknown or already removed ids are ignored.
func (s *Session) Unsubscribe(id ObserverID) {
	if s.updates.remove(id) {
		return
	}
	if s.states.remove(id) {
		return
	}
	s.snapshots.remove(id)
}

// OnUpdate registers fn for every decoded inbound message and returns a
// function that removes exactly that registration.
func (s *Session) OnUpdate(fn func(wire.Message)) (unsubscribe func()) {
	id := s.Subscribe(fn)
	return func() { s.Unsubscribe(id) }
}

// OnState registers fn for every connection state transition.
func (s *Session) OnState(fn func(State)) (unsubscribe func()) {
	id := s.states.add(fn)
	return func() { s.Unsubscribe(id) }
}

// OnStrategies registers fn for every replacement of the strategies collection.
func (s *Session) OnStrategies(fn func([]wire.Strategy)) (unsubscribe func()) {
	id := s.snapshots.add(fn)
	return func() { s.Unsubscribe(id) }
}

// Observers returns the number of registered message observers.
func (s *Session) Observers() int {
	return s.updates.len()
}

// Strategies returns the current strategies collection. The collection is
// replaced wholesale by every snapshot or update, never patched.
func (s *Session) Strategies() []wire.Strategy {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return slices.Clone(s.strategies)
}

// Prices returns the latest price ticks keyed by instrument.
func (s *Session) Prices() map[string]float64 {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	if s.prices == nil {
		return nil
	}
	out := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// ToggleStrategy asks the server to flip the selected flag of a strategy.
// The command is sent only while the session is open; otherwise it is
// dropped without queueing.
func (s *Session) ToggleStrategy(id int64) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == Open
	s.mu.Unlock()

	if !open || conn == nil {
		s.logger.Debug().Int64("strategy_id", id).Msg("Toggle dropped, feed not open")
		s.metrics.CommandDropped()
		return
	}

	data, err := wire.Encode(wire.Toggle{StrategyID: id})
	if err != nil {
		s.logger.Error().Err(err).Int64("strategy_id", id).Msg("failed to encode toggle")
		return
	}
	if err := conn.Write(data); err != nil {
		s.reportTransport("write", err)
		return
	}
	s.metrics.CommandSent()
	s.logger.Debug().Int64("strategy_id", id).Msg("Toggle sent")
}

func (s *Session) run(ctx context.Context, gen uint64) {
	backoff := s.cfg.ReconnectMin

	for {
		opened := s.connectOnce(ctx, gen)
		if ctx.Err() != nil {
			return
		}
		if opened {
			backoff = s.cfg.ReconnectMin
		}

		if !s.cfg.Reconnect {
			s.finish(gen)
			return
		}

		s.logger.Warn().Dur("backoff", backoff).Msg("Feed connection lost, reconnecting with exponential backoff...")
		s.metrics.Reconnecting()

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}

		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}

		if !s.beginReconnect(gen) {
			return
		}
	}
}

// connectOnce dials and pumps frames until the connection ends. It reports
// whether the connection reached the open state.
func (s *Session) connectOnce(ctx context.Context, gen uint64) bool {
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	if err != nil {
		if ctx.Err() == nil {
			s.reportTransport("dial", err)
			s.markClosed(gen, nil)
		}
		return false
	}

	if !s.markOpen(gen, conn) {
		conn.Close()
		return false
	}
	s.logger.Info().Str("url", s.cfg.URL).Msg("Strategy feed connected")

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.keepAlive(pingCtx, conn)

	for {
		raw, err := conn.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.reportTransport("read", err)
				if s.markClosed(gen, conn) {
					conn.Close()
				}
			}
			return true
		}
		if ctx.Err() != nil {
			return true
		}
		s.handleFrame(raw)
	}
}

func (s *Session) keepAlive(ctx context.Context, conn Conn) {
	if s.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				if ctx.Err() == nil {
					s.reportTransport("ping", err)
				}
				return
			}
		}
	}
}

func (s *Session) handleFrame(raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		s.reportDecode(err)
		return
	}
	s.metrics.MessageReceived(msg.Type.String())

	if msg.HasStrategies() {
		s.replaceStrategies(msg.Data.Strategies)
	}
	if prices := msg.PriceMap(); prices != nil {
		s.dataMu.Lock()
		s.prices = prices
		s.dataMu.Unlock()
	}

	start := time.Now()
	s.updates.emit(msg)
	s.metrics.ObserveDispatch(time.Since(start))
}

func (s *Session) replaceStrategies(list []wire.Strategy) {
	var total, daily float64
	for _, st := range list {
		total += st.TotalPnL()
		daily += st.DailyPnL()
	}

	s.dataMu.Lock()
	s.strategies = list
	s.dataMu.Unlock()

	s.metrics.UpdateSnapshot(len(list), total, daily)
	s.snapshots.emit(slices.Clone(list))
}

func (s *Session) markOpen(gen uint64, conn Conn) bool {
	s.mu.Lock()
	if s.gen != gen || s.cancel == nil {
		s.mu.Unlock()
		return false
	}
	s.conn = conn
	s.setStateLocked(Open)
	s.mu.Unlock()

	s.metrics.Connected()
	s.drainStates()
	return true
}

// markClosed moves a still-current connection to Disconnected. It reports
// whether conn was the session's live connection.
func (s *Session) markClosed(gen uint64, conn Conn) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	live := conn != nil && s.conn == conn
	s.conn = nil
	s.setStateLocked(Disconnected)
	s.mu.Unlock()

	s.drainStates()
	return live
}

func (s *Session) beginReconnect(gen uint64) bool {
	s.mu.Lock()
	if s.gen != gen || s.state != Disconnected {
		s.mu.Unlock()
		return false
	}
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	s.drainStates()
	return true
}

// finish releases the run context when a loop ends on its own.
func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// setStateLocked must be called with s.mu held.
func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.metrics.SetState(int(st))

	s.notifyMu.Lock()
	s.pending = append(s.pending, st)
	s.notifyMu.Unlock()
}

func (s *Session) drainStates() {
	s.notifyMu.Lock()
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.notifyMu.Unlock()
		s.states.emit(next)
		s.notifyMu.Lock()
	}
	s.draining = false
	s.notifyMu.Unlock()
}

func (s *Session) reportTransport(op string, err error) {
	s.logger.Warn().Err(err).Str("op", op).Msg("Feed transport error")
	s.metrics.TransportError(op)
	s.record(storage.Entry{Kind: storage.KindTransport, Op: op, Error: err.Error()})
	s.pushError(&TransportError{Op: op, Err: err})
}

func (s *Session) reportDecode(err error) {
	entry := storage.Entry{Kind: storage.KindDecode, Error: err.Error()}
	var decErr *wire.DecodeError
	if errors.As(err, &decErr) {
		entry.Raw = string(decErr.Raw)
	}

	s.logger.Warn().Err(err).Str("raw", entry.Raw).Msg("failed to decode feed message")
	s.metrics.DecodeError()
	s.record(entry)
	s.pushError(err)
}

func (s *Session) observerPanicked(id ObserverID, p any) {
	err := fmt.Errorf("observer %d panicked: %v", id, p)
	s.logger.Error().Err(err).Msg("observer failed")
	s.metrics.ObserverPanic()
	s.pushError(err)
}

func (s *Session) record(e storage.Entry) {
	if s.journal == nil {
		return
	}
	e.Timestamp = time.Now()
	e.Session = s.id
	if err := s.journal.Record(e); err != nil {
		s.logger.Debug().Err(err).Msg("failed to journal diagnostic entry")
	}
}

func (s *Session) pushError(err error) {
	if s.errs == nil {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}
