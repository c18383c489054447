package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dashboard-portfolios/internal/cfg"
	"dashboard-portfolios/internal/dashboard"
	"dashboard-portfolios/internal/feed"
	"dashboard-portfolios/internal/metrics"
	"dashboard-portfolios/internal/storage"
	"dashboard-portfolios/internal/wire"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLogLevel(c.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	journal := initializeJournal(c)
	if journal != nil {
		defer journal.Close()
	}

	errs := make(chan error, 32)
	session := newSession(c, m, journal, errs)
	defer session.Close()

	session.OnState(func(st feed.State) {
		log.Info().Str("state", st.String()).Msg("Feed state changed")
	})
	session.OnUpdate(logUpdate)

	var dash *dashboard.Dashboard
	if c.MetricsPort > 0 {
		dash = dashboard.New(session, prometheus.DefaultGatherer, c.MetricsPort)
		if err := dash.Start(); err != nil {
			log.Fatal().Err(err).Msg("dashboard start failed")
		}
		defer dash.Stop()
	}

	var wg sync.WaitGroup
	startErrorHandler(ctx, &wg, errs)

	session.Connect()
	waitForShutdown(ctx, cancel, &wg)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Err(err).Str("level", level).Msg("invalid log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// initializeJournal opens the diagnostic journal if DATA_PATH is configured
func initializeJournal(c cfg.Settings) *storage.Journal {
	if c.DataPath == "" {
		return nil
	}
	journal, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("journal initialization failed, continuing without diagnostics journal")
		return nil
	}
	if pruned, err := journal.Prune(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
		log.Warn().Err(err).Msg("failed to prune diagnostics journal")
	} else if pruned > 0 {
		log.Info().Int("entries", pruned).Msg("pruned diagnostics journal")
	}
	return journal
}

func newSession(c cfg.Settings, m *metrics.Metrics, journal *storage.Journal, errs chan error) *feed.Session {
	opts := []feed.Option{feed.WithMetrics(m), feed.WithErrors(errs)}
	if journal != nil {
		opts = append(opts, feed.WithJournal(journal))
	}

	return feed.New(feed.Config{
		URL:              c.WsURL,
		PingInterval:     c.Ping,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
		ReadLimit:        c.ReadLimit,
		Reconnect:        c.Reconnect,
		ReconnectMin:     c.ReconnectMin,
		ReconnectMax:     c.ReconnectMax,
	}, opts...)
}

func logUpdate(msg wire.Message) {
	event := log.Debug().Str("type", msg.Type.String())
	if msg.HasStrategies() {
		var total float64
		for _, s := range msg.Data.Strategies {
			total += s.TotalPnL()
		}
		event = event.Int("strategies", len(msg.Data.Strategies)).Float64("total_pnl", total)
	}
	if id, ok := msg.StrategyID(); ok {
		event = event.Int64("strategy_id", id)
	}
	if n := len(msg.Data.Prices); n > 0 {
		event = event.Int("prices", n)
	}
	event.Msg("Feed message")
}

// startErrorHandler drains session errors; the session has already logged
// and counted them.
func startErrorHandler(ctx context.Context, wg *sync.WaitGroup, errs chan error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				var decErr *wire.DecodeError
				var transportErr *feed.TransportError
				switch {
				case errors.As(err, &decErr):
					log.Debug().Err(err).Msg("dropped undecodable frame")
				case errors.As(err, &transportErr):
					log.Debug().Err(err).Str("op", transportErr.Op).Msg("transport failure")
				default:
					log.Error().Err(err).Msg("background error")
				}
			}
		}
	}()
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
