package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is one live connection to the feed server.
type Conn interface {
	// Read blocks until the next data frame arrives.
	Read() ([]byte, error)
	// Write sends one text frame.
	Write(data []byte) error
	// Ping sends a keep-alive control frame.
	Ping() error
	Close() error
}

// Dialer opens connections to the feed server.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the feed over gorilla/websocket.
type WebsocketDialer struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewWebsocketDialer(cfg Config) *WebsocketDialer {
	cfg = cfg.withDefaults()
	return &WebsocketDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}

	c := &wsConn{conn: conn, readTimeout: d.cfg.ReadTimeout, writeTimeout: d.cfg.WriteTimeout}

	// Pongs keep an otherwise quiet feed alive.
	conn.SetPongHandler(func(appData string) error {
		log.Debug().Str("url", url).Msg("Received pong from server")
		c.extendReadDeadline()
		return nil
	})

	return c, nil
}

type wsConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

func (c *wsConn) extendReadDeadline() {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

func (c *wsConn) Read() ([]byte, error) {
	for {
		c.extendReadDeadline()
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

// Write serializes writers; gorilla allows only one concurrent writer.
func (c *wsConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout))
}

// Close sends a normal closure frame and tears the socket down without
// waiting for the server's acknowledgment.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.conn.Close()
	})
	return err
}
