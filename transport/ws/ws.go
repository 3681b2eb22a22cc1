// Package ws implements the session transport boundary over WebSocket.
// Messages are named events carried in a small JSON envelope, and the
// session token is presented once, as a bearer credential during the
// handshake. Token refresh over an established connection is not supported;
// callers reconnect with a fresh token instead.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"

	session "github.com/birbieup/go-session"
)

// envelope frames every named message on the wire.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Dialer implements session.Dialer on gorilla/websocket.
type Dialer struct {
	// Dialer overrides the underlying websocket dialer; defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger receives read-pump errors. Defaults to dropping them.
	Logger session.Logger
}

var _ session.Dialer = (*Dialer)(nil)

// Dial opens the connection, presenting token as an Authorization bearer
// header. http/https endpoints are rewritten to their ws/wss equivalents.
func (d *Dialer) Dial(ctx context.Context, endpoint, bearerToken string) (session.Conn, error) {
	wsURL, err := toWebSocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if bearerToken != "" {
		header.Set("Authorization", "Bearer "+bearerToken)
	}

	wsConn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "websocket dial failed")
	}

	conn := &Conn{
		ws:       wsConn,
		logger:   d.Logger,
		handlers: map[string][]func([]byte){},
		done:     make(chan struct{}),
	}
	go conn.readPump()

	return conn, nil
}

// Conn is a live WebSocket connection carrying named messages. Writes are
// serialized internally; gorilla connections support one concurrent writer.
type Conn struct {
	ws     *websocket.Conn
	logger session.Logger

	writeMu sync.Mutex

	handlerMu sync.Mutex
	handlers  map[string][]func([]byte)

	closeOnce sync.Once
	done      chan struct{}
}

var _ session.Conn = (*Conn)(nil)

// On registers a handler for a named event. Multiple handlers per event are
// invoked in registration order.
func (c *Conn) On(event string, handler func(payload []byte)) {
	if handler == nil {
		return
	}
	c.handlerMu.Lock()
	c.handlers[event] = append(c.handlers[event], handler)
	c.handlerMu.Unlock()
}

// Emit sends a named event with a JSON-encoded payload.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to encode event payload")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return goerrors.New("connection closed", goerrors.CategoryOperation)
	default:
	}

	if err := c.ws.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "websocket write failed")
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			closeDeadline(),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readPump() {
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				if c.logger != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("websocket read failed: %v", err)
				}
				_ = c.Close()
			}
			return
		}

		c.handlerMu.Lock()
		handlers := append([]func([]byte){}, c.handlers[env.Event]...)
		c.handlerMu.Unlock()

		for _, handler := range handlers {
			handler(env.Data)
		}
	}
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func toWebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid endpoint url")
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", goerrors.New("unsupported endpoint scheme: "+u.Scheme, goerrors.CategoryBadInput)
	}

	return u.String(), nil
}
