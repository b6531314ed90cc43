// Package cdp implements a minimal Chrome DevTools Protocol client over
// a single WebSocket connection: command/response correlation by
// message id, per-command timeouts, event subscription, and
// target/session attachment. One connection can host many concurrently
// attached page sessions.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Options tunes the transport.
type Options struct {
	// ConnectTimeout bounds the WebSocket open handshake.
	ConnectTimeout time.Duration // default: 15s

	// CommandTimeout is the default per-command deadline.
	CommandTimeout time.Duration // default: 30s
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 30 * time.Second
	}
	return o
}

// envelope is the CDP wire message, outbound and inbound.
type envelope struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// Event is an inbound message without an id.
type Event struct {
	Method    string
	Params    json.RawMessage
	SessionID string
}

// Handler consumes dispatched events. Handler panics are recovered and
// logged; they never reach the read loop.
type Handler func(Event)

type pendingResult struct {
	result json.RawMessage
	err    error
}

// Client is the CDP transport. Safe for concurrent use; many page
// sessions multiplex over the one connection.
type Client struct {
	url  string
	opts Options
	log  *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan pendingResult
	closed   bool
	closeErr error

	handlersMu  sync.RWMutex
	handlers    map[string]map[int64]Handler
	nextSubID   int64
	done        chan struct{}
	doneOnce    sync.Once
}

// NewClient creates a disconnected transport for the given WebSocket URL.
func NewClient(url string, opts Options) *Client {
	return &Client{
		url:      url,
		opts:     opts.withDefaults(),
		log:      slog.Default().With("component", "cdp"),
		pending:  make(map[int64]chan pendingResult),
		handlers: make(map[string]map[int64]Handler),
		done:     make(chan struct{}),
	}
}

// Connect opens the socket and starts the read loop. It fails with
// ConnectionError when no open handshake completes within the timeout.
func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.ConnectTimeout,
		// CDP messages (screenshots in particular) can be large.
		ReadBufferSize:  1 << 20,
		WriteBufferSize: 1 << 20,
	}
	conn, _, err := dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return &ConnectionError{URL: c.url, Err: err}
	}

	c.conn = conn
	go c.readLoop()
	c.log.Debug("transport connected", "url", c.url)
	return nil
}

// Send issues one command and blocks until its response, its own
// timeout, or connection close. The message id is the sole correlation
// key; responses arriving out of order still resolve their caller.
func (c *Client) Send(ctx context.Context, method string, params any, sessionID string) (json.RawMessage, error) {
	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, &ProtocolError{Code: -1, Message: "marshal params: " + err.Error()}
		}
		rawParams = encoded
	}

	id := c.nextID.Add(1)
	ch := make(chan pendingResult, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	msg := envelope{ID: id, Method: method, Params: rawParams, SessionID: sessionID}
	data, err := json.Marshal(msg)
	if err != nil {
		c.removePending(id)
		return nil, &ProtocolError{Code: -1, Message: "marshal envelope: " + err.Error()}
	}

	c.writeMu.Lock()
	writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.removePending(id)
		return nil, &ConnectionClosedError{Reason: writeErr.Error()}
	}

	timer := time.NewTimer(c.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.result, res.err
	case <-timer.C:
		c.removePending(id)
		return nil, &CommandTimeoutError{Method: method, Timeout: c.opts.CommandTimeout}
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
}

// On registers a handler for an event method and returns its
// unsubscribe function. Multiple handlers per method are supported.
func (c *Client) On(method string, h Handler) (unsubscribe func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.nextSubID++
	subID := c.nextSubID
	if c.handlers[method] == nil {
		c.handlers[method] = make(map[int64]Handler)
	}
	c.handlers[method][subID] = h

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		if set, ok := c.handlers[method]; ok {
			delete(set, subID)
			if len(set) == 0 {
				delete(c.handlers, method)
			}
		}
	}
}

// Close shuts the connection down. All pending commands are rejected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.failPending(&ConnectionClosedError{Code: websocket.CloseNormalClosure, Reason: "client closed"})
	return err
}

func (c *Client) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failPending rejects every in-flight command and marks the transport
// unusable for further sends.
func (c *Client) failPending(closeErr error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = closeErr
	waiting := c.pending
	c.pending = make(map[int64]chan pendingResult)
	c.mu.Unlock()

	for _, ch := range waiting {
		ch <- pendingResult{err: closeErr}
	}
	c.doneOnce.Do(func() { close(c.done) })
}

// readLoop is the single reader. Messages with an id resolve pending
// commands; everything else is an event.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			closeErr := &ConnectionClosedError{Reason: err.Error()}
			var wsClose *websocket.CloseError
			if errors.As(err, &wsClose) {
				closeErr = &ConnectionClosedError{Code: wsClose.Code, Reason: wsClose.Text}
			}
			c.failPending(closeErr)
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping unparseable frame", "error", err)
			continue
		}

		if msg.ID != 0 {
			c.resolve(msg)
			continue
		}
		c.dispatch(Event{Method: msg.Method, Params: msg.Params, SessionID: msg.SessionID})
	}
}

func (c *Client) resolve(msg envelope) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()
	if !ok {
		// Late response after a command timeout; nothing to resolve.
		return
	}

	if msg.Error != nil {
		ch <- pendingResult{err: &ProtocolError{Code: msg.Error.Code, Message: msg.Error.Message}}
		return
	}
	ch <- pendingResult{result: msg.Result}
}

func (c *Client) dispatch(ev Event) {
	c.handlersMu.RLock()
	set := c.handlers[ev.Method]
	handlers := make([]Handler, 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("event handler panic", "method", ev.Method, "panic", r)
				}
			}()
			h(ev)
		}()
	}
}
