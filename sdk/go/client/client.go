// Package client provides a WebSocket client SDK for the factory simulator
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/engine"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/server"
)

// Client represents a connection to a simulator server
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Client state
	id string

	snapshots chan engine.Snapshot
	notices   chan notice.Notice
	errs      chan error

	// Event handlers
	eventHandlers map[EventType][]EventHandler
	handlerMutex  sync.RWMutex

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool
	done      chan struct{}

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

// Config holds configuration for the client
type Config struct {
	// ServerURL is the WebSocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL      string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Buffer of each delivery channel. When a channel is full the oldest
	// pending value is replaced.
	MessageBufferSize int
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:         "ws://localhost:8080/ws",
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      5 * time.Second,
		MessageBufferSize: 16,
	}
}

// EventHandler defines a function type for handling client events
type EventHandler func(event Event)

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

// NewClient creates a client. A nil logger discards output.
func NewClient(config Config, logger log.Log) (*Client, error) {
	if _, err := url.Parse(config.ServerURL); err != nil || config.ServerURL == "" {
		return nil, fmt.Errorf("%w: server url %q", ErrInvalidConfig, config.ServerURL)
	}
	def := DefaultClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = def.MessageBufferSize
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		snapshots:     make(chan engine.Snapshot, config.MessageBufferSize),
		notices:       make(chan notice.Notice, config.MessageBufferSize),
		errs:          make(chan error, config.MessageBufferSize),
		eventHandlers: make(map[EventType][]EventHandler),
		done:          make(chan struct{}),
		config:        config,
		logger:        logger.With(log.String("component", "client")),
	}, nil
}

// Dial creates a client with default settings and connects it.
func Dial(ctx context.Context, serverURL string) (*Client, error) {
	cfg := DefaultClientConfig()
	cfg.ServerURL = serverURL
	c, err := NewClient(cfg, nil)
	if err != nil {
		return nil, err
	}
	if err = c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the WebSocket and waits for the server greeting.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	c.logger.Info("Connecting to server", log.String("url", c.config.ServerURL))

	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.ServerURL, nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrConnectionTimeout
		}
		return fmt.Errorf("client: dial: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var welcome server.ServerMessage
	if err = conn.ReadJSON(&welcome); err != nil || welcome.Type != server.MessageWelcome {
		_ = conn.Close()
		atomic.StoreInt32(&c.connected, 0)
		return fmt.Errorf("%w: expected welcome", ErrInvalidMessage)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.writeMu.Lock()
	c.conn = conn
	c.id = welcome.ClientID
	c.writeMu.Unlock()

	c.workerGroup.Add(1)
	go c.messageReceiver()

	c.logger.Info("Connected to server", log.String("client_id", c.id))
	c.emitEvent(Event{Type: EventTypeConnected, Timestamp: time.Now()})
	return nil
}

// Close disconnects and releases the client.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)

	var err error
	if atomic.LoadInt32(&c.connected) == 1 {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	}
	c.workerGroup.Wait()

	c.logger.Info("Client closed")
	return err
}

// ID is the session id assigned by the server.
func (c *Client) ID() string { return c.id }

// IsConnected reports whether the connection is up.
func (c *Client) IsConnected() bool { return atomic.LoadInt32(&c.connected) == 1 }

// Snapshots delivers the periodic state broadcasts.
func (c *Client) Snapshots() <-chan engine.Snapshot { return c.snapshots }

// Notices delivers notices as the server raises them.
func (c *Client) Notices() <-chan notice.Notice { return c.notices }

// Errors delivers the server's rejections of sent messages.
func (c *Client) Errors() <-chan error { return c.errs }

// OnEvent registers a handler for connection events.
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

// SendAction sends a control action.
func (c *Client) SendAction(a control.Action) error {
	return c.send(server.ClientMessage{Type: server.MessageAction, Action: &a})
}

// Select selects an entity.
func (c *Client) Select(id model.EntityID) error {
	return c.send(server.ClientMessage{Type: server.MessageSelect, Target: id})
}

// Deselect clears the selection.
func (c *Client) Deselect() error {
	return c.send(server.ClientMessage{Type: server.MessageDeselect})
}

// Operate drives a control of the selected entity's detail view.
func (c *Client) Operate(control string, value float64) error {
	return c.send(server.ClientMessage{Type: server.MessageOperate, Control: control, Value: value})
}

func (c *Client) send(msg server.ClientMessage) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil || atomic.LoadInt32(&c.connected) == 0 {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *Client) messageReceiver() {
	defer c.workerGroup.Done()
	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now()})
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("Connection lost", log.Error(err))
				c.emitEvent(Event{Type: EventTypeError, Timestamp: time.Now(), Error: err})
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg server.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to decode message", log.Error(err))
		return
	}

	switch msg.Type {
	case server.MessageSnapshot:
		if msg.Snapshot != nil {
			deliver(c.snapshots, *msg.Snapshot)
		}
	case server.MessageNotice:
		if msg.Notice != nil {
			deliver(c.notices, *msg.Notice)
		}
	case server.MessageError:
		deliver(c.errs, error(fmt.Errorf("%w: %s", ErrInvalidMessage, msg.Error)))
	default:
		c.logger.Debug("Ignoring message", log.String("type", string(msg.Type)))
	}
}

// deliver never blocks the receiver; a full channel drops its oldest value.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
