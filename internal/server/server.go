package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/engine"
	"github.com/zeusync/factorysim/internal/core/events/bus"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/internal/core/observability/log"
)

// Engine is the simulation surface the server exposes.
type Engine interface {
	Snapshot() engine.Snapshot
	Dispatch(control.Action) error
	Select(model.EntityID) error
	Deselect()
	Operate(name string, value float64)
}

// Server exposes the simulation over HTTP and WebSocket.
type Server struct {
	engine Engine
	events bus.EventBus

	// Client management
	clients     sync.Map // map[string]*ClientSession
	clientCount int64    // atomic

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config   Config
	logger   log.Log
	http     *http.Server
	listener net.Listener
	sub      bus.Subscription

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	MaxClients int

	// BroadcastInterval paces snapshot pushes to WebSocket clients.
	BroadcastInterval time.Duration
	// ReadLimit caps the size of one client message.
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int

	// MetricsPath serves MetricsHandler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:        "127.0.0.1:8080",
		MaxClients:        256,
		BroadcastInterval: 200 * time.Millisecond,
		ReadLimit:         4096,
		WriteTimeout:      5 * time.Second,
		SendBuffer:        16,
		MetricsPath:       "/metrics",
	}
}

// NewServer creates a server around eng. Notices published on events are
// pushed to clients as they happen.
func NewServer(config Config, eng Engine, events bus.EventBus, logger log.Log) *Server {
	def := DefaultServerConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.BroadcastInterval <= 0 {
		config.BroadcastInterval = def.BroadcastInterval
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = def.ReadLimit
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = def.SendBuffer
	}

	s := &Server{
		engine:   eng,
		events:   events,
		config:   config,
		logger:   logger.With(log.String("component", "server")),
		stopChan: make(chan struct{}),
	}
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))
	return s
}

// Start listens and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	if s.events != nil {
		sub, err := s.events.Subscribe(notice.EventRaised, s.onNotice)
		if err != nil {
			_ = ln.Close()
			atomic.StoreInt32(&s.running, 0)
			return fmt.Errorf("server: subscribe notices: %w", err)
		}
		s.sub = sub
	}

	s.startWorkers()
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)
	s.logger.Info("Stopping server")

	close(s.stopChan)
	if s.sub != nil {
		_ = s.sub.Cancel()
	}
	err := s.http.Shutdown(ctx)

	s.clients.Range(func(_, value any) bool {
		value.(*ClientSession).close()
		return true
	})
	s.workerGroup.Wait()

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if it is running. A stopped server cannot be
// started again.
func (s *Server) Close() error {
	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(ctx)
	}
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount: atomic.LoadInt64(&s.clientCount),
		Running:     atomic.LoadInt32(&s.running) == 1,
	}
}

// Stats contains server statistics
type Stats struct {
	ClientCount int64 `json:"clientCount"`
	Running     bool  `json:"running"`
}

func (s *Server) startWorkers() {
	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		s.broadcastLoop()
	}()
}

// broadcastLoop pushes a snapshot to every client each interval.
func (s *Server) broadcastLoop() {
	s.logger.Debug("Broadcaster started")
	defer s.logger.Debug("Broadcaster stopped")

	ticker := time.NewTicker(s.config.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt64(&s.clientCount) == 0 {
				continue
			}
			snap := s.engine.Snapshot()
			s.broadcast(ServerMessage{Type: MessageSnapshot, Snapshot: &snap})
		case <-s.stopChan:
			return
		}
	}
}

// onNotice runs on the engine goroutine; it only queues frames.
func (s *Server) onNotice(e bus.Event) error {
	n, ok := e.Data().(notice.Notice)
	if !ok {
		return nil
	}
	s.broadcast(ServerMessage{Type: MessageNotice, Notice: &n})
	return nil
}

func (s *Server) broadcast(msg ServerMessage) {
	frame, err := encode(msg)
	if err != nil {
		s.logger.Error("Failed to encode broadcast", log.Error(err))
		return
	}
	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		if !session.enqueue(frame) {
			s.logger.Warn("Client send buffer full, dropping frame",
				log.String("client_id", session.ID),
				log.String("type", string(msg.Type)))
		}
		return true
	})
}
