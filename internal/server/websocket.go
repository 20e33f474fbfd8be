package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/factorysim/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ClientSession is one connected WebSocket client.
type ClientSession struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  int64 // atomic, unix nanos
}

func newClientSession(conn *websocket.Conn, buffer int) *ClientSession {
	now := time.Now()
	return &ClientSession{
		ID:          uuid.NewString(),
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: now,
		conn:        conn,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
		lastSeen:    now.UnixNano(),
	}
}

// LastSeen is when the client last sent a message.
func (c *ClientSession) LastSeen() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastSeen))
}

// enqueue never blocks; it reports false when the frame was dropped.
func (c *ClientSession) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close signals the write pump, which sends a close frame and releases the
// connection.
func (c *ClientSession) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt64(&s.clientCount) >= int64(s.config.MaxClients) {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}
	conn.SetReadLimit(s.config.ReadLimit)

	session := newClientSession(conn, s.config.SendBuffer)
	s.clients.Store(session.ID, session)
	atomic.AddInt64(&s.clientCount, 1)

	// Stop may have swept the sessions while this upgrade was in flight.
	if atomic.LoadInt32(&s.closed) == 1 {
		s.disconnect(session)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	s.logger.Info("Client connected",
		log.String("client_id", session.ID),
		log.String("remote_addr", session.RemoteAddr))

	if frame, err := encode(ServerMessage{Type: MessageWelcome, ClientID: session.ID}); err == nil {
		session.enqueue(frame)
	}
	snap := s.engine.Snapshot()
	if frame, err := encode(ServerMessage{Type: MessageSnapshot, Snapshot: &snap}); err == nil {
		session.enqueue(frame)
	}

	go s.writePump(session)
	s.readPump(session)
}

func (s *Server) readPump(session *ClientSession) {
	defer s.disconnect(session)

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Client read failed",
					log.String("client_id", session.ID),
					log.Error(err))
			}
			return
		}
		atomic.StoreInt64(&session.lastSeen, time.Now().UnixNano())

		msg, err := decode(data)
		if err == nil {
			err = apply(s.engine, msg)
		}
		if err != nil {
			s.logger.Debug("Client message rejected",
				log.String("client_id", session.ID),
				log.Error(err))
			if frame, encErr := encode(ServerMessage{Type: MessageError, Error: err.Error()}); encErr == nil {
				session.enqueue(frame)
			}
		}
	}
}

func (s *Server) writePump(session *ClientSession) {
	defer func() {
		session.close()
		_ = session.conn.Close()
	}()

	for {
		select {
		case frame := <-session.send:
			_ = session.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := session.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("Client write failed",
					log.String("client_id", session.ID),
					log.Error(err))
				return
			}
		case <-session.done:
			_ = session.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) disconnect(session *ClientSession) {
	if _, loaded := s.clients.LoadAndDelete(session.ID); !loaded {
		return
	}
	atomic.AddInt64(&s.clientCount, -1)
	session.close()

	s.logger.Info("Client disconnected",
		log.String("client_id", session.ID),
		log.Duration("connected_for", time.Since(session.ConnectedAt)))
}
