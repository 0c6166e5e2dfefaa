package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seantiz/esgqa/internal/engine"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReplyBuffer  = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsMessage is an inbound push channel message.
type wsMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// wsAuthReply acknowledges an auth message.
type wsAuthReply struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handleRootUpgrade accepts WebSocket upgrades on "/" for clients that dial
// the bare server address. Anything else is an unknown endpoint.
func (s *Server) handleRootUpgrade(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		s.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	s.handleWebSocket(w, r)
}

// handleWebSocket upgrades the connection and pushes job updates once the
// client authenticates with {"type":"auth","token":...}. A failed auth is
// acknowledged with an error and the connection stays open.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := engine.NewSubscriber()
	logger := s.logger.With("conn_id", sub.ID())
	logger.Info("websocket connection established")

	replies := make(chan wsAuthReply, wsReplyBuffer)
	done := make(chan struct{})
	go s.wsWriteLoop(conn, sub, replies, done)

	var identity string
	defer func() {
		close(done)
		if identity != "" {
			s.engine.Broker().Unsubscribe(identity, sub)
		}
		conn.Close()
		logger.Info("websocket connection closed", "user_id", identity)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid websocket message", "error", err)
			continue
		}
		if msg.Type != "auth" || msg.Token == "" {
			continue
		}

		claims, err := s.auth.Verify(msg.Token)
		if err != nil {
			queueReply(replies, wsAuthReply{Type: "auth", Status: "error", Message: "Invalid token"})
			continue
		}

		// Queue the ack before subscribing so it is written ahead of any update.
		queueReply(replies, wsAuthReply{Type: "auth", Status: "success"})
		if identity != "" && identity != claims.UserID {
			s.engine.Broker().Unsubscribe(identity, sub)
		}
		identity = claims.UserID
		s.engine.Broker().Subscribe(identity, sub)
		logger.Debug("websocket authenticated", "user_id", identity)
	}
}

// wsWriteLoop is the connection's only writer. Pending replies are always
// flushed before job updates.
func (s *Server) wsWriteLoop(conn *websocket.Conn, sub *engine.Subscriber, replies <-chan wsAuthReply, done <-chan struct{}) {
	write := func(v any) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return false
		}
		if err := conn.WriteJSON(v); err != nil {
			// Closing unblocks the read loop, which does the cleanup.
			conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case reply := <-replies:
			if !write(reply) {
				return
			}
			continue
		default:
		}

		select {
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case u := <-sub.Updates():
			if !write(u) {
				return
			}
		case <-done:
			return
		}
	}
}

func queueReply(replies chan<- wsAuthReply, reply wsAuthReply) {
	select {
	case replies <- reply:
	default:
		// Client is flooding auth messages faster than they can be acked.
	}
}
