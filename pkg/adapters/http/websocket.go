package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 64 * 1024
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Socket message types.
const (
	msgCommand = "command"
	msgAck     = "ack"
	msgError   = "error"
)

// canvasRequest is an edit sent by a canvas client.
// Type is one of add_node, move_node, bind_step, remove_node, connect, remove_edge or save.
type canvasRequest struct {
	Type     string          `json:"type"`
	Ref      string          `json:"ref,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Node     domain.NodeID   `json:"node,omitempty"`
	Edge     domain.EdgeID   `json:"edge,omitempty"`
	X        float64         `json:"x,omitempty"`
	Y        float64         `json:"y,omitempty"`
	From     domain.NodeID   `json:"from,omitempty"`
	To       domain.NodeID   `json:"to,omitempty"`
	FromPort string          `json:"from_port,omitempty"`
	ToPort   string          `json:"to_port,omitempty"`
	Step     json.RawMessage `json:"step,omitempty"`
}

// canvasMessage is sent to the client: a canvas command, or the outcome of a request.
type canvasMessage struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Command json.RawMessage `json:"command,omitempty"`
	Status  int             `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var errBadRequest = errors.New("bad request")

// canvasClient is one WebSocket connection bound to a session.
type canvasClient struct {
	server    *Server
	conn      *websocket.Conn
	sessionID string
}

// handleWebSocket upgrades the connection and serves the session's canvas.
// Canvas commands are pushed as they happen and client edits are applied in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "session_id", id, "err", err)
		return
	}

	s.logger.Info("WebSocket: Client connected", "session_id", id)
	c := &canvasClient{server: s, conn: conn, sessionID: id}
	c.run(context.WithoutCancel(r.Context()))
	s.logger.Info("WebSocket: Client disconnected", "session_id", id)
}

func (c *canvasClient) run(ctx context.Context) {
	events, unsubscribe := c.server.streams.Subscribe(c.sessionID)
	defer func() {
		unsubscribe()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	done := make(chan struct{})
	defer close(done)
	go c.readMessages(incoming, done)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			if !c.send(c.handle(ctx, message)) {
				return
			}

		case ev, ok := <-events:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.send(canvasMessage{Type: msgCommand, Command: json.RawMessage(ev.Data)}) {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readMessages feeds incoming until the connection fails or done is closed.
func (c *canvasClient) readMessages(incoming chan<- []byte, done <-chan struct{}) {
	defer close(incoming)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case incoming <- message:
		case <-done:
			return
		}
	}
}

func (c *canvasClient) send(msg canvasMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.server.logger.Error("WebSocket write failed", "session_id", c.sessionID, "err", err)
		return false
	}
	return true
}

// handle applies one client request and reports the outcome.
func (c *canvasClient) handle(ctx context.Context, message []byte) canvasMessage {
	var req canvasRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return canvasMessage{Type: msgError, Status: http.StatusBadRequest, Error: fmt.Sprintf("invalid message: %v", err)}
	}

	if err := c.apply(ctx, req); err != nil {
		status := statusFor(err)
		if errors.Is(err, errBadRequest) {
			status = http.StatusBadRequest
		}
		return canvasMessage{Type: msgError, Ref: req.Ref, Status: status, Error: err.Error()}
	}
	return canvasMessage{Type: msgAck, Ref: req.Ref}
}

func (c *canvasClient) apply(ctx context.Context, req canvasRequest) error {
	sessions := c.server.sessions

	switch req.Type {
	case "save":
		return sessions.Save(ctx, c.sessionID)

	case "add_node":
		kind, err := domain.ParseNodeKind(req.Kind)
		if err != nil {
			return err
		}
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			_, err := ed.AddNode(ctx, kind, domain.Position{X: req.X, Y: req.Y})
			return err
		})

	case "bind_step":
		step, err := decodeStep(bytes.NewReader(req.Step))
		if err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			_, err := ed.BindStep(ctx, req.Node, step)
			return err
		})

	case "move_node":
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			return ed.Move(ctx, req.Node, domain.Position{X: req.X, Y: req.Y})
		})

	case "remove_node":
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			_, err := ed.RemoveNode(ctx, req.Node)
			return err
		})

	case "connect":
		if req.FromPort == "" {
			req.FromPort = domain.DefaultOutput
		}
		if req.ToPort == "" {
			req.ToPort = domain.DefaultInput
		}
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			_, err := ed.Connect(ctx, req.From, req.FromPort, req.To, req.ToPort)
			return err
		})

	case "remove_edge":
		return sessions.WithEditor(ctx, c.sessionID, func(ctx context.Context, ed *stepgraph.Editor) error {
			return ed.RemoveEdge(ctx, req.Edge)
		})
	}
	return fmt.Errorf("%w: unknown type %q", errBadRequest, req.Type)
}
