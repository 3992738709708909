package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Client to server events.
const (
	eventJoinChat    = "join_chat"
	eventLeaveChat   = "leave_chat"
	eventSendMessage = "send_message"
	eventError       = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 64
	eventTimeout   = 10 * time.Second
)

var (
	errConnClosed = errors.New("connection closed")
	errSlowConn   = errors.New("send buffer full")
)

// wsConn is one websocket session. The read loop runs on the handler
// goroutine; writes go through send and a dedicated write loop.
type wsConn struct {
	id     string
	userID bson.ObjectID
	conn   *websocket.Conn
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, userID bson.ObjectID) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues frame for writing. It never blocks: a full buffer means the
// client is too slow and the frame is refused; the hub then closes it.
func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSlowConn
	}
}

// Close implements Subscriber.
func (c *wsConn) Close() { c.close() }

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// sendError queues an error frame for this connection only.
func (c *wsConn) sendError(msg string) {
	frame, err := encodeFrame(eventError, gin.H{"message": msg})
	if err != nil {
		return
	}
	if err := c.Send(frame); err != nil {
		log.Printf("ws %s: error frame dropped: %v", c.id, err)
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			return origin == "" || len(s.origins) == 0 || slices.Contains(s.origins, origin)
		},
	}
}

// serveWS authenticates the token query parameter (or bearer header) and
// upgrades the request to a websocket session.
func (s *Server) serveWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	_, uid, err := s.authenticate(token)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wc := newWSConn(conn, uid)
	log.Printf("ws %s connected (user %s)", wc.id, uid.Hex())

	go s.writePump(wc)
	s.readPump(wc)
}

// readPump handles inbound frames until the connection fails, then removes
// the connection from every room.
func (s *Server) readPump(wc *wsConn) {
	defer func() {
		n := s.hub.LeaveAll(wc.id)
		wc.close()
		log.Printf("ws %s disconnected, left %d rooms", wc.id, n)
	}()

	wc.conn.SetReadLimit(maxMessageSize)
	_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws %s read error: %v", wc.id, err)
			}
			return
		}

		var in Frame
		if err := json.Unmarshal(raw, &in); err != nil {
			wc.sendError("Malformed frame")
			continue
		}
		s.handleFrame(wc, in)
	}
}

func (s *Server) handleFrame(wc *wsConn, in Frame) {
	switch in.Event {
	case eventJoinChat:
		chatID, ok := chatIDFrom(in.Data)
		if !ok {
			wc.sendError("Missing chatId")
			return
		}
		s.hub.Join(chatID, wc)

	case eventLeaveChat:
		chatID, ok := chatIDFrom(in.Data)
		if !ok {
			wc.sendError("Missing chatId")
			return
		}
		s.hub.Leave(chatID, wc.id)

	case eventSendMessage:
		var req struct {
			ChatID  string `json:"chatId"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(in.Data, &req); err != nil || req.ChatID == "" {
			wc.sendError("Missing chatId or content")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		// the room broadcast delivers the saved message back to this client
		if _, err := s.msgs.SendMessage(ctx, req.ChatID, wc.userID, req.Content); err != nil {
			if apperr.KindOf(err) == apperr.Internal {
				log.Printf("ws %s send_message: %v", wc.id, err)
			}
			wc.sendError(apperr.Message(err))
		}

	default:
		wc.sendError("Unknown event")
	}
}

// chatIDFrom accepts either "<id>" or {"chatId": "<id>"}.
func chatIDFrom(raw json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, id != ""
	}
	var obj struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ChatID, obj.ChatID != ""
	}
	return "", false
}

// writePump drains the send buffer to the socket and keeps it alive with pings.
func (s *Server) writePump(wc *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wc.close()
	}()

	for {
		select {
		case frame := <-wc.send:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-wc.done:
			_ = wc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
