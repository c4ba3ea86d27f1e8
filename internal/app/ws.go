package app

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"campushub/composer/internal/compose"
	"campushub/composer/internal/richtext"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound message size; full document values fit well
	// under this.
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the token check before the
	// upgrade, same as the REST routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// editorMessage is what the editor pushes over the socket: either a
// full value ("value") or a single block rewrite ("edit").
type editorMessage struct {
	Type  string         `json:"type"`
	Doc   *richtext.Node `json:"doc,omitempty"`
	Text  string         `json:"text,omitempty"`
	Block int            `json:"block,omitempty"`
}

// handleEvents upgrades the connection and bridges the session's event
// stream onto it while accepting editor pushes from the peer.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, session *compose.Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	events, cancel := session.Subscribe()
	go writePump(conn, events)
	readPump(conn, session, cancel)
}

// readPump consumes editor messages until the peer goes away, then
// drops the subscription, which ends the write pump.
func readPump(conn *websocket.Conn, session *compose.Session, cancel func()) {
	defer func() {
		cancel()
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg editorMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read: %v", err)
			}
			return
		}
		switch msg.Type {
		case "value":
			session.ApplyExternal(richtext.Value{Doc: msg.Doc, Text: msg.Text})
		case "edit":
			if _, err := session.Edit(msg.Block, msg.Text); err != nil {
				// Stale block index from the peer; the next
				// change event resyncs it.
				continue
			}
		}
	}
}

// writePump forwards session events and keeps the connection alive
// with pings. The subscription channel closing (session closed or
// subscriber cancelled) shuts the socket down.
func writePump(conn *websocket.Conn, events <-chan compose.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
