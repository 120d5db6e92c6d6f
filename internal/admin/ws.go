package admin

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1ureka/terrabridge/internal/util"
)

const (
	streamBuffer = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamSender serializes outgoing event messages to one WebSocket.
type streamSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send writes one event as JSON, guarded by a mutex.
func (s *streamSender) send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(e)
}

func (s *streamSender) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeTimeout))
}

// handleWS streams every published event to the client until either side
// goes away.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(streamBuffer)
	defer cancel()

	// The client never sends anything meaningful; reading only detects
	// the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	out := &streamSender{conn: conn}
	for {
		select {
		case e, ok := <-events:
			if !ok {
				out.close(websocket.CloseGoingAway, "stream closed")
				return
			}
			if err := out.send(e); err != nil {
				util.LogDebug("Admin stream to %s ended: %v", c.Request.RemoteAddr, err)
				return
			}
		case <-gone:
			return
		case <-s.ctx.Done():
			out.close(websocket.CloseGoingAway, "server shutting down")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
