package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

// wsHandler streams the hub's events as JSON text frames. Frames sent by
// the client are discarded.
func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		hub := s.sseHub
		client := make(chan SSEEvent, 8)
		select {
		case hub.register <- client:
		case <-hub.done:
			writeClose(conn, websocket.CloseGoingAway, "event stream closed")
			return
		}
		unregister := func() {
			select {
			case hub.unregister <- client:
			case <-hub.done:
			}
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						s.logger.Debug("websocket read", zap.Error(err))
					}
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case event, ok := <-client:
				if !ok {
					writeClose(conn, websocket.CloseGoingAway, "server shutting down")
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(event); err != nil {
					unregister()
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					unregister()
					return
				}
			case <-closed:
				unregister()
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(wsWriteWait))
}
