package transport

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-plant-analyzer/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

func (h *handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" ||
				slices.Contains(h.cfg.AllowedOrigins, "*") ||
				slices.Contains(h.cfg.AllowedOrigins, origin)
		},
	}
}

// GET /analysis/stream: the current state, then every transition, as JSON
// text frames.
func (h *handler) streamState(c *gin.Context) {
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		logger.WithError(err).WithField("request_id", c.GetString("request_id")).
			Warn("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	states, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	log := logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"ip":         c.ClientIP(),
	})
	log.Debug("State stream opened")

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-states:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				log.WithError(err).Debug("State stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debug("State stream closed by client")
			return
		}
	}
}

// readPump discards client frames and handles pongs. closed is closed when
// the connection drops.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Debug("State stream read error")
			}
			return
		}
	}
}
