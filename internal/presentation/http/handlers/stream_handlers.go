package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamHandlers pushes wizard events to the browser over a websocket.
type StreamHandlers struct {
	state    *services.WizardStateService
	upgrader websocket.Upgrader
	logger   *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers. An empty allowedOrigins list
// accepts same-origin connections only.
func NewStreamHandlers(state *services.WizardStateService, allowedOrigins []string, logger *logging.ChanneledLogger) *StreamHandlers {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(allowed) > 0 {
		up.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	return &StreamHandlers{state: state, upgrader: up, logger: logger}
}

// Stream handles GET /api/v1/wizard/stream
func (h *StreamHandlers) Stream(c *gin.Context) {
	key := middleware.StorageKey(c)
	log := h.logger.WithSession(logging.ChannelWizard, key)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.state.Subscribe(ctx, key)
	if err != nil {
		log.Error("Wizard event subscription failed", "error", err.Error())
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(streamWriteWait))
		return
	}
	log.Debug("Wizard stream connected")

	// The read loop only services control frames; it ends the stream when
	// the client goes away.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	hello := gin.H{"kind": "stream.hello"}
	if state, ok := h.state.Peek(c.Request.Context(), key); ok {
		hello["state"] = state
	}
	if err := h.write(conn, hello); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			log.Debug("Wizard stream disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				log.Debug("Wizard stream write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandlers) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}
