package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// VersionSource reports the current store version
type VersionSource interface {
	Version() uint64
}

// Handler upgrades requests and streams hub events to the client
type Handler struct {
	hub     *Hub
	version VersionSource
	log     zerolog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(hub *Hub, version VersionSource, log zerolog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		version: version,
		log:     log.With().Str("component", "stream_handler").Logger(),
	}
}

// ServeHTTP handles GET /api/stream
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// clear the server-wide deadlines, the hijacked conn would inherit them
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")

	id, events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)

	// clients only listen; CloseRead cancels ctx once the peer goes away
	ctx := conn.CloseRead(r.Context())

	h.log.Debug().Str("client", id).Msg("Client connected")

	ready := Event{Type: EventReady, Version: h.version.Version(), Timestamp: time.Now().UTC()}
	if err := write(ctx, conn, ready); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("client", id).Msg("Client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Debug().Err(err).Str("client", id).Msg("Write failed")
				}
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
