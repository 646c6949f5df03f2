package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/geld/internal/events"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
)

// HandleEventStream handles GET /api/events/ws. Every bus event is pushed to
// the client as a JSON text message. ?types=A,B restricts the stream.
// Events are dropped for a client that cannot keep up.
func (h *SystemHandlers) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	types := streamTypes(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Reads only watch for the close frame
	ctx := conn.CloseRead(r.Context())

	ch := make(chan *events.Event, streamBuffer)
	ids := make([]uint64, 0, len(types))
	for _, et := range types {
		ids = append(ids, h.bus.Subscribe(et, func(e *events.Event) {
			select {
			case ch <- e:
			default:
				h.log.Warn().Str("event_type", string(e.Type)).Msg("Event stream client too slow, dropping event")
			}
		}))
	}
	defer func() {
		for _, id := range ids {
			h.bus.Unsubscribe(id)
		}
	}()

	h.log.Info().Int("types", len(types)).Msg("Event stream client connected")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Event stream client disconnected")
			return
		case e := <-ch:
			if err := writeEvent(ctx, conn, e); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}

// acceptOptions allows the configured CORS origins. A wildcard disables the origin check.
func (h *SystemHandlers) acceptOptions() *websocket.AcceptOptions {
	for _, o := range h.origins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.origins}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}

// streamTypes parses the types filter. Empty or unknown-only means all types.
func streamTypes(filter string) []events.EventType {
	if strings.TrimSpace(filter) == "" {
		return events.AllEventTypes
	}

	known := make(map[events.EventType]bool, len(events.AllEventTypes))
	for _, et := range events.AllEventTypes {
		known[et] = true
	}

	var out []events.EventType
	for _, t := range strings.Split(filter, ",") {
		et := events.EventType(strings.ToUpper(strings.TrimSpace(t)))
		if known[et] {
			out = append(out, et)
		}
	}
	if len(out) == 0 {
		return events.AllEventTypes
	}
	return out
}
