package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/sakibstark11/geoplotter/internal/adapters/nats"
	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

// wsMessage is sent from a widget to the server.
type wsMessage struct {
	Action string           `json:"action"` // "ready" | "viewport" | "snapshot"
	Center *domain.GeoPoint `json:"center,omitempty"`
	Zoom   float64          `json:"zoom,omitempty"`
}

// WebSocketHandler returns a handler that attaches a map widget to a view.
// The widget connects to /ws?view=<id>, receives a snapshot of the surface,
// then every surface event relayed from NATS. It reports readiness and
// viewport changes back:
//
//	{"action":"ready"}
//	{"action":"viewport","center":{"lat":23.81,"lon":90.41},"zoom":9}
//	{"action":"snapshot"}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		viewID := c.Query("view")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		sendSnapshot := func() error {
			snap, err := deps.Views.Snapshot(viewID)
			if err != nil {
				return err
			}
			return writeJSON(map[string]interface{}{"type": "snapshot", "view_id": viewID, "surface": snap})
		}

		if viewID == "" {
			_ = writeJSON(map[string]string{"error": "view query parameter is required"})
			return
		}
		if err := sendSnapshot(); err != nil {
			_ = writeJSON(map[string]string{"error": err.Error()})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		slog.Info("ws widget attached", "view", viewID, "remote", remoteAddr)

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SurfaceSubject(viewID), func(msg *nats.Msg) {
				mu.Lock()
				defer mu.Unlock()
				_ = c.WriteMessage(websocket.TextMessage, msg.Data)
			})
			if err != nil {
				slog.Warn("ws surface subscribe failed", "view", viewID, "error", err)
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			defer func() { _ = sub.Unsubscribe() }()
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "ready":
				err = deps.Views.MarkReady(viewID)
			case "viewport":
				if m.Center == nil {
					_ = writeJSON(map[string]string{"error": "viewport requires center"})
					continue
				}
				err = deps.Views.SetViewport(viewID, domain.Viewport{Center: *m.Center, Zoom: m.Zoom})
			case "snapshot":
				err = sendSnapshot()
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
				continue
			}
			if err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				break
			}
			_ = writeJSON(map[string]string{"status": "ok", "action": m.Action})
		}

		slog.Info("ws widget detached", "view", viewID, "remote", remoteAddr)
	}
}
