package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"nftickets/core/events"
	"nftickets/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
)

type eventPayload struct {
	Seq   uint64       `json:"seq"`
	Op    string       `json:"op"`
	Index int          `json:"index"`
	Event *types.Event `json:"event"`
}

// handleEventsWS streams committed events. The optional cursor query
// parameter replays retained events committed after that sequence; the type
// parameter keeps only events whose type starts with the given prefix.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Reads are never expected; CloseRead handles pings and peer closure.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor, prefix string) error {
	updates, cancel, backlog := s.node.Events().Subscribe(ctx, cursor)
	defer cancel()

	for _, update := range backlog {
		if err := writeEvent(ctx, conn, update, prefix); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, update, prefix); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, update events.Committed, prefix string) error {
	if prefix != "" && !strings.HasPrefix(update.EventType(), prefix) {
		return nil
	}
	data, err := json.Marshal(eventPayload{Seq: update.Seq, Op: update.Op, Index: update.Index, Event: update.Evt})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
