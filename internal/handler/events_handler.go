package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/userdesk/internal/notify"
)

// EventsHandler はキャッシュ遷移のWebSocket配信ハンドラー。
type EventsHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewEventsHandler はEventsHandlerを生成する。
// allowedOriginと一致するOriginヘッダーを持つ接続のみ受け付ける。
func NewEventsHandler(hub *notify.Hub, allowedOrigin string) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 同一オリジン（Originヘッダーなし）も許可する
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Subscribe はWebSocket接続を確立し、キャッシュの状態遷移を配信する。
// GET /api/events
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade失敗時はupgraderがレスポンスを書き込み済み
		slog.Warn("WebSocketアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}

	h.hub.Register(conn)
}
