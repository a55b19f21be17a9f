// Package notify はエンティティキャッシュの状態遷移をWebSocketで
// Presentation Layerへ配信するハブを提供する。
//
// ハブはキャッシュの購読者として登録され、遷移ごとのスナップショットを
// 接続中の全クライアントへブロードキャストする。キャッシュ側の
// 逐次一貫性保証を壊さないよう、ブロードキャストはクライアントごとの
// 送信キューへの投入のみを行い、ネットワーク書き込みでブロックしない。
// 送信キューが溢れたクライアントは切断される（遅いクライアントが
// キャッシュの遷移を堰き止めることはない）。
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/userdesk/internal/model"
)

// SnapshotEvent はクライアントへ配信されるキャッシュスナップショット。
type SnapshotEvent struct {
	Type  string       `json:"type"`
	Users []model.User `json:"users"`
	Count int          `json:"count"`
}

const (
	// sendBufferSize はクライアントごとの送信キューのサイズ。
	sendBufferSize = 16
	// writeWait はWebSocket書き込みのタイムアウト。
	writeWait = 10 * time.Second
)

// Hub は接続中のWebSocketクライアント集合を管理し、
// スナップショットをブロードキャストする。
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *slog.Logger
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register はクライアントをハブに登録し、書き込みループを開始する。
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	h.logger.Info("WebSocketクライアントが接続しました",
		slog.Int("clients", h.ClientCount()),
	)
	return client
}

// unregister はクライアントをハブから除去する。
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// BroadcastSnapshot は全クライアントにスナップショットイベントを配信する。
// キャッシュの購読コールバックから呼び出される。
func (h *Hub) BroadcastSnapshot(users []model.User) {
	event := SnapshotEvent{
		Type:  "snapshot",
		Users: users,
		Count: len(users),
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("スナップショットイベントのエンコードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	slow := make([]*Client, 0)
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 送信キューが溢れたクライアントは切断対象にする
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("送信キューが溢れたためWebSocketクライアントを切断します")
		h.unregister(client)
	}
}

// ClientCount は接続中のクライアント数を返す。テストおよびメトリクス用。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client はWebSocket接続1本を表す。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// writePump は送信キューのメッセージを接続へ書き込む。
// キューがクローズされたら接続を閉じて終了する。
func (c *Client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.hub.unregister(c)
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump はクライアントからの受信を読み捨て、切断を検知する。
// このエンドポイントはサーバーからの一方向配信専用。
func (c *Client) readPump() {
	defer c.hub.unregister(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
