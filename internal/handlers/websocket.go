package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/idgen"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/service"
)

// Hub はユーザーごとのWebSocket接続を管理します
// どのルームに誰がいるかは SessionCoordinator が管理し、Hub は配送先の接続だけを持ちます
type Hub struct {
	clients map[string]*Client // ユーザーIDをキーとした接続のマップ（1ユーザー1接続）
	mu      sync.RWMutex
}

// Client は1つのWebSocket接続を表します
type Client struct {
	connId  string          // 接続ID（再接続時に古い接続と区別する）
	userId  string          // ユーザーID
	conn    *websocket.Conn // WebSocket接続
	writeMu sync.Mutex      // gorilla/websocket は同時書き込み不可
}

func (c *Client) send(msg WebSocketMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// WebSocketMessage はサーバーから送信するメッセージの構造
type WebSocketMessage struct {
	Type    string `json:"type"`              // メッセージタイプ (例: "message", "user_joined", "user_left")
	Payload any    `json:"payload,omitempty"` // メッセージのペイロード
}

// incomingMessage はクライアントから受信するメッセージの構造
type incomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SendPayload はチャット送信時のペイロード
type SendPayload struct {
	Text string `json:"text"`
}

// ChatPayload はルームの参加者に配送されるチャットメッセージ
type ChatPayload struct {
	From   string        `json:"from"`
	RoomId models.RoomID `json:"roomId"`
	Text   string        `json:"text"`
}

// JoinPayload はルーム参加時のペイロード（受信・通知の両方で使用）
type JoinPayload struct {
	UserId string        `json:"userId,omitempty"`
	RoomId models.RoomID `json:"roomId"`
}

// LeavePayload はユーザー退出時のペイロード
type LeavePayload struct {
	UserId string        `json:"userId"`
	RoomId models.RoomID `json:"roomId"`
}

// WebSocketHandler はWebSocket接続を処理するハンドラー
type WebSocketHandler struct {
	coord    *service.SessionCoordinator
	hub      *Hub
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
// allowedOrigins が空の場合はOriginを確認しません
func NewWebSocketHandler(c *service.SessionCoordinator, allowedOrigins []string, log logrus.FieldLogger) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WebSocketHandler{
		coord: c,
		hub:   &Hub{clients: make(map[string]*Client)},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		log: log,
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. HTTPからWebSocketへのアップグレード
// 2. クライアントの登録（同じユーザーの古い接続は閉じる）
// 3. メッセージ受信ループの開始
// 4. 切断時の自動退出処理とクリーンアップ
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userId := normalizeID(r.URL.Query().Get("userId"))
	if err := validateUserId(userId); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	client := h.hub.register(userId, conn)
	log := h.log.WithFields(logrus.Fields{"user": userId, "conn_id": client.connId})
	defer func() {
		// 再接続で置き換えられた接続の場合はルームから抜けさせない
		if h.hub.unregister(client) {
			h.leave(client, log)
		}
		conn.Close()
	}()

	log.Info("WebSocket connected")

	for {
		var msg incomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WebSocket error")
			}
			break
		}

		switch msg.Type {
		case "message":
			h.handleMessage(client, msg.Payload, log)
		case "join":
			h.handleJoin(client, msg.Payload, log)
		case "leave":
			h.leave(client, log)
		case "ping":
			if err := client.send(WebSocketMessage{Type: "pong"}); err != nil {
				log.WithError(err).Warn("Failed to send pong")
			}
		default:
			log.WithField("type", msg.Type).Debug("Unknown message type")
		}
	}
}

// handleMessage は送信者のルームにいる全員（送信者を含む）へメッセージを配送します
func (h *WebSocketHandler) handleMessage(client *Client, raw json.RawMessage, log logrus.FieldLogger) {
	var p SendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.sendError(client, "invalid message payload")
		return
	}

	ctx := context.Background()
	roomId, ok, err := h.coord.RoomOf(ctx, client.userId)
	if err != nil {
		log.WithError(err).Error("Failed to look up room")
		h.sendError(client, "failed to send message")
		return
	}
	if !ok {
		h.sendError(client, "not in a room")
		return
	}
	h.broadcastToRoom(ctx, roomId, WebSocketMessage{
		Type:    "message",
		Payload: ChatPayload{From: client.userId, RoomId: roomId, Text: p.Text},
	}, "", log)
}

func (h *WebSocketHandler) handleJoin(client *Client, raw json.RawMessage, log logrus.FieldLogger) {
	var p JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomId <= 0 {
		h.sendError(client, "invalid join payload")
		return
	}

	ctx := context.Background()
	if err := h.coord.JoinRoom(ctx, client.userId, p.RoomId); err != nil {
		log.WithError(err).WithField("room_id", p.RoomId).Info("Join rejected")
		h.sendError(client, err.Error())
		return
	}
	joined := WebSocketMessage{Type: "user_joined", Payload: JoinPayload{UserId: client.userId, RoomId: p.RoomId}}
	h.broadcastToRoom(ctx, p.RoomId, joined, client.userId, log)
	if err := client.send(WebSocketMessage{Type: "joined", Payload: JoinPayload{RoomId: p.RoomId}}); err != nil {
		log.WithError(err).Warn("Failed to acknowledge join")
	}
}

// leave はWebSocket経由の退出と切断時の処理で使います
func (h *WebSocketHandler) leave(client *Client, log logrus.FieldLogger) {
	if err := h.LeaveAndNotify(context.Background(), client.userId); err != nil {
		log.WithError(err).Error("Failed to leave room")
	}
}

// LeaveAndNotify はユーザーをルームから退出させ、残った参加者に user_left を送ります
// HTTPの退出APIとWebSocketの退出で同じ通知になるよう、どちらもここを通します
func (h *WebSocketHandler) LeaveAndNotify(ctx context.Context, userId string) error {
	log := h.log.WithField("user", userId)
	roomId, ok, err := h.coord.RoomOf(ctx, userId)
	if err != nil {
		return err
	}
	if err := h.coord.RouteDisconnect(ctx, userId); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	h.broadcastToRoom(ctx, roomId, WebSocketMessage{
		Type:    "user_left",
		Payload: LeavePayload{UserId: userId, RoomId: roomId},
	}, userId, log)
	log.WithField("room_id", roomId).Info("User left room")
	return nil
}

// broadcastToRoom はルームの現在の参加者に接続があればメッセージを送信します（excludeUserId を除く）
func (h *WebSocketHandler) broadcastToRoom(ctx context.Context, roomId models.RoomID, msg WebSocketMessage, excludeUserId string, log logrus.FieldLogger) {
	occupants, err := h.coord.Occupants(ctx, roomId)
	if err != nil {
		log.WithError(err).Error("Failed to list occupants")
		return
	}
	for _, userId := range occupants {
		if userId == excludeUserId {
			continue
		}
		c := h.hub.get(userId)
		if c == nil {
			continue
		}
		if err := c.send(msg); err != nil {
			log.WithError(err).WithField("to", userId).Warn("Failed to send message")
		}
	}
}

func (h *WebSocketHandler) sendError(client *Client, msg string) {
	_ = client.send(WebSocketMessage{Type: "error", Payload: map[string]string{"message": msg}})
}

// register はクライアントを登録します
// 同じユーザーの既存接続があれば閉じて置き換えます
func (hub *Hub) register(userId string, conn *websocket.Conn) *Client {
	client := &Client{connId: idgen.NewULID(), userId: userId, conn: conn}

	hub.mu.Lock()
	old := hub.clients[userId]
	hub.clients[userId] = client
	hub.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	return client
}

// unregister はクライアントの登録を解除します
// 登録されている接続が client 自身だった場合のみ true を返します
func (hub *Hub) unregister(client *Client) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if cur, ok := hub.clients[client.userId]; !ok || cur.connId != client.connId {
		return false
	}
	delete(hub.clients, client.userId)
	return true
}

func (hub *Hub) get(userId string) *Client {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.clients[userId]
}
