package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/repo"
)

// SessionCoordinator はフレンド確認とルーム割り当てを取りまとめます
// WebSocketなどのトランスポート層はこの型だけを通してルームを扱います
type SessionCoordinator struct {
	graph repo.FriendGraph
	rooms repo.RoomRegistry
	log   logrus.FieldLogger

	// 「既存ルームの確認 → 作成／参加」と退出を1つの判断として直列化する
	pairMu sync.Mutex
}

// NewSessionCoordinator は新しいSessionCoordinatorを作成します
func NewSessionCoordinator(g repo.FriendGraph, rooms repo.RoomRegistry, log logrus.FieldLogger) *SessionCoordinator {
	return &SessionCoordinator{graph: g, rooms: rooms, log: log}
}

// StartChat は a と b のチャットルームを用意します
// 処理の流れ:
// 1. フレンド関係の確認（なければ ErrNotFriends）
// 2. 2人が既に同じルームにいればそのルームを再利用
// 3. それ以外は新しいルームを作成
func (c *SessionCoordinator) StartChat(ctx context.Context, a, b string) (models.RoomID, error) {
	if a == "" || b == "" || a == b {
		return 0, ErrInvalidRequest
	}
	ok, err := c.graph.AreFriends(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFriends
	}

	c.pairMu.Lock()
	defer c.pairMu.Unlock()

	ra, okA, err := c.rooms.GetRoomID(ctx, a)
	if err != nil {
		return 0, err
	}
	rb, okB, err := c.rooms.GetRoomID(ctx, b)
	if err != nil {
		return 0, err
	}
	if okA && okB && ra == rb {
		return ra, nil
	}

	id, err := c.rooms.CreateRoom(ctx, a, b)
	if err != nil {
		return 0, err
	}
	c.log.WithFields(logrus.Fields{
		"function": "StartChat",
		"room_id":  id,
		"users":    []string{a, b},
	}).Info("Chat room created")
	return id, nil
}

// JoinRoom はユーザーを既存のルームに参加させます
// レジストリ自体は無条件に上書きしますが、ここでは参加者がいること、
// 参加者の誰かとフレンドであることを確認します
// 確認と参加の間に RouteDisconnect が割り込まないよう、全体を pairMu の中で行います
func (c *SessionCoordinator) JoinRoom(ctx context.Context, user string, roomID models.RoomID) error {
	if user == "" {
		return ErrInvalidRequest
	}

	c.pairMu.Lock()
	defer c.pairMu.Unlock()

	occupants, err := c.rooms.Occupants(ctx, roomID)
	if err != nil {
		return err
	}
	if len(occupants) == 0 {
		return ErrRoomNotFound
	}

	allowed := false
	for _, o := range occupants {
		if o == user {
			return nil
		}
		ok, err := c.graph.AreFriends(ctx, user, o)
		if err != nil {
			return err
		}
		allowed = allowed || ok
	}
	if !allowed {
		return ErrNotFriends
	}
	return c.rooms.JoinRoom(ctx, user, roomID)
}

// RouteDisconnect はソケット切断時にトランスポート層から呼ばれます
func (c *SessionCoordinator) RouteDisconnect(ctx context.Context, user string) error {
	c.pairMu.Lock()
	defer c.pairMu.Unlock()
	if err := c.rooms.LeaveRoom(ctx, user); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"function": "RouteDisconnect",
		"user":     user,
	}).Debug("User left room")
	return nil
}

// RoomOf はユーザーが現在所属するルームを返します
func (c *SessionCoordinator) RoomOf(ctx context.Context, user string) (models.RoomID, bool, error) {
	return c.rooms.GetRoomID(ctx, user)
}

// Occupants はルームの現在の参加者を返します
func (c *SessionCoordinator) Occupants(ctx context.Context, roomID models.RoomID) ([]string, error) {
	return c.rooms.Occupants(ctx, roomID)
}
