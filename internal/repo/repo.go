package repo

import (
	"context"
	"errors"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

var (
	ErrInvalidRequest   = errors.New("invalid friend request")
	ErrDuplicateRequest = errors.New("pending friend request already exists")
	ErrNotFound         = errors.New("friend request not found or already resolved")
	ErrInvalidEdge      = errors.New("invalid friend edge")
)

// FriendGraph は確定したフレンド関係（無向グラフ）を保持します
type FriendGraph interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, user string) ([]string, error)
	// AddEdge は冪等。既存の辺を追加してもエラーにはなりません
	AddEdge(ctx context.Context, a, b string) error
}

// FriendRequestStore はフレンド申請の状態遷移 pending → accepted / rejected を管理します
type FriendRequestStore interface {
	Send(ctx context.Context, sender, receiver string) (models.RequestID, error)
	Get(ctx context.Context, id models.RequestID) (models.FriendRequest, bool, error)
	ListIncoming(ctx context.Context, receiver string) ([]models.FriendRequest, error)
	Respond(ctx context.Context, id models.RequestID, accept bool) error
}

// RoomRegistry はユーザー名からチャットルームIDへの対応を管理します
// 1ユーザーが同時に所属できるルームは1つだけです
type RoomRegistry interface {
	CreateRoom(ctx context.Context, occupants ...string) (models.RoomID, error)
	JoinRoom(ctx context.Context, user string, roomID models.RoomID) error
	LeaveRoom(ctx context.Context, user string) error
	GetRoomID(ctx context.Context, user string) (models.RoomID, bool, error)
	Occupants(ctx context.Context, roomID models.RoomID) ([]string, error)
}

func validRequest(sender, receiver string) bool {
	return sender != "" && receiver != "" && sender != receiver
}
