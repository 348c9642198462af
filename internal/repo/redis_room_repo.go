package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

const (
	membersKey = "chat:members"   // hash: ユーザー名 -> ルームID
	roomSeqKey = "chat:rooms:seq" // ルームIDの採番カウンタ
)

func roomUsersKey(id models.RoomID) string {
	return fmt.Sprintf("chat:rooms:%d:users", id)
}

// move はユーザーを room_id のルームへ移します（旧ルームの参加者setからは削除）
const moveLua = `
	local function move(members, room_id, uid)
		local old = redis.call('HGET', members, uid)
		if old then
			redis.call('SREM', 'chat:rooms:' .. old .. ':users', uid)
		end
		redis.call('HSET', members, uid, room_id)
		redis.call('SADD', 'chat:rooms:' .. room_id .. ':users', uid)
	end
`

var (
	// 採番と参加者の登録をアトミックに行う
	createRoomScript = redis.NewScript(moveLua + `
		local room_id = tostring(redis.call('INCR', KEYS[2]))
		for i = 1, #ARGV do
			move(KEYS[1], room_id, ARGV[i])
		end
		return tonumber(room_id)
	`)

	joinRoomScript = redis.NewScript(moveLua + `
		move(KEYS[1], ARGV[1], ARGV[2])
		return 'OK'
	`)

	leaveRoomScript = redis.NewScript(`
		local members = KEYS[1]
		local uid = ARGV[1]
		local old = redis.call('HGET', members, uid)
		if old then
			redis.call('HDEL', members, uid)
			redis.call('SREM', 'chat:rooms:' .. old .. ':users', uid)
		end
		return 'OK'
	`)
)

// RedisRoomRegistry はRedis上のRoomRegistry実装
// 複数のAPIサーバーで同じ対応表を共有する場合に使用します
type RedisRoomRegistry struct{ rdb *redis.Client }

func NewRedisRoomRegistry(rdb *redis.Client) *RedisRoomRegistry {
	return &RedisRoomRegistry{rdb: rdb}
}

func (rr *RedisRoomRegistry) CreateRoom(ctx context.Context, occupants ...string) (models.RoomID, error) {
	args := make([]any, 0, len(occupants))
	for _, u := range occupants {
		args = append(args, u)
	}
	id, err := createRoomScript.Run(ctx, rr.rdb, []string{membersKey, roomSeqKey}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return models.RoomID(id), nil
}

func (rr *RedisRoomRegistry) JoinRoom(ctx context.Context, user string, roomID models.RoomID) error {
	err := joinRoomScript.Run(ctx, rr.rdb, []string{membersKey}, int64(roomID), user).Err()
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	return nil
}

func (rr *RedisRoomRegistry) LeaveRoom(ctx context.Context, user string) error {
	if err := leaveRoomScript.Run(ctx, rr.rdb, []string{membersKey}, user).Err(); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	return nil
}

func (rr *RedisRoomRegistry) GetRoomID(ctx context.Context, user string) (models.RoomID, bool, error) {
	v, err := rr.rdb.HGet(ctx, membersKey, user).Result()
	if errors.Is(err, redis.Nil) { // 所属なし
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt room id %q for %s: %w", v, user, err)
	}
	return models.RoomID(id), true, nil
}

func (rr *RedisRoomRegistry) Occupants(ctx context.Context, roomID models.RoomID) ([]string, error) {
	users, err := rr.rdb.SMembers(ctx, roomUsersKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}
