package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/idgen"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

// MemoryRoomRegistry はメモリ上のRoomRegistry実装
// byUser が正で、byRoom は参加者一覧のための逆引き索引です
type MemoryRoomRegistry struct {
	mu     sync.RWMutex
	seq    *idgen.Sequence
	byUser map[string]models.RoomID
	byRoom map[models.RoomID]map[string]struct{}
}

func NewMemoryRoomRegistry() *MemoryRoomRegistry {
	return &MemoryRoomRegistry{
		seq:    idgen.NewSequence(0),
		byUser: make(map[string]models.RoomID),
		byRoom: make(map[models.RoomID]map[string]struct{}),
	}
}

// CreateRoom は新しいルームIDを払い出し、全員をそのルームに移します
// 以前のルームに所属していたユーザーは暗黙的にそのルームを抜けます
func (rr *MemoryRoomRegistry) CreateRoom(_ context.Context, occupants ...string) (models.RoomID, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	id := models.RoomID(rr.seq.Next())
	for _, u := range occupants {
		rr.move(u, id)
	}
	return id, nil
}

// JoinRoom はルームの存在や定員を確認せずに所属を上書きします
func (rr *MemoryRoomRegistry) JoinRoom(_ context.Context, user string, roomID models.RoomID) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.move(user, roomID)
	return nil
}

func (rr *MemoryRoomRegistry) LeaveRoom(_ context.Context, user string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.detach(user)
	return nil
}

func (rr *MemoryRoomRegistry) GetRoomID(_ context.Context, user string) (models.RoomID, bool, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	id, ok := rr.byUser[user]
	return id, ok, nil
}

func (rr *MemoryRoomRegistry) Occupants(_ context.Context, roomID models.RoomID) ([]string, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]string, 0, len(rr.byRoom[roomID]))
	for u := range rr.byRoom[roomID] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// move は rr.mu を保持した状態で呼び出すこと
func (rr *MemoryRoomRegistry) move(user string, roomID models.RoomID) {
	rr.detach(user)
	rr.byUser[user] = roomID
	m := rr.byRoom[roomID]
	if m == nil {
		m = make(map[string]struct{})
		rr.byRoom[roomID] = m
	}
	m[user] = struct{}{}
}

func (rr *MemoryRoomRegistry) detach(user string) {
	old, ok := rr.byUser[user]
	if !ok {
		return
	}
	delete(rr.byUser, user)
	if m := rr.byRoom[old]; m != nil {
		delete(m, user)
		if len(m) == 0 {
			delete(rr.byRoom, old)
		}
	}
}
