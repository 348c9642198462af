package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/idgen"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

// setupTestDB は共有キャッシュのインメモリSQLiteを作成します
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + idgen.NewULID() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type friendBackend struct {
	graph    FriendGraph
	requests FriendRequestStore
}

func friendBackends() map[string]func(t *testing.T) friendBackend {
	return map[string]func(t *testing.T) friendBackend{
		"memory": func(*testing.T) friendBackend {
			g := NewMemoryFriendGraph()
			return friendBackend{graph: g, requests: NewMemoryRequestStore(g)}
		},
		"gorm": func(t *testing.T) friendBackend {
			r, err := NewGormFriendRepo(setupTestDB(t))
			require.NoError(t, err)
			return friendBackend{graph: r, requests: r}
		},
	}
}

func TestFriendGraph_Symmetric(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			g := newBackend(t).graph

			ok, err := g.AreFriends(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, g.AddEdge(ctx, "bob", "alice"))

			ab, err := g.AreFriends(ctx, "alice", "bob")
			require.NoError(t, err)
			ba, err := g.AreFriends(ctx, "bob", "alice")
			require.NoError(t, err)
			assert.True(t, ab)
			assert.True(t, ba)
		})
	}
}

func TestFriendGraph_AddEdgeIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			g := newBackend(t).graph
			require.NoError(t, g.AddEdge(ctx, "alice", "bob"))
			require.NoError(t, g.AddEdge(ctx, "alice", "bob"))
			require.NoError(t, g.AddEdge(ctx, "bob", "alice"))
			require.NoError(t, g.AddEdge(ctx, "alice", "carol"))

			friends, err := g.ListFriends(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"bob", "carol"}, friends)

			friends, err = g.ListFriends(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, []string{"alice"}, friends)

			friends, err = g.ListFriends(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, friends)
		})
	}
}

func TestFriendGraph_RejectsSelfEdge(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			g := newBackend(t).graph
			assert.ErrorIs(t, g.AddEdge(ctx, "alice", "alice"), ErrInvalidEdge)
			assert.ErrorIs(t, g.AddEdge(ctx, "", "alice"), ErrInvalidEdge)
		})
	}
}

func TestRequestStore_Send(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			rs := newBackend(t).requests

			_, err := rs.Send(ctx, "alice", "alice")
			assert.ErrorIs(t, err, ErrInvalidRequest)
			_, err = rs.Send(ctx, "", "bob")
			assert.ErrorIs(t, err, ErrInvalidRequest)

			first, err := rs.Send(ctx, "alice", "bob")
			require.NoError(t, err)

			_, err = rs.Send(ctx, "alice", "bob")
			assert.ErrorIs(t, err, ErrDuplicateRequest)

			// 逆向きは別のペアとして扱う
			reverse, err := rs.Send(ctx, "bob", "alice")
			require.NoError(t, err)
			assert.Greater(t, reverse, first)

			require.NoError(t, rs.Respond(ctx, first, false))

			third, err := rs.Send(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.Greater(t, third, reverse)
		})
	}
}

func TestRequestStore_ListIncoming(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			rs := newBackend(t).requests

			fromCarol, err := rs.Send(ctx, "carol", "bob")
			require.NoError(t, err)
			fromAlice, err := rs.Send(ctx, "alice", "bob")
			require.NoError(t, err)
			fromDave, err := rs.Send(ctx, "dave", "bob")
			require.NoError(t, err)
			_, err = rs.Send(ctx, "bob", "alice")
			require.NoError(t, err)

			require.NoError(t, rs.Respond(ctx, fromAlice, true))

			incoming, err := rs.ListIncoming(ctx, "bob")
			require.NoError(t, err)
			require.Len(t, incoming, 2)
			assert.Equal(t, fromCarol, incoming[0].ID)
			assert.Equal(t, "carol", incoming[0].Sender)
			assert.Equal(t, "bob", incoming[0].Receiver)
			assert.Equal(t, models.StatusPending, incoming[0].Status)
			assert.Equal(t, fromDave, incoming[1].ID)

			none, err := rs.ListIncoming(ctx, "erin")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRequestStore_Respond(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name+"/accept creates edge", func(t *testing.T) {
			b := newBackend(t)
			id, err := b.requests.Send(ctx, "alice", "bob")
			require.NoError(t, err)

			require.NoError(t, b.requests.Respond(ctx, id, true))

			ok, err := b.graph.AreFriends(ctx, "bob", "alice")
			require.NoError(t, err)
			assert.True(t, ok)

			req, found, err := b.requests.Get(ctx, id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, models.StatusAccepted, req.Status)

			// 終端状態への再応答は効果なし
			assert.ErrorIs(t, b.requests.Respond(ctx, id, false), ErrNotFound)
			req, _, err = b.requests.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusAccepted, req.Status)
		})

		t.Run(name+"/reject never creates edge", func(t *testing.T) {
			b := newBackend(t)
			id, err := b.requests.Send(ctx, "alice", "bob")
			require.NoError(t, err)

			require.NoError(t, b.requests.Respond(ctx, id, false))

			ok, err := b.graph.AreFriends(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, b.requests.Respond(ctx, id, true), ErrNotFound)

			ok, err = b.graph.AreFriends(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run(name+"/unknown id", func(t *testing.T) {
			b := newBackend(t)
			assert.ErrorIs(t, b.requests.Respond(ctx, 42, true), ErrNotFound)
			_, found, err := b.requests.Get(ctx, 42)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestRequestStore_ConcurrentRespond(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t)
			id, err := b.requests.Send(ctx, "alice", "bob")
			require.NoError(t, err)

			const callers = 16
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				wins     int
				notFound int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(accept bool) {
					defer wg.Done()
					err := b.requests.Respond(ctx, id, accept)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, ErrNotFound):
						notFound++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i%2 == 0)
			}
			wg.Wait()

			assert.Equal(t, 1, wins)
			assert.Equal(t, callers-1, notFound)

			req, _, err := b.requests.Get(ctx, id)
			require.NoError(t, err)
			friends, err := b.graph.ListFriends(ctx, "alice")
			require.NoError(t, err)
			if req.Status == models.StatusAccepted {
				assert.Equal(t, []string{"bob"}, friends)
			} else {
				assert.Equal(t, models.StatusRejected, req.Status)
				assert.Empty(t, friends)
			}
		})
	}
}

func TestRequestStore_ConcurrentSendSamePair(t *testing.T) {
	ctx := context.Background()
	for name, newBackend := range friendBackends() {
		t.Run(name, func(t *testing.T) {
			rs := newBackend(t).requests

			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := rs.Send(ctx, "alice", "bob")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			ok := 0
			for err := range errs {
				if err == nil {
					ok++
					continue
				}
				assert.ErrorIs(t, err, ErrDuplicateRequest)
			}
			assert.Equal(t, 1, ok)
		})
	}
}

func TestGormFriendRepo_PendingPairUniqueAcrossInstances(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	first, err := NewGormFriendRepo(db)
	require.NoError(t, err)
	// 同じDBファイルを共有する別プロセスに相当する（sendMu は共有されない）
	second, err := NewGormFriendRepo(db)
	require.NoError(t, err)

	id, err := first.Send(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = second.Send(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// 重複チェックを経由しない挿入もインデックスで拒否される
	err = db.Create(&friendRequestRow{Sender: "alice", Receiver: "bob", Status: models.StatusPending}).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	// 解決済みの行は制限の対象外
	require.NoError(t, second.Respond(ctx, id, false))
	require.NoError(t, db.Create(&friendRequestRow{Sender: "alice", Receiver: "bob", Status: models.StatusRejected}).Error)
	_, err = second.Send(ctx, "alice", "bob")
	require.NoError(t, err)
}

// failingGraph は AddEdge が常に失敗するFriendGraph
type failingGraph struct{ *MemoryFriendGraph }

func (failingGraph) AddEdge(context.Context, string, string) error {
	return errors.New("boom")
}

func TestMemoryRequestStore_AcceptKeepsPendingWhenEdgeFails(t *testing.T) {
	ctx := context.Background()
	rs := NewMemoryRequestStore(failingGraph{NewMemoryFriendGraph()})

	id, err := rs.Send(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Error(t, rs.Respond(ctx, id, true))

	req, _, err := rs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)

	_, err = rs.Send(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}
