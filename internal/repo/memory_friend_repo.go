package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/idgen"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

// MemoryFriendGraph はメモリ上のFriendGraph実装
// 辺は正規化（UserA < UserB）して1本だけ保持し、隣接リストは検索用の索引です
type MemoryFriendGraph struct {
	mu    sync.RWMutex
	edges map[models.FriendEdge]struct{}
	adj   map[string]map[string]struct{}
}

func NewMemoryFriendGraph() *MemoryFriendGraph {
	return &MemoryFriendGraph{
		edges: make(map[models.FriendEdge]struct{}),
		adj:   make(map[string]map[string]struct{}),
	}
}

func (g *MemoryFriendGraph) AreFriends(_ context.Context, a, b string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[models.NewFriendEdge(a, b)]
	return ok, nil
}

func (g *MemoryFriendGraph) ListFriends(_ context.Context, user string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.adj[user]))
	for f := range g.adj[user] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (g *MemoryFriendGraph) AddEdge(_ context.Context, a, b string) error {
	if a == "" || b == "" || a == b {
		return ErrInvalidEdge
	}
	e := models.NewFriendEdge(a, b)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[e]; ok {
		return nil
	}
	g.edges[e] = struct{}{}
	g.link(e.UserA, e.UserB)
	g.link(e.UserB, e.UserA)
	return nil
}

func (g *MemoryFriendGraph) link(from, to string) {
	m := g.adj[from]
	if m == nil {
		m = make(map[string]struct{})
		g.adj[from] = m
	}
	m[to] = struct{}{}
}

// pairKey は送信者→受信者の順序付きペア
type pairKey struct{ sender, receiver string }

// MemoryRequestStore はメモリ上のFriendRequestStore実装
// 状態確認・遷移・辺の追加を1つのロックの中で行うため、同じIDへの同時応答は1つだけが成功します
type MemoryRequestStore struct {
	mu      sync.Mutex
	graph   FriendGraph
	seq     *idgen.Sequence
	order   []models.RequestID // 作成順
	byID    map[models.RequestID]*models.FriendRequest
	pending map[pairKey]models.RequestID
	now     func() time.Time
}

func NewMemoryRequestStore(graph FriendGraph) *MemoryRequestStore {
	return &MemoryRequestStore{
		graph:   graph,
		seq:     idgen.NewSequence(0),
		byID:    make(map[models.RequestID]*models.FriendRequest),
		pending: make(map[pairKey]models.RequestID),
		now:     time.Now,
	}
}

func (s *MemoryRequestStore) Send(_ context.Context, sender, receiver string) (models.RequestID, error) {
	if !validRequest(sender, receiver) {
		return 0, ErrInvalidRequest
	}
	key := pairKey{sender, receiver}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; ok {
		return 0, ErrDuplicateRequest
	}
	id := models.RequestID(s.seq.Next())
	s.byID[id] = &models.FriendRequest{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}
	s.order = append(s.order, id)
	s.pending[key] = id
	return id, nil
}

func (s *MemoryRequestStore) Get(_ context.Context, id models.RequestID) (models.FriendRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return models.FriendRequest{}, false, nil
	}
	return *r, true, nil
}

func (s *MemoryRequestStore) ListIncoming(_ context.Context, receiver string) ([]models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.FriendRequest{}
	for _, id := range s.order {
		r := s.byID[id]
		if r.Receiver == receiver && r.Status == models.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryRequestStore) Respond(ctx context.Context, id models.RequestID, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok || r.Status.Terminal() {
		return ErrNotFound
	}
	if accept {
		// 辺の追加に失敗した場合は状態を変えない
		if err := s.graph.AddEdge(ctx, r.Sender, r.Receiver); err != nil {
			return err
		}
		r.Status = models.StatusAccepted
	} else {
		r.Status = models.StatusRejected
	}
	delete(s.pending, pairKey{r.Sender, r.Receiver})
	return nil
}
