package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
)

// friendshipRow は friendships テーブルの1行（正規化済みの無向辺）
type friendshipRow struct {
	UserA     string `gorm:"primaryKey;size:64"`
	UserB     string `gorm:"primaryKey;size:64;index"`
	CreatedAt time.Time
}

func (friendshipRow) TableName() string { return "friendships" }

func (r friendshipRow) edge() models.FriendEdge {
	return models.FriendEdge{UserA: r.UserA, UserB: r.UserB}
}

// friendRequestRow は friend_requests テーブルの1行
// 同じ向きの pending 行は部分ユニークインデックスで1つに制限します
type friendRequestRow struct {
	ID        int64                `gorm:"primaryKey;autoIncrement"`
	Sender    string               `gorm:"size:64;not null;uniqueIndex:idx_friend_requests_pending_pair,where:status = 'pending'"`
	Receiver  string               `gorm:"size:64;not null;uniqueIndex:idx_friend_requests_pending_pair,where:status = 'pending';index"`
	Status    models.RequestStatus `gorm:"size:16;not null;default:pending"`
	CreatedAt time.Time
}

func (friendRequestRow) TableName() string { return "friend_requests" }

func (r friendRequestRow) toModel() models.FriendRequest {
	return models.FriendRequest{
		ID:        models.RequestID(r.ID),
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

// GormFriendRepo はリレーショナルDB上で FriendGraph と FriendRequestStore の両方を実装します
// 申請IDはDBの自動採番を使うため単調増加します
type GormFriendRepo struct {
	db *gorm.DB
	// プロセス内の Send を直列化する（プロセス間の重複はインデックスで防ぐ）
	sendMu sync.Mutex
}

// NewGormFriendRepo はテーブルをマイグレーションしてリポジトリを作成します
func NewGormFriendRepo(db *gorm.DB) (*GormFriendRepo, error) {
	if err := db.AutoMigrate(&friendshipRow{}, &friendRequestRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate friend tables: %w", err)
	}
	return &GormFriendRepo{db: db}, nil
}

func (r *GormFriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	e := models.NewFriendEdge(a, b)
	var n int64
	err := r.db.WithContext(ctx).Model(&friendshipRow{}).
		Where("user_a = ? AND user_b = ?", e.UserA, e.UserB).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return n > 0, nil
}

func (r *GormFriendRepo) ListFriends(ctx context.Context, user string) ([]string, error) {
	var rows []friendshipRow
	err := r.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", user, user).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.edge().Other(user))
	}
	sort.Strings(out)
	return out, nil
}

func (r *GormFriendRepo) AddEdge(ctx context.Context, a, b string) error {
	return addEdge(r.db.WithContext(ctx), a, b)
}

func addEdge(tx *gorm.DB, a, b string) error {
	if a == "" || b == "" || a == b {
		return ErrInvalidEdge
	}
	e := models.NewFriendEdge(a, b)
	row := friendshipRow{UserA: e.UserA, UserB: e.UserB}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add friendship: %w", err)
	}
	return nil
}

func (r *GormFriendRepo) Send(ctx context.Context, sender, receiver string) (models.RequestID, error) {
	if !validRequest(sender, receiver) {
		return 0, ErrInvalidRequest
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	var row friendRequestRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&friendRequestRow{}).
			Where("sender = ? AND receiver = ? AND status = ?", sender, receiver, models.StatusPending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateRequest
		}
		row = friendRequestRow{Sender: sender, Receiver: receiver, Status: models.StatusPending}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return err
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateRequest) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to send friend request: %w", err)
	}
	return models.RequestID(row.ID), nil
}

// isUniqueViolation はユニーク制約違反かどうかを判定します
// TranslateError を有効にしていないDBでも判定できるようにメッセージも確認します
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *GormFriendRepo) Get(ctx context.Context, id models.RequestID) (models.FriendRequest, bool, error) {
	var row friendRequestRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FriendRequest{}, false, nil
	}
	if err != nil {
		return models.FriendRequest{}, false, fmt.Errorf("failed to find friend request: %w", err)
	}
	return row.toModel(), true, nil
}

func (r *GormFriendRepo) ListIncoming(ctx context.Context, receiver string) ([]models.FriendRequest, error) {
	var rows []friendRequestRow
	err := r.db.WithContext(ctx).
		Where("receiver = ? AND status = ?", receiver, models.StatusPending).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	out := make([]models.FriendRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Respond は pending の行だけを条件付きUPDATEで遷移させます
// 更新件数が0なら、存在しないか既に他の呼び出しが遷移させています
func (r *GormFriendRepo) Respond(ctx context.Context, id models.RequestID, accept bool) error {
	status := models.StatusRejected
	if accept {
		status = models.StatusAccepted
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row friendRequestRow
		if err := tx.First(&row, "id = ?", int64(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		res := tx.Model(&friendRequestRow{}).
			Where("id = ? AND status = ?", row.ID, models.StatusPending).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if accept {
			return addEdge(tx, row.Sender, row.Receiver)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidEdge) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to respond to friend request: %w", err)
	}
	return nil
}
