package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// publicKeyRow は public_keys テーブルの1行
type publicKeyRow struct {
	Username  string `gorm:"primaryKey;size:64"`
	PublicKey string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (publicKeyRow) TableName() string { return "public_keys" }

type GormKeyStore struct {
	db *gorm.DB
}

// NewGormKeyStore はテーブルをマイグレーションして公開鍵ストアを作成します
func NewGormKeyStore(db *gorm.DB) (*GormKeyStore, error) {
	if err := db.AutoMigrate(&publicKeyRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate public_keys: %w", err)
	}
	return &GormKeyStore{db: db}, nil
}

func (s *GormKeyStore) PutPublicKey(ctx context.Context, user, key string) error {
	if user == "" || key == "" {
		return ErrInvalidKey
	}
	row := publicKeyRow{Username: user, PublicKey: key}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_key", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store public key: %w", err)
	}
	return nil
}

func (s *GormKeyStore) GetPublicKey(ctx context.Context, user string) (string, bool, error) {
	var row publicKeyRow
	err := s.db.WithContext(ctx).First(&row, "username = ?", user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find public key: %w", err)
	}
	return row.PublicKey, true, nil
}
