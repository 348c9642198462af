package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/repo"
)

// maxPublicKeyLen は登録できる公開鍵の最大長（PEM形式のRSA 4096bitに余裕を持たせた値）
const maxPublicKeyLen = 8 << 10

// KeyService はユーザーの公開鍵の登録と取得を提供します
// 鍵は検証も利用もせず、フレンド同士で交換するためだけに保持します
type KeyService struct {
	keys repo.PublicKeyStore
	log  logrus.FieldLogger
}

func NewKeyService(keys repo.PublicKeyStore, log logrus.FieldLogger) *KeyService {
	return &KeyService{keys: keys, log: log}
}

// PublishKey はユーザーの公開鍵を登録します（既存の鍵は置き換え）
func (s *KeyService) PublishKey(ctx context.Context, user, key string) error {
	if len(key) > maxPublicKeyLen {
		return ErrInvalidRequest
	}
	if err := s.keys.PutPublicKey(ctx, user, key); err != nil {
		if errors.Is(err, repo.ErrInvalidKey) {
			return ErrInvalidRequest
		}
		return err
	}
	s.log.WithFields(logrus.Fields{
		"function": "PublishKey",
		"user":     user,
	}).Info("Public key stored")
	return nil
}

func (s *KeyService) PublicKey(ctx context.Context, user string) (string, error) {
	key, ok, err := s.keys.GetPublicKey(ctx, user)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrKeyNotFound
	}
	return key, nil
}
