package repo

import (
	"context"
	"errors"
	"sync"
)

var ErrInvalidKey = errors.New("invalid public key")

// PublicKeyStore はユーザーごとの公開鍵を1つだけ保持します
// 鍵の中身は解釈せず、クライアント間の受け渡しに使うだけです
type PublicKeyStore interface {
	// PutPublicKey は既存の鍵を上書きします
	PutPublicKey(ctx context.Context, user, key string) error
	GetPublicKey(ctx context.Context, user string) (string, bool, error)
}

type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]string)}
}

func (s *MemoryKeyStore) PutPublicKey(_ context.Context, user, key string) error {
	if user == "" || key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[user] = key
	return nil
}

func (s *MemoryKeyStore) GetPublicKey(_ context.Context, user string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[user]
	return key, ok, nil
}
