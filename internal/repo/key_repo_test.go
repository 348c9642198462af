package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyBackends() map[string]func(t *testing.T) PublicKeyStore {
	return map[string]func(t *testing.T) PublicKeyStore{
		"memory": func(*testing.T) PublicKeyStore {
			return NewMemoryKeyStore()
		},
		"gorm": func(t *testing.T) PublicKeyStore {
			s, err := NewGormKeyStore(setupTestDB(t))
			require.NoError(t, err)
			return s
		},
	}
}

func TestPublicKeyStore(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range keyBackends() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			_, ok, err := s.GetPublicKey(ctx, "alice")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, s.PutPublicKey(ctx, "alice", ""), ErrInvalidKey)
			assert.ErrorIs(t, s.PutPublicKey(ctx, "", "key"), ErrInvalidKey)

			require.NoError(t, s.PutPublicKey(ctx, "alice", "key-1"))
			require.NoError(t, s.PutPublicKey(ctx, "bob", "key-b"))
			// 再登録は上書き
			require.NoError(t, s.PutPublicKey(ctx, "alice", "key-2"))

			key, ok, err := s.GetPublicKey(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "key-2", key)

			key, _, err = s.GetPublicKey(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, "key-b", key)
		})
	}
}
