package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePeer(t *testing.T) {
	tests := []struct {
		name    string
		userId  string
		peer    string
		wantErr string
	}{
		{name: "ok", userId: "alice", peer: "bob"},
		{name: "missing user", userId: " ", peer: "bob", wantErr: "userId required"},
		{name: "missing peer", userId: "alice", peer: "", wantErr: "friend required"},
		{name: "self", userId: "alice", peer: " alice ", wantErr: "friend must differ from userId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePeer("friend", tt.userId, tt.peer)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestParseRequestID(t *testing.T) {
	id, err := parseRequestID(" 12 ")
	assert.NoError(t, err)
	assert.EqualValues(t, 12, id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseRequestID(raw)
		assert.Error(t, err, raw)
	}
}
