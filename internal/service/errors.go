package service

import "errors"

// カスタムエラー定義
// いずれも利用者向けのメッセージに変換される想定で、プロセスを止めるものではありません
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDuplicateRequest   = errors.New("friend request already pending")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrNotRequestReceiver = errors.New("forbidden: not request receiver")
	ErrNotFriends         = errors.New("forbidden: users are not friends")
	ErrRoomNotFound       = errors.New("room not found")
	ErrKeyNotFound        = errors.New("public key not found")
)
