// Package models はアプリケーションで使用するデータ構造を定義します
package models

import "time"

// RoomID はチャットルームの識別子（単調増加、再利用なし）
type RoomID int64

// RequestID はフレンド申請の識別子（単調増加）
type RequestID int64

// RequestStatus はフレンド申請の状態
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"  // 未処理
	StatusAccepted RequestStatus = "accepted" // 承認済み（終端）
	StatusRejected RequestStatus = "rejected" // 拒否済み（終端）
)

// Terminal は終端状態かどうかを返します
func (s RequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// FriendRequest はフレンド申請を表します
type FriendRequest struct {
	ID        RequestID     `json:"id"`        // 申請ID
	Sender    string        `json:"sender"`    // 申請者のユーザー名
	Receiver  string        `json:"receiver"`  // 受信者のユーザー名
	Status    RequestStatus `json:"status"`    // 申請の状態
	CreatedAt time.Time     `json:"createdAt"` // 作成日時
}

// FriendEdge は確定したフレンド関係（無向辺）を表します
// UserA < UserB となるよう正規化して保持します
type FriendEdge struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

// NewFriendEdge は2人のユーザー名から正規化された辺を作成します
func NewFriendEdge(a, b string) FriendEdge {
	if b < a {
		a, b = b, a
	}
	return FriendEdge{UserA: a, UserB: b}
}

// Other は辺の反対側のユーザー名を返します
func (e FriendEdge) Other(user string) string {
	if e.UserA == user {
		return e.UserB
	}
	return e.UserA
}
