// Package service はビジネスロジックを担当します
// フレンド申請の送信・応答と、チャットルームへの割り当てを提供します
package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/repo"
)

// FriendService はフレンド関係と申請のビジネスロジックを提供します
type FriendService struct {
	graph    repo.FriendGraph        // 確定したフレンド関係
	requests repo.FriendRequestStore // フレンド申請の状態管理
	log      logrus.FieldLogger
}

// NewFriendService は新しいFriendServiceを作成します
func NewFriendService(g repo.FriendGraph, rs repo.FriendRequestStore, log logrus.FieldLogger) *FriendService {
	return &FriendService{graph: g, requests: rs, log: log}
}

// SendRequest は sender から receiver へのフレンド申請を作成します
// 同じ向きの未処理の申請が既にある場合は ErrDuplicateRequest を返します
func (s *FriendService) SendRequest(ctx context.Context, sender, receiver string) (models.RequestID, error) {
	id, err := s.requests.Send(ctx, sender, receiver)
	if err != nil {
		return 0, translate(err)
	}
	s.log.WithFields(logrus.Fields{
		"function":   "SendRequest",
		"sender":     sender,
		"receiver":   receiver,
		"request_id": id,
	}).Info("Friend request sent")
	return id, nil
}

// IncomingRequests は receiver 宛ての未処理の申請を作成順に返します
func (s *FriendService) IncomingRequests(ctx context.Context, receiver string) ([]models.FriendRequest, error) {
	return s.requests.ListIncoming(ctx, receiver)
}

// Respond は申請に応答します
// 処理の流れ:
// 1. 申請の存在確認
// 2. responder が受信者本人かを確認（空文字の場合は確認しない）
// 3. 承認なら状態遷移とフレンド関係の追加、拒否なら状態遷移のみ
func (s *FriendService) Respond(ctx context.Context, responder string, id models.RequestID, accept bool) error {
	req, ok, err := s.requests.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}
	if responder != "" && req.Receiver != responder {
		return ErrNotRequestReceiver
	}
	if err := s.requests.Respond(ctx, id, accept); err != nil {
		return translate(err)
	}
	s.log.WithFields(logrus.Fields{
		"function":   "Respond",
		"request_id": id,
		"sender":     req.Sender,
		"receiver":   req.Receiver,
		"accepted":   accept,
	}).Info("Friend request resolved")
	return nil
}

func (s *FriendService) Friends(ctx context.Context, user string) ([]string, error) {
	return s.graph.ListFriends(ctx, user)
}

func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return s.graph.AreFriends(ctx, a, b)
}

// translate はリポジトリ層のエラーをサービス層のエラーに変換します
func translate(err error) error {
	switch {
	case errors.Is(err, repo.ErrInvalidRequest), errors.Is(err, repo.ErrInvalidEdge):
		return ErrInvalidRequest
	case errors.Is(err, repo.ErrDuplicateRequest):
		return ErrDuplicateRequest
	case errors.Is(err, repo.ErrNotFound):
		return ErrRequestNotFound
	default:
		return err
	}
}
