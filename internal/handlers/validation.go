package handlers

import (
	"errors"
	"fmt"
)

var errPublicKeyRequired = errors.New("publicKey required")

// validateUserId はユーザーIDのバリデーションを行います
// ユーザーIDが空の場合はエラーを返します
func validateUserId(userId string) error {
	if normalizeID(userId) == "" {
		return fmt.Errorf("userId required")
	}
	return nil
}

// validatePeer は相手ユーザーのバリデーションを行います
func validatePeer(field, userId, peer string) error {
	if err := validateUserId(userId); err != nil {
		return err
	}
	if normalizeID(peer) == "" {
		return fmt.Errorf("%s required", field)
	}
	if normalizeID(peer) == normalizeID(userId) {
		return fmt.Errorf("%s must differ from userId", field)
	}
	return nil
}
