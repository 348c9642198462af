package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/service"
)

// KeyHandler は公開鍵ディレクトリのAPIを提供します
type KeyHandler struct {
	svc *service.KeyService
	log logrus.FieldLogger
}

func NewKeyHandler(s *service.KeyService, log logrus.FieldLogger) *KeyHandler {
	return &KeyHandler{svc: s, log: log}
}

type publishKeyRequest struct {
	UserId    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

func (r publishKeyRequest) validate() error {
	if err := validateUserId(r.UserId); err != nil {
		return err
	}
	if strings.TrimSpace(r.PublicKey) == "" {
		return errPublicKeyRequired
	}
	return nil
}

// Publish は自分の公開鍵を登録します
func (h *KeyHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var in publishKeyRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.PublishKey(r.Context(), normalizeID(in.UserId), in.PublicKey); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Get は指定ユーザーの公開鍵を返します
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	userId := normalizeID(chi.URLParam(r, "userId"))
	if err := validateUserId(userId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := h.svc.PublicKey(r.Context(), userId)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"userId": userId, "publicKey": key})
}
