package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/service"
)

// roomLeaver はルームからの退出と残った参加者への通知を行います
type roomLeaver interface {
	LeaveAndNotify(ctx context.Context, userId string) error
}

type ChatHandler struct {
	coord  *service.SessionCoordinator
	leaver roomLeaver
	log    logrus.FieldLogger
}

func NewChatHandler(c *service.SessionCoordinator, leaver roomLeaver, log logrus.FieldLogger) *ChatHandler {
	return &ChatHandler{coord: c, leaver: leaver, log: log}
}

type startChatRequest struct {
	UserId string `json:"userId"`
	Friend string `json:"friend"`
}

func (r startChatRequest) validate() error {
	return validatePeer("friend", r.UserId, r.Friend)
}

// Start はフレンドとのチャットルームを用意してルームIDを返します
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	var in startChatRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.coord.StartChat(r.Context(), normalizeID(in.UserId), normalizeID(in.Friend))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "roomId": id})
}

// Room はユーザーが現在いるルームと参加者を返します
func (h *ChatHandler) Room(w http.ResponseWriter, r *http.Request) {
	userId := normalizeID(r.URL.Query().Get("userId"))
	if err := validateUserId(userId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, ok, err := h.coord.RoomOf(r.Context(), userId)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no active room")
		return
	}
	occupants, err := h.coord.Occupants(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"roomId": id, "occupants": occupants})
}

func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var in userRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.leaver.LeaveAndNotify(r.Context(), normalizeID(in.UserId)); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
