package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/service"
)

type FriendHandler struct {
	svc *service.FriendService
	log logrus.FieldLogger
}

func NewFriendHandler(s *service.FriendService, log logrus.FieldLogger) *FriendHandler {
	return &FriendHandler{svc: s, log: log}
}

type sendRequestRequest struct {
	UserId   string `json:"userId"`
	Receiver string `json:"receiver"`
}

func (r sendRequestRequest) validate() error {
	return validatePeer("receiver", r.UserId, r.Receiver)
}

type userRequest struct {
	UserId string `json:"userId"`
}

func (r userRequest) validate() error {
	return validateUserId(r.UserId)
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var in sendRequestRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.svc.SendRequest(r.Context(), normalizeID(in.UserId), normalizeID(in.Receiver))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "requestId": id})
}

func (h *FriendHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	userId := normalizeID(r.URL.Query().Get("userId"))
	if err := validateUserId(userId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	reqs, err := h.svc.IncomingRequests(r.Context(), userId)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	id, err := parseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in userRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Respond(r.Context(), normalizeID(in.UserId), id, accept); err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id": id,
			"user":       in.UserId,
			"accept":     accept,
		}).WithError(err).Info("Respond to friend request failed")
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userId := normalizeID(r.URL.Query().Get("userId"))
	if err := validateUserId(userId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	friends, err := h.svc.Friends(r.Context(), userId)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"friends": friends})
}
