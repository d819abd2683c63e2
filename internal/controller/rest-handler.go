package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/rest"
)

type validateCreateRoom struct {
	Username string `json:"username" validate:"required,max=16"`
	VideoURL string `json:"video_url" validate:"required"`
}

type validateCreateRoomResponse struct {
	RoomId       string `json:"room_id"`
	ConnectToken string `json:"connect_token"`
}

func (c *controller) ValidateCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req validateCreateRoom

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Username: req.Username,
		VideoURL: req.VideoURL,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to create room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": validateCreateRoomResponse{
		RoomId:       createRoomResp.RoomId,
		ConnectToken: createRoomResp.ConnectToken,
	}})
}

type validateJoinRoom struct {
	Username string `json:"username" validate:"required,max=16"`
}

type validateJoinRoomResponse struct {
	ConnectToken string `json:"connect_token"`
}

func (c *controller) ValidateJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	var req validateJoinRoom

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	joinSessionResp, err := c.roomService.CreateJoinSession(r.Context(), &room.CreateJoinSessionParams{
		Username: req.Username,
		RoomId:   roomId,
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		case errors.Is(err, room.ErrRoomFull):
			rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "room is full"})
		default:
			c.logger.InfoContext(r.Context(), "failed to create join session", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": validateJoinRoomResponse{
		ConnectToken: joinSessionResp.ConnectToken,
	}})
}

func (c *controller) GetRoomState(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	state, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}

		c.logger.InfoContext(r.Context(), "failed to get room state", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}
