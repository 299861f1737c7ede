package chat

import (
	"context"
	"errors"
	"net/http"

	"devnet/internal/httpjson"
	myMiddleware "devnet/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	hub     *Hub
	service *Service
	log     *zap.Logger

	// ctx bounds websocket pumps; request contexts end when ServeWs returns.
	ctx context.Context
}

func NewHandler(ctx context.Context, hub *Hub, service *Service, log *zap.Logger) *Handler {
	return &Handler{
		hub:     hub,
		service: service,
		log:     log,
		ctx:     ctx,
	}
}

// GetChat returns the conversation with {username}.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	_, me, ok := myMiddleware.Identity(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msgs, err := h.service.GetChat(r.Context(), me, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, msgs)
}

// NewMsg persists and pushes a message from the caller.
func (h *Handler) NewMsg(w http.ResponseWriter, r *http.Request) {
	_, me, ok := myMiddleware.Identity(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req NewMsgRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.service.NewMsg(r.Context(), me, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, msg)
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := myMiddleware.Identity(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, sendQueueSize),
		UserID:   userID,
		Username: username,
		log:      h.log,
	}

	select {
	case h.hub.Register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}
	h.log.Debug("websocket connected", zap.String("client_id", client.ID), zap.String("username", username))

	go client.WritePump()
	go client.ReadPump(h.ctx)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownReceiver):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("chat request failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
