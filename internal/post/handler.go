package post

import (
	"errors"
	"net/http"

	"devnet/internal/httpjson"
	myMiddleware "devnet/internal/middleware"

	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(s *Service, log *zap.Logger) *Handler {
	return &Handler{service: s, log: log}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())

	var req CreateRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.Create(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrEmptyPost) || errors.Is(err, ErrPostTooLong) {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("create post failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusCreated, p)
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())

	posts, err := h.service.Feed(r.Context(), id)
	if err != nil {
		h.log.Error("feed failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusOK, posts)
}
