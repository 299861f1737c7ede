package user

import (
	"errors"
	"net/http"

	"devnet/internal/httpjson"
	myMiddleware "devnet/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Service *Service
	log     *zap.Logger
}

func NewHandler(s *Service, log *zap.Logger) *Handler {
	return &Handler{Service: s, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}

	httpjson.Write(w, http.StatusOK, res)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, users)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())
	users, err := h.Service.ListUsers(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, users)
}

func (h *Handler) Following(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())
	users, err := h.Service.ListFollowing(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, users)
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())
	if err := h.Service.Follow(r.Context(), id, chi.URLParam(r, "username")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())
	if err := h.Service.Unfollow(r.Context(), id, chi.URLParam(r, "username")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, _, _ := myMiddleware.Identity(r.Context())
	p, err := h.Service.Profile(r.Context(), id, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrSelfFollow):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpjson.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		httpjson.Error(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("user request failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
