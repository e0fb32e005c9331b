package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hnreact/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを返す。管理者のみ。
	List(ctx context.Context, requester model.Identity) ([]*model.User, error)
	// Delete はユーザーとその評価を削除する。管理者のみ。
	Delete(ctx context.Context, requester model.Identity, email string) error
}

// IdentityForgetter は削除したユーザーの識別キャッシュを破棄するインターフェース。
type IdentityForgetter interface {
	Forget(email string)
}

// UserHandler はユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service    UserServiceInterface
	identities IdentityForgetter
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, identities IdentityForgetter) *UserHandler {
	return &UserHandler{
		service:    service,
		identities: identities,
	}
}

// Me はリクエスト主体の識別情報を返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// ListUsers は全ユーザーを返す。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	users, err := h.service.List(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteUser はユーザーとその評価をすべて削除する。
// DELETE /api/admin/users/{email}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		handleServiceError(w, r, model.NewUserNotFoundError(chi.URLParam(r, "email")))
		return
	}

	if err := h.service.Delete(r.Context(), identity, email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if h.identities != nil {
		h.identities.Forget(email)
	}

	w.WriteHeader(http.StatusNoContent)
}
