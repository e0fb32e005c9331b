package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/hnreact/internal/model"
)

// ReactionServiceInterface は評価ハンドラーが必要とするサービスインターフェース。
type ReactionServiceInterface interface {
	SetReaction(ctx context.Context, itemID int64, requester model.Identity, state model.ReactionState) (model.Counts, error)
	ClearReaction(ctx context.Context, itemID int64, requester model.Identity) error
	GetCounts(ctx context.Context, itemID int64) (model.Counts, error)
	ListByUser(ctx context.Context, requester model.Identity) ([]*model.Reaction, error)
	ListAll(ctx context.Context, requester model.Identity) ([]*model.Reaction, error)
}

// ReactionHandler は評価のHTTPハンドラー。
type ReactionHandler struct {
	service ReactionServiceInterface
}

// NewReactionHandler はReactionHandlerを生成する。
func NewReactionHandler(service ReactionServiceInterface) *ReactionHandler {
	return &ReactionHandler{service: service}
}

// Like は記事を高評価にする。
// POST /api/items/{id}/like
func (h *ReactionHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, model.ReactionLiked)
}

// Dislike は記事を低評価にする。
// POST /api/items/{id}/dislike
func (h *ReactionHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, model.ReactionDisliked)
}

func (h *ReactionHandler) set(w http.ResponseWriter, r *http.Request, state model.ReactionState) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	itemID, err := parseItemID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	counts, err := h.service.SetReaction(r.Context(), itemID, identity, state)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, countsResponse{ItemID: itemID, Liked: counts.Liked, Disliked: counts.Disliked})
}

// Clear は記事の評価を取り消す。
// 管理者の場合は記事に対する全員の評価が削除される。
// DELETE /api/items/{id}/reaction
func (h *ReactionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	itemID, err := parseItemID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ClearReaction(r.Context(), itemID, identity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Counts は記事の評価集計を返す。
// GET /api/items/{id}/counts
func (h *ReactionHandler) Counts(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseItemID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	counts, err := h.service.GetCounts(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, countsResponse{ItemID: itemID, Liked: counts.Liked, Disliked: counts.Disliked})
}

// MyReactions はリクエスト主体の評価一覧を返す。
// GET /api/me/reactions
func (h *ReactionHandler) MyReactions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	reactions, err := h.service.ListByUser(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReactionResponses(reactions))
}

// AllReactions は全ユーザーの評価一覧を返す。
// GET /api/admin/reactions
func (h *ReactionHandler) AllReactions(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	reactions, err := h.service.ListAll(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReactionResponses(reactions))
}
