package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/hnreact/internal/model"
)

// ItemServiceInterface は記事管理ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// Delete は記事とその評価を削除する。管理者のみ。
	Delete(ctx context.Context, requester model.Identity, itemID int64) error
}

// ItemHandler は記事管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// DeleteItem は記事とその評価を削除する。
// DELETE /api/admin/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	itemID, err := parseItemID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), identity, itemID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
