package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/hnreact/internal/ingest"
)

// Refresher は記事リフレッシュを実行するインターフェース。
type Refresher interface {
	Refresh(ctx context.Context) (*ingest.Result, error)
}

// RefreshHandler は管理者によるリフレッシュ実行のHTTPハンドラー。
type RefreshHandler struct {
	refresher Refresher
}

// NewRefreshHandler はRefreshHandlerを生成する。
func NewRefreshHandler(refresher Refresher) *RefreshHandler {
	return &RefreshHandler{refresher: refresher}
}

// Refresh はリフレッシュを同期的に実行し、結果を返す。
// 上流に接続できない場合は502、実行中の場合は409を返す。
// POST /api/admin/refresh
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Refresh(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
