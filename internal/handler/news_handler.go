package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/hnreact/internal/model"
)

// PageServiceInterface はニュース一覧ハンドラーが必要とするサービスインターフェース。
type PageServiceInterface interface {
	// Page は指定ページの記事を評価数付きで返す。pageSizeが0以下の場合は既定値を使う。
	Page(ctx context.Context, pageNumber, pageSize int) (*model.Page, error)
	// Latest は先頭からlimit件の記事を返す。
	Latest(ctx context.Context, limit int) ([]model.ItemView, error)
}

// NewsHandler はニュース一覧のHTTPハンドラー。
type NewsHandler struct {
	pages         PageServiceInterface
	newsfeedLimit int
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(pages PageServiceInterface, newsfeedLimit int) *NewsHandler {
	return &NewsHandler{
		pages:         pages,
		newsfeedLimit: newsfeedLimit,
	}
}

// ListNews はニュース一覧の1ページを返す。
// GET /api/news?page=n, GET /api/admin/news?page=n
func (h *NewsHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	pageNumber, err := parsePageNumber(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.pages.Page(r.Context(), pageNumber, 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(page))
}

// Newsfeed は先頭の記事を認証なしで返す。
// GET /newsfeed
func (h *NewsHandler) Newsfeed(w http.ResponseWriter, r *http.Request) {
	views, err := h.pages.Latest(r.Context(), h.newsfeedLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponses(views))
}
