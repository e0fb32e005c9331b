// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hnreact/internal/middleware"
	"github.com/hitoshi/hnreact/internal/model"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外は内部エラーとしてログに記録し、詳細は返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// requireIdentity はコンテキストの識別情報を返す。
// 存在しない場合は401を書き込みfalseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return model.Identity{}, false
	}
	return identity, true
}

// parseItemID はURLパラメータ{id}を記事IDとして解析する。
func parseItemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidItemIDError(raw)
	}
	return id, nil
}

// parsePageNumber はクエリパラメータpageを解析する。
// 未指定の場合は1、0以下の値はそのまま返し、ページングで1ページ目として扱われる。
func parsePageNumber(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidPageError(raw)
	}
	return n, nil
}
