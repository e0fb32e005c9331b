package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/hnreact/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StatusForAPIError はAPIErrorコードに対応するHTTPステータスコードを返す。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInvalidReaction, model.ErrCodeInvalidItemID, model.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case model.ErrCodeItemNotFound, model.ErrCodeItemMissing, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeRefreshInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError はAPIErrorコードに対応するステータスで統一エラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
