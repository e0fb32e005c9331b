// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, reaction, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeItemMissing         = "ITEM_MISSING"
	ErrCodeItemNotFound        = "ITEM_NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidReaction     = "INVALID_REACTION"
	ErrCodeInvalidItemID       = "INVALID_ITEM_ID"
	ErrCodeInvalidPage         = "INVALID_PAGE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeRefreshInProgress   = "REFRESH_IN_PROGRESS"
)

// IsCode はerrがAPIErrorであり、指定コードを持つかどうかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewUpstreamUnavailableError は上流フィードの一覧取得失敗エラーを生成する。
// 既存の記事データは変更されない。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("上流フィードに接続できませんでした: %s", reason),
		Category: "feed",
		Action:   "しばらく待ってから再度リフレッシュしてください。",
	}
}

// NewItemMissingError は個別記事の取得失敗エラーを生成する。
// リフレッシュ中はログに記録するだけで呼び出し元には返さない。
func NewItemMissingError(itemID int64, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeItemMissing,
		Message:  fmt.Sprintf("記事を取得できませんでした: %d (%s)", itemID, reason),
		Category: "feed",
		Action:   "次回のリフレッシュで再取得されます。",
	}
}

// NewItemNotFoundError は記事未検出エラーを生成する。
func NewItemNotFoundError(itemID int64) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %d", itemID),
		Category: "feed",
		Action:   "記事一覧を再読み込みしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は管理者権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewInvalidReactionError は無効な評価値エラーを生成する。
func NewInvalidReactionError(state string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReaction,
		Message:  fmt.Sprintf("無効な評価です: %s", state),
		Category: "validation",
		Action:   "評価には liked または disliked を指定してください。",
	}
}

// NewInvalidItemIDError は記事ID形式エラーを生成する。
func NewInvalidItemIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidItemID,
		Message:  fmt.Sprintf("無効な記事IDです: %s", raw),
		Category: "validation",
		Action:   "記事IDには整数を指定してください。",
	}
}

// NewInvalidPageError はページ番号形式エラーを生成する。
func NewInvalidPageError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %s", raw),
		Category: "validation",
		Action:   "ページ番号には整数を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", email),
		Category: "auth",
		Action:   "メールアドレスを確認してください。",
	}
}

// NewRefreshInProgressError はリフレッシュ実行中エラーを生成する。
func NewRefreshInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshInProgress,
		Message:  "リフレッシュは既に実行中です。",
		Category: "feed",
		Action:   "完了を待ってから再度実行してください。",
	}
}
