// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ItemSanitizer は上流から取り込んだ記事の本文とタイトルを保存前に無害化する。
// UpstreamGuard は上流フィードへの接続先を公開ネットワークに限定する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// ItemSanitizer は記事テキストのサニタイズ機能を提供する。
// 内部のポリシーは読み取り専用のため、複数goroutineから同時に使用できる。
type ItemSanitizer struct {
	text  *bluemonday.Policy
	title *bluemonday.Policy
}

// NewItemSanitizer はItemSanitizerの新しいインスタンスを生成する。
// 本文のポリシー:
//   - 許可タグ: p, a, i, pre, code
//   - aタグのhref: http/httpsの絶対URLのみ。rel="nofollow noreferrer" と target="_blank" を付与
//
// タイトルはタグを一切許可しない。
func NewItemSanitizer() *ItemSanitizer {
	text := bluemonday.NewPolicy()
	text.AllowElements("p", "i", "pre", "code")
	text.AllowAttrs("href").OnElements("a")
	text.AllowURLSchemes("http", "https")
	text.AllowRelativeURLs(false)
	text.RequireNoFollowOnLinks(true)
	text.RequireNoReferrerOnLinks(true)
	text.AddTargetBlankToFullyQualifiedLinks(true)

	return &ItemSanitizer{
		text:  text,
		title: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は記事本文のHTMLを許可リストに従ってサニタイズする。
// 空文字列には空文字列を返す。
func (s *ItemSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return s.text.Sanitize(raw)
}

// SanitizeTitle はタイトルから全てのタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
func (s *ItemSanitizer) SanitizeTitle(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.title.Sanitize(raw))
}
