// Package logger は構造化ログの設定とコンテキスト属性の付与を提供する。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const attrKey contextKey = "logAttrs"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// コンテキストに付与された属性はすべてのログに出力される。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(NewContextHandler(handler))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
	return logger
}

// ContextHandler はコンテキストに付与された属性をログレコードに追加するslog.Handler。
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler はhandlerをベースとするContextHandlerを生成する。
func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{Handler: handler}
}

// Handle はコンテキストの属性を追加してベースのハンドラに渡す。
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs, ok := ctx.Value(attrKey).([]slog.Attr); ok {
		record.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, record)
}

// WithAttrs はベースのハンドラに属性を追加したContextHandlerを返す。
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup はベースのハンドラにグループを追加したContextHandlerを返す。
func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Ctx は属性を追加したコンテキストを返す。
// ContextHandlerを使うロガーにこのコンテキストを渡すと属性が出力される。
func Ctx(ctx context.Context, toAppend ...slog.Attr) context.Context {
	existing, _ := ctx.Value(attrKey).([]slog.Attr)
	attrs := make([]slog.Attr, 0, len(existing)+len(toAppend))
	attrs = append(attrs, existing...)
	attrs = append(attrs, toAppend...)
	return context.WithValue(ctx, attrKey, attrs)
}
