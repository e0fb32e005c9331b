package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hnreact/internal/logger"
)

// requestIDHeader はリクエストIDを受け渡すヘッダー名。
const requestIDHeader = "X-Request-ID"

var requestStateContextKey = contextKey("request_state")

// requestState はログ出力のために内側のミドルウェアが記録する値を保持する。
type requestState struct {
	mu        sync.Mutex
	userEmail string
}

func setRequestUser(ctx context.Context, email string) {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		st.mu.Lock()
		st.userEmail = email
		st.mu.Unlock()
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user_email（識別済みの場合）を含む。
// request_idは以降のハンドラのログにも付与される。
func NewLoggingMiddleware(l *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(requestIDHeader, requestID)

			st := &requestState{}
			ctx := context.WithValue(r.Context(), requestStateContextKey, st)
			ctx = logger.Ctx(ctx, slog.String("request_id", requestID))

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.String("request_id", requestID),
			}

			st.mu.Lock()
			if st.userEmail != "" {
				args = append(args, slog.String("user_email", st.userEmail))
			}
			st.mu.Unlock()

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			l.Log(r.Context(), level, "http_request", args...)
		})
	}
}
