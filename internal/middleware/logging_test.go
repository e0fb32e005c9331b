package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/hnreact/internal/logger"
	"github.com/hitoshi/hnreact/internal/model"
)

func parseLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := NewLoggingMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	entry := parseLogEntry(t, &buf)
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/api/news" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/news")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected 'duration_ms' field in log entry")
	}

	requestID, _ := entry["request_id"].(string)
	if requestID == "" {
		t.Fatal("expected non-empty request_id")
	}
	if w.Header().Get(requestIDHeader) != requestID {
		t.Errorf("response %s = %q, want %q", requestIDHeader, w.Header().Get(requestIDHeader), requestID)
	}
	if _, ok := entry["user_email"]; ok {
		t.Error("user_email should be omitted for anonymous requests")
	}
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-from-proxy")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := parseLogEntry(t, &buf)["request_id"]; got != "req-from-proxy" {
		t.Errorf("request_id = %v, want %q", got, "req-from-proxy")
	}
}

// TestLoggingMiddleware_IncludesUserEmail は内側の識別ミドルウェアが解決したユーザーがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesUserEmail(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	resolver := newTestResolver(&mockUserEnsurer{})
	inner := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler := NewLoggingMiddleware(l)(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/items/1/like", nil)
	req.Header.Set(testPrefix+"Email", "alice@example.com")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := parseLogEntry(t, &buf)["user_email"]; got != "alice@example.com" {
		t.Errorf("user_email = %v, want %q", got, "alice@example.com")
	}
}

// TestLoggingMiddleware_RequestIDPropagatesToHandlerLogs はハンドラ内のログにもrequest_idが付与されることを検証する。
func TestLoggingMiddleware_RequestIDPropagatesToHandlerLogs(t *testing.T) {
	var buf bytes.Buffer
	l := logger.Setup(&buf)

	var handlerBuf bytes.Buffer
	handlerLogger := logger.Setup(&handlerBuf)

	handler := NewLoggingMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerLogger.InfoContext(r.Context(), "inside handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	req.Header.Set(requestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := parseLogEntry(t, &handlerBuf)["request_id"]; got != "req-42" {
		t.Errorf("handler log request_id = %v, want %q", got, "req-42")
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := NewLoggingMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteErrorResponse(w, tt.status, &model.APIError{Code: "X"})
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			if got := parseLogEntry(t, &buf)["level"]; got != tt.level {
				t.Errorf("level = %v, want %q", got, tt.level)
			}
		})
	}
}
