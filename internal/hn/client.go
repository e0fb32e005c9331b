// Package hn はHacker News互換の上流フィードとの連携機能を提供する。
// Firebase形式のJSON APIクライアントとRSS形式のフィードソースを含む。
package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/hnreact/internal/model"
)

const (
	// DefaultBaseURL はHacker News Firebase APIのベースURL。
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	// DefaultTimeout は上流への1リクエストあたりのタイムアウト。
	DefaultTimeout = 10 * time.Second
	// maxBodySize はレスポンスボディの読み取り上限（5MB）。
	maxBodySize = 5 * 1024 * 1024

	userAgent = "hnreact/1.0"
)

// Client はHacker News Firebase APIのクライアント。
// トップ記事ID一覧の取得と個別記事の取得を行う。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURL、timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

// ListTopIDs はトップ記事のID一覧を上流の順序のまま返す。
// 通信失敗、タイムアウト、200以外のステータス、デコード失敗はすべて
// ErrCodeUpstreamUnavailable のAPIErrorとして返す。
func (c *Client) ListTopIDs(ctx context.Context) ([]int64, error) {
	body, status, err := c.get(ctx, c.baseURL+"/topstories.json")
	if err != nil {
		c.logger.Error("トップ記事一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError(err.Error())
	}
	if status != http.StatusOK {
		c.logger.Error("トップ記事一覧APIがエラーステータスを返しました",
			slog.Int("http_status", status),
		)
		return nil, model.NewUpstreamUnavailableError(fmt.Sprintf("ステータス %d", status))
	}

	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, model.NewUpstreamUnavailableError(fmt.Sprintf("レスポンスJSONのパースに失敗: %s", err.Error()))
	}
	return ids, nil
}

// FetchItem は指定IDの記事を取得する。
// 200以外のステータス、null応答、デコード失敗、通信失敗は
// ErrCodeItemMissing のAPIErrorとして返す。
func (c *Client) FetchItem(ctx context.Context, id int64) (*model.ItemPayload, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id))
	if err != nil {
		return nil, model.NewItemMissingError(id, err.Error())
	}
	if status != http.StatusOK {
		return nil, model.NewItemMissingError(id, fmt.Sprintf("ステータス %d", status))
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, model.NewItemMissingError(id, "空の応答")
	}

	var payload model.ItemPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, model.NewItemMissingError(id, fmt.Sprintf("レスポンスJSONのパースに失敗: %s", err.Error()))
	}
	if payload.ID == 0 {
		payload.ID = id
	}
	return &payload, nil
}

// get はタイムアウト付きでGETリクエストを送信し、ボディとステータスを返す。
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// ボディは読まずに破棄する
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, resp.StatusCode, nil
}
