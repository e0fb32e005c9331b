package hn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/hnreact/internal/model"
)

const (
	// DefaultRSSURL はhnrss形式のフロントページフィードURL。
	DefaultRSSURL = "https://hnrss.org/frontpage"

	// defaultPayloadCacheSize はRSSから取り出した記事の保持件数。
	defaultPayloadCacheSize = 1000
	// defaultPayloadCacheTTL はRSSから取り出した記事の保持期間。
	defaultPayloadCacheTTL = 30 * time.Minute
)

// RSSSource はhnrss形式のRSSフィードを上流として扱うソース。
// ListTopIDsでフィード全体を取得して記事をキャッシュし、
// FetchItemはキャッシュから記事を返す。
type RSSSource struct {
	httpClient *http.Client
	logger     *slog.Logger
	feedURL    string
	timeout    time.Duration
	parser     *gofeed.Parser
	payloads   *expirable.LRU[int64, *model.ItemPayload]
}

// NewRSSSource はRSSSourceの新しいインスタンスを生成する。
// feedURLが空の場合はDefaultRSSURL、timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewRSSSource(httpClient *http.Client, logger *slog.Logger, feedURL string, timeout time.Duration) *RSSSource {
	if feedURL == "" {
		feedURL = DefaultRSSURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RSSSource{
		httpClient: httpClient,
		logger:     logger,
		feedURL:    feedURL,
		timeout:    timeout,
		parser:     gofeed.NewParser(),
		payloads:   expirable.NewLRU[int64, *model.ItemPayload](defaultPayloadCacheSize, nil, defaultPayloadCacheTTL),
	}
}

// ListTopIDs はフィードを取得し、掲載順の記事ID一覧を返す。
// 取得またはパースに失敗した場合は ErrCodeUpstreamUnavailable のAPIErrorを返す。
// IDを特定できないエントリは読み飛ばす。
func (s *RSSSource) ListTopIDs(ctx context.Context) ([]int64, error) {
	feed, err := s.fetchFeed(ctx)
	if err != nil {
		s.logger.Error("RSSフィードの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError(err.Error())
	}

	ids := make([]int64, 0, len(feed.Items))
	for _, entry := range feed.Items {
		payload, ok := payloadFromEntry(entry)
		if !ok {
			s.logger.Warn("記事IDを特定できないエントリを読み飛ばしました",
				slog.String("guid", entry.GUID),
				slog.String("link", entry.Link),
			)
			continue
		}
		s.payloads.Add(payload.ID, payload)
		ids = append(ids, payload.ID)
	}
	return ids, nil
}

// FetchItem は直前のListTopIDsで取り込んだ記事を返す。
// キャッシュにない場合は ErrCodeItemMissing のAPIErrorを返す。
func (s *RSSSource) FetchItem(_ context.Context, id int64) (*model.ItemPayload, error) {
	payload, ok := s.payloads.Get(id)
	if !ok {
		return nil, model.NewItemMissingError(id, "フィードに含まれていません")
	}
	cp := *payload
	return &cp, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}
	return feed, nil
}

// payloadFromEntry はRSSエントリを上流APIと同じ形の記事データに変換する。
func payloadFromEntry(entry *gofeed.Item) (*model.ItemPayload, bool) {
	meta := parseDescription(entry.Description)

	id := itemIDFromURL(entry.GUID)
	if id == 0 {
		id = itemIDFromURL(meta.commentsURL)
	}
	if id == 0 {
		id = itemIDFromURL(entry.Link)
	}
	if id == 0 {
		return nil, false
	}

	payload := &model.ItemPayload{
		ID:          id,
		Score:       meta.points,
		Title:       entry.Title,
		Descendants: meta.comments,
		Type:        "story",
	}

	if entry.Author != nil {
		payload.By = entry.Author.Name
	} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		payload.By = entry.Authors[0].Name
	}

	if entry.PublishedParsed != nil {
		payload.Time = entry.PublishedParsed.Unix()
	}

	// Ask HNのような外部リンクを持たない投稿はURLを空にする
	articleURL := meta.articleURL
	if articleURL == "" {
		articleURL = entry.Link
	}
	if itemIDFromURL(articleURL) != id {
		payload.URL = articleURL
	}

	return payload, true
}

// itemIDFromURL は "https://news.ycombinator.com/item?id=123" 形式のURLから記事IDを取り出す。
// 該当しない場合は0を返す。
func itemIDFromURL(raw string) int64 {
	if raw == "" {
		return 0
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(u.Path, "/item") {
		return 0
	}
	id, err := strconv.ParseInt(u.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// descriptionMeta はhnrssのdescriptionに埋め込まれた記事情報。
type descriptionMeta struct {
	articleURL  string
	commentsURL string
	points      int
	comments    int
}

// parseDescription はdescriptionのHTMLを段落単位で走査し、
// "Article URL:", "Comments URL:", "Points:", "# Comments:" の各行を読み取る。
func parseDescription(desc string) descriptionMeta {
	var meta descriptionMeta
	if desc == "" {
		return meta
	}

	tokenizer := html.NewTokenizer(strings.NewReader(desc))
	var text strings.Builder
	var href string

	flush := func() {
		line := strings.TrimSpace(text.String())
		switch {
		case strings.HasPrefix(line, "Article URL:"):
			meta.articleURL = href
		case strings.HasPrefix(line, "Comments URL:"):
			meta.commentsURL = href
		case strings.HasPrefix(line, "Points:"):
			meta.points = atoiField(line, "Points:")
		case strings.HasPrefix(line, "# Comments:"):
			meta.comments = atoiField(line, "# Comments:")
		}
		text.Reset()
		href = ""
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return meta
		case html.TextToken:
			text.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "a":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = tokenizer.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
			case "p", "br", "hr":
				flush()
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "p" {
				flush()
			}
		}
	}
}

func atoiField(line, prefix string) int {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
