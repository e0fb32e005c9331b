package model

// SubmittedAtLayout は記事投稿時刻の表示用フォーマット。
// 固定幅のため文字列比較でも時系列順になる。
const SubmittedAtLayout = "2006-01-02 15:04:05"

// Item は上流フィードから取り込んだニュース記事を表す。
// リフレッシュごとに全件が置き換えられる。
type Item struct {
	ID           int64
	Author       string
	Score        int
	SubmittedAt  string // SubmittedAtLayout 形式（ローカル時刻）
	Title        string
	URL          string
	CommentCount int
	Kind         string // story, job, poll など
	Text         string // サニタイズ済みHTML
	Position     int    // リフレッシュ時の並び順（0始まり）
}

// ItemPayload は上流APIが返す記事の生データを表す。
// 欠損フィールドはゼロ値のまま残り、正規化時に補完される。
type ItemPayload struct {
	ID          int64  `json:"id"`
	By          string `json:"by"`
	Score       int    `json:"score"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Descendants int    `json:"descendants"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// ItemSnapshot はリアクション記録時点の記事内容の写しを表す。
// 元の記事がリフレッシュで消えても表示用データとして残る。
type ItemSnapshot struct {
	Author       string
	Score        int
	SubmittedAt  string
	Title        string
	URL          string
	CommentCount int
	Kind         string
	Text         string
}

// Snapshot は記事の現在値からスナップショットを作る。
func (i *Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		Author:       i.Author,
		Score:        i.Score,
		SubmittedAt:  i.SubmittedAt,
		Title:        i.Title,
		URL:          i.URL,
		CommentCount: i.CommentCount,
		Kind:         i.Kind,
		Text:         i.Text,
	}
}
