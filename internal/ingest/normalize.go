package ingest

import (
	"sort"
	"time"

	"github.com/hitoshi/hnreact/internal/model"
)

// Sanitizer は取り込み時に記事のテキストを無害化するインターフェース。
type Sanitizer interface {
	SanitizeText(raw string) string
	SanitizeTitle(raw string) string
}

// ranked は並べ替え用に元のエポック秒を保持した記事。
// 表示用文字列ではなく数値で時刻比較する。
type ranked struct {
	item  *model.Item
	epoch int64
}

// Normalize は上流の記事データを保存用のItemに変換する。
// 欠損した数値は0、文字列は空のまま扱い、エポック秒はlocの時刻で
// model.SubmittedAtLayout 形式に変換する。タイトルと本文はsanitizerを通す。
func Normalize(p *model.ItemPayload, loc *time.Location, sanitizer Sanitizer) *model.Item {
	if loc == nil {
		loc = time.Local
	}
	return &model.Item{
		ID:           p.ID,
		Author:       p.By,
		Score:        p.Score,
		SubmittedAt:  time.Unix(p.Time, 0).In(loc).Format(model.SubmittedAtLayout),
		Title:        sanitizer.SanitizeTitle(p.Title),
		URL:          p.URL,
		CommentCount: p.Descendants,
		Kind:         p.Type,
		Text:         sanitizer.SanitizeText(p.Text),
	}
}

// orderItems は記事を2段階の安定ソートで並べ替え、Positionを振り直す。
// 1段目はスコア昇順、2段目は投稿時刻の降順。
// 投稿時刻が同じ記事同士は1段目のスコア順が保たれる。
func orderItems(rs []ranked) []*model.Item {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].item.Score < rs[j].item.Score
	})
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].epoch > rs[j].epoch
	})

	items := make([]*model.Item, len(rs))
	for i, r := range rs {
		r.item.Position = i
		items[i] = r.item
	}
	return items
}
