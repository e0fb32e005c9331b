package ingest

import (
	"testing"
	"time"

	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/security"
)

// TestNormalize_DefaultsMissingFields は欠損フィールドがゼロ値になることを検証する。
func TestNormalize_DefaultsMissingFields(t *testing.T) {
	item := Normalize(&model.ItemPayload{ID: 7}, time.UTC, security.NewItemSanitizer())

	want := &model.Item{
		ID:          7,
		SubmittedAt: "1970-01-01 00:00:00",
	}
	if *item != *want {
		t.Errorf("Normalize = %+v, want %+v", item, want)
	}
}

func TestNormalize_MapsFields(t *testing.T) {
	p := &model.ItemPayload{
		ID:          42,
		By:          "pg",
		Score:       100,
		Time:        1700000000,
		Title:       "Hello <b>World</b>",
		URL:         "https://example.com",
		Descendants: 12,
		Type:        "story",
		Text:        `<p>body</p><script>alert(1)</script>`,
	}

	item := Normalize(p, time.UTC, security.NewItemSanitizer())

	if item.Author != "pg" || item.Score != 100 || item.CommentCount != 12 || item.Kind != "story" {
		t.Errorf("item = %+v", item)
	}
	if item.SubmittedAt != "2023-11-14 22:13:20" {
		t.Errorf("SubmittedAt = %q, want 2023-11-14 22:13:20", item.SubmittedAt)
	}
	if item.Title != "Hello World" {
		t.Errorf("Title = %q, want %q", item.Title, "Hello World")
	}
	if item.Text != "<p>body</p>" {
		t.Errorf("Text = %q, want %q", item.Text, "<p>body</p>")
	}
}

// TestNormalize_UsesLocation は指定タイムゾーンで投稿時刻を表示することを検証する。
func TestNormalize_UsesLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)

	item := Normalize(&model.ItemPayload{ID: 1, Time: 1700000000}, jst, security.NewItemSanitizer())
	if item.SubmittedAt != "2023-11-15 07:13:20" {
		t.Errorf("SubmittedAt = %q, want 2023-11-15 07:13:20", item.SubmittedAt)
	}
}

// TestOrderItems_TwoPassIsNotTimeOnly は同時刻の記事がスコア順になることを検証する。
// 時刻だけの安定ソートでは入力順(3,1,2)のままになる。
func TestOrderItems_TwoPassIsNotTimeOnly(t *testing.T) {
	rs := []ranked{
		{item: &model.Item{ID: 3, Score: 30}, epoch: 10},
		{item: &model.Item{ID: 1, Score: 10}, epoch: 10},
		{item: &model.Item{ID: 2, Score: 20}, epoch: 10},
	}

	got := ids(orderItems(rs))
	if want := []int64{1, 2, 3}; !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestOrderItems_Empty(t *testing.T) {
	if got := orderItems(nil); len(got) != 0 {
		t.Errorf("orderItems(nil) = %v, want empty", got)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]int64{3, 1, 3, 2, 1})
	if want := []int64{3, 1, 2}; !equalIDs(got, want) {
		t.Errorf("dedupe = %v, want %v", got, want)
	}
}
