package model

import "time"

// ReactionState はユーザーの記事に対する評価を表す。
// 行が存在しないことが「評価なし」を意味するため、値は2種類のみ。
type ReactionState string

const (
	// ReactionLiked は高評価。
	ReactionLiked ReactionState = "liked"
	// ReactionDisliked は低評価。
	ReactionDisliked ReactionState = "disliked"
)

// Valid は定義済みの状態かどうかを返す。
func (s ReactionState) Valid() bool {
	return s == ReactionLiked || s == ReactionDisliked
}

// Reaction はユーザー1人の記事1件に対する評価を表す。
// (ItemID, UserEmail) につき最大1行。
type Reaction struct {
	ID        string
	ItemID    int64
	UserEmail string
	State     ReactionState
	Snapshot  ItemSnapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counts は記事ごとの評価集計。
type Counts struct {
	Liked    int
	Disliked int
}
