package model

// ItemView は記事に評価集計を付与した表示用モデル。
type ItemView struct {
	Item
	LikeCount    int
	DislikeCount int
}

// Page はニュース一覧の1ページ分を表す。
type Page struct {
	Items       []ItemView
	CurrentPage int
	TotalPages  int
	TotalItems  int
}
