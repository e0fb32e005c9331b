package handler

import (
	"time"

	"github.com/hitoshi/hnreact/internal/model"
)

// itemResponse は記事1件のAPIレスポンス。
type itemResponse struct {
	ID           int64  `json:"id"`
	Author       string `json:"author"`
	Score        int    `json:"score"`
	SubmittedAt  string `json:"submitted_at"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	CommentCount int    `json:"comment_count"`
	Kind         string `json:"kind"`
	Text         string `json:"text"`
	LikeCount    int    `json:"like_count"`
	DislikeCount int    `json:"dislike_count"`
}

// pageResponse はニュース一覧1ページ分のAPIレスポンス。
type pageResponse struct {
	Items       []itemResponse `json:"items"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
	TotalItems  int            `json:"total_items"`
}

// countsResponse は評価集計のAPIレスポンス。
type countsResponse struct {
	ItemID   int64 `json:"item_id"`
	Liked    int   `json:"liked"`
	Disliked int   `json:"disliked"`
}

// snapshotResponse は評価時点の記事内容。
type snapshotResponse struct {
	Author       string `json:"author"`
	Score        int    `json:"score"`
	SubmittedAt  string `json:"submitted_at"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	CommentCount int    `json:"comment_count"`
	Kind         string `json:"kind"`
	Text         string `json:"text"`
}

// reactionResponse は評価1件のAPIレスポンス。
type reactionResponse struct {
	ItemID    int64            `json:"item_id"`
	UserEmail string           `json:"user_email"`
	State     string           `json:"state"`
	Item      snapshotResponse `json:"item"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname"`
	Picture   string    `json:"picture"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// identityResponse はリクエスト主体の識別情報のAPIレスポンス。
type identityResponse struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Picture  string `json:"picture"`
	IsAdmin  bool   `json:"is_admin"`
}

func toItemResponse(v model.ItemView) itemResponse {
	return itemResponse{
		ID:           v.ID,
		Author:       v.Author,
		Score:        v.Score,
		SubmittedAt:  v.SubmittedAt,
		Title:        v.Title,
		URL:          v.URL,
		CommentCount: v.CommentCount,
		Kind:         v.Kind,
		Text:         v.Text,
		LikeCount:    v.LikeCount,
		DislikeCount: v.DislikeCount,
	}
}

func toItemResponses(views []model.ItemView) []itemResponse {
	out := make([]itemResponse, len(views))
	for i, v := range views {
		out[i] = toItemResponse(v)
	}
	return out
}

func toPageResponse(p *model.Page) pageResponse {
	return pageResponse{
		Items:       toItemResponses(p.Items),
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		TotalItems:  p.TotalItems,
	}
}

func toReactionResponses(reactions []*model.Reaction) []reactionResponse {
	out := make([]reactionResponse, len(reactions))
	for i, r := range reactions {
		out[i] = reactionResponse{
			ItemID:    r.ItemID,
			UserEmail: r.UserEmail,
			State:     string(r.State),
			Item: snapshotResponse{
				Author:       r.Snapshot.Author,
				Score:        r.Snapshot.Score,
				SubmittedAt:  r.Snapshot.SubmittedAt,
				Title:        r.Snapshot.Title,
				URL:          r.Snapshot.URL,
				CommentCount: r.Snapshot.CommentCount,
				Kind:         r.Snapshot.Kind,
				Text:         r.Snapshot.Text,
			},
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out
}

func toIdentityResponse(id model.Identity) identityResponse {
	return identityResponse{
		Email:    id.Email,
		Name:     id.Name,
		Nickname: id.Nickname,
		Picture:  id.Picture,
		IsAdmin:  id.IsAdmin,
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Email:     u.Email,
		Name:      u.Name,
		Nickname:  u.Nickname,
		Picture:   u.Picture,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}
