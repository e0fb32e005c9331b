package repository

import (
	"time"

	"github.com/hitoshi/hnreact/internal/model"
)

// SQLiteリポジトリはsqlxのdbタグでカラム名と構造体フィールドを対応付ける。

var itemColumnList = []string{
	"id", "position", "author", "score", "submitted_at",
	"title", "url", "comment_count", "kind", "text",
}

var reactionColumnList = []string{
	"id", "item_id", "user_email", "state",
	"author", "score", "submitted_at", "title", "url", "comment_count", "kind", "text",
	"created_at", "updated_at",
}

var userColumnList = []string{
	"id", "email", "name", "nickname", "picture", "is_admin", "created_at",
}

type itemRow struct {
	ID           int64  `db:"id"`
	Position     int    `db:"position"`
	Author       string `db:"author"`
	Score        int    `db:"score"`
	SubmittedAt  string `db:"submitted_at"`
	Title        string `db:"title"`
	URL          string `db:"url"`
	CommentCount int    `db:"comment_count"`
	Kind         string `db:"kind"`
	Text         string `db:"text"`
}

func (r itemRow) toModel() *model.Item {
	return &model.Item{
		ID:           r.ID,
		Position:     r.Position,
		Author:       r.Author,
		Score:        r.Score,
		SubmittedAt:  r.SubmittedAt,
		Title:        r.Title,
		URL:          r.URL,
		CommentCount: r.CommentCount,
		Kind:         r.Kind,
		Text:         r.Text,
	}
}

type reactionRow struct {
	ID           string    `db:"id"`
	ItemID       int64     `db:"item_id"`
	UserEmail    string    `db:"user_email"`
	State        string    `db:"state"`
	Author       string    `db:"author"`
	Score        int       `db:"score"`
	SubmittedAt  string    `db:"submitted_at"`
	Title        string    `db:"title"`
	URL          string    `db:"url"`
	CommentCount int       `db:"comment_count"`
	Kind         string    `db:"kind"`
	Text         string    `db:"text"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r reactionRow) toModel() *model.Reaction {
	return &model.Reaction{
		ID:        r.ID,
		ItemID:    r.ItemID,
		UserEmail: r.UserEmail,
		State:     model.ReactionState(r.State),
		Snapshot: model.ItemSnapshot{
			Author:       r.Author,
			Score:        r.Score,
			SubmittedAt:  r.SubmittedAt,
			Title:        r.Title,
			URL:          r.URL,
			CommentCount: r.CommentCount,
			Kind:         r.Kind,
			Text:         r.Text,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type userRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Nickname  string    `db:"nickname"`
	Picture   string    `db:"picture"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Nickname:  r.Nickname,
		Picture:   r.Picture,
		IsAdmin:   r.IsAdmin,
		CreatedAt: r.CreatedAt,
	}
}
