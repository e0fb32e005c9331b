package model

import "time"

// User はサービス利用ユーザーを表す。
// Email が一意キーで、最初に登録された内容が保持される。
type User struct {
	ID        string
	Email     string
	Name      string
	Nickname  string
	Picture   string
	IsAdmin   bool
	CreatedAt time.Time
}

// Identity は外部IdPで認証済みのリクエスト主体を表す。
// コア処理にはこの値を明示的に渡し、セッション状態は参照しない。
type Identity struct {
	Email    string
	Name     string
	Nickname string
	Picture  string
	IsAdmin  bool
}
