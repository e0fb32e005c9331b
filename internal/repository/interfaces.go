// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/hnreact/internal/model"
)

// ItemRepository は記事データの永続化インターフェース。
// 記事はリフレッシュ単位で全件置き換えられる。
type ItemRepository interface {
	// ReplaceAll は既存の記事を全削除し、itemsを同一トランザクションで挿入する。
	// itemsの順序がそのままpositionとして保存される。
	// 失敗時はロールバックされ、既存の記事はそのまま残る。
	ReplaceAll(ctx context.Context, items []*model.Item) error

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Item, error)

	// Count は現在の記事件数を返す。
	Count(ctx context.Context) (int, error)

	// ListWindow はposition順にoffsetからlimit件の記事を返す。
	ListWindow(ctx context.Context, offset, limit int) ([]*model.Item, error)

	// DeleteWithReactions は記事に紐づく評価を削除した後に記事を削除する。
	// 両方の削除を同一トランザクションで行う。記事が存在しない場合もエラーにしない。
	DeleteWithReactions(ctx context.Context, id int64) error
}

// ReactionRepository はユーザーごとの記事評価の永続化インターフェース。
type ReactionRepository interface {
	// Upsert は(itemID, email)の評価を作成または更新する。
	// 同一トランザクション内で記事の現在値を読み取り、スナップショットとして保存する。
	// 記事が存在しない場合は model.ErrCodeItemNotFound のAPIErrorを返し、何も書き込まない。
	Upsert(ctx context.Context, itemID int64, email string, state model.ReactionState) (*model.Reaction, error)

	// FindByItemAndUser は(itemID, email)の評価を取得する。見つからない場合はnilを返す。
	FindByItemAndUser(ctx context.Context, itemID int64, email string) (*model.Reaction, error)

	// DeleteByItemAndUser は(itemID, email)の評価を削除する。
	DeleteByItemAndUser(ctx context.Context, itemID int64, email string) error

	// DeleteByItem は記事に紐づく全ユーザーの評価を削除する。
	DeleteByItem(ctx context.Context, itemID int64) error

	// CountByItem は記事の状態別評価数を返す。
	CountByItem(ctx context.Context, itemID int64) (model.Counts, error)

	// ListByUser はユーザーの評価一覧を更新日時の降順で返す。
	ListByUser(ctx context.Context, email string) ([]*model.Reaction, error)

	// ListAll は全ユーザーの評価一覧を更新日時の降順で返す。
	ListAll(ctx context.Context) ([]*model.Reaction, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Ensure はユーザーが未登録の場合のみ作成する。
	// 既存ユーザーの内容は上書きしない。戻り値は保存済みのユーザー。
	Ensure(ctx context.Context, user *model.User) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを登録順に返す。
	List(ctx context.Context) ([]*model.User, error)

	// SetAdmin はユーザーの管理者フラグを更新する。
	// ユーザーが存在しない場合は model.ErrCodeUserNotFound のAPIErrorを返す。
	SetAdmin(ctx context.Context, email string, isAdmin bool) error

	// DeleteWithReactions はユーザーの評価を削除した後にユーザーを削除する。
	// 両方の削除を同一トランザクションで行う。
	// ユーザーが存在しない場合は model.ErrCodeUserNotFound のAPIErrorを返す。
	DeleteWithReactions(ctx context.Context, email string) error
}
