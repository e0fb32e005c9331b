package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/hnreact/internal/model"
)

// sqliteInsertChunk は1つのINSERT文にまとめる最大行数。
const sqliteInsertChunk = 100

// SQLiteItemRepo はSQLiteを使用した記事リポジトリ。
// 接続は _txlock=immediate で開かれている前提で、書き込みトランザクションは開始時に書き込みロックを取得する。
type SQLiteItemRepo struct {
	db *sqlx.DB
}

// NewSQLiteItemRepo はSQLiteItemRepoを生成する。
func NewSQLiteItemRepo(db *sqlx.DB) *SQLiteItemRepo {
	return &SQLiteItemRepo{db: db}
}

// ReplaceAll は既存の記事を全削除し、itemsを同一トランザクションで挿入する。
func (r *SQLiteItemRepo) ReplaceAll(ctx context.Context, items []*model.Item) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("既存記事の削除に失敗しました: %w", err)
	}

	for start := 0; start < len(items); start += sqliteInsertChunk {
		end := min(start+sqliteInsertChunk, len(items))

		ins := sq.Insert("items").Columns(itemColumnList...)
		for i := start; i < end; i++ {
			item := items[i]
			item.Position = i
			ins = ins.Values(
				item.ID, item.Position, item.Author, item.Score, item.SubmittedAt,
				item.Title, item.URL, item.CommentCount, item.Kind, item.Text,
			)
		}

		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("記事挿入SQLの構築に失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("記事の挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *SQLiteItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	return findSQLiteItem(ctx, r.db, id)
}

// findSQLiteItem はdbまたはtxから記事を1件取得する。
func findSQLiteItem(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Item, error) {
	query, args, err := sq.Select(itemColumnList...).From("items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("記事取得SQLの構築に失敗しました: %w", err)
	}

	var row itemRow
	err = sqlx.GetContext(ctx, q, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return row.toModel(), nil
}

// Count は現在の記事件数を返す。
func (r *SQLiteItemRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM items`); err != nil {
		return 0, fmt.Errorf("記事件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// ListWindow はposition順にoffsetからlimit件の記事を返す。
func (r *SQLiteItemRepo) ListWindow(ctx context.Context, offset, limit int) ([]*model.Item, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	query, args, err := sq.Select(itemColumnList...).
		From("items").
		OrderBy("position ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("記事一覧SQLの構築に失敗しました: %w", err)
	}

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	items := make([]*model.Item, len(rows))
	for i, row := range rows {
		items[i] = row.toModel()
	}
	return items, nil
}

// DeleteWithReactions は記事に紐づく評価を削除した後に記事を削除する。
func (r *SQLiteItemRepo) DeleteWithReactions(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("記事の評価の削除に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ItemRepository = (*SQLiteItemRepo)(nil)
