package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hnreact/internal/model"
)

// itemColumns はitemsテーブルのSELECT対象カラム。scanItemの引数順と一致させる。
const itemColumns = `id, position, author, score, submitted_at, title, url, comment_count, kind, text`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem はitemColumnsの順に1行を読み取る。
func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(
		&item.ID, &item.Position, &item.Author, &item.Score, &item.SubmittedAt,
		&item.Title, &item.URL, &item.CommentCount, &item.Kind, &item.Text,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// PostgresItemRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// ReplaceAll は既存の記事を全削除し、itemsを同一トランザクションで挿入する。
func (r *PostgresItemRepo) ReplaceAll(ctx context.Context, items []*model.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("既存記事の削除に失敗しました: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	)
	if err != nil {
		return fmt.Errorf("記事挿入文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		item.Position = i
		_, err := stmt.ExecContext(ctx,
			item.ID, item.Position, item.Author, item.Score, item.SubmittedAt,
			item.Title, item.URL, item.CommentCount, item.Kind, item.Text,
		)
		if err != nil {
			return fmt.Errorf("記事の挿入に失敗しました (id=%d): %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return item, nil
}

// Count は現在の記事件数を返す。
func (r *PostgresItemRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("記事件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// ListWindow はposition順にoffsetからlimit件の記事を返す。
func (r *PostgresItemRepo) ListWindow(ctx context.Context, offset, limit int) ([]*model.Item, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY position ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("記事の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// DeleteWithReactions は記事に紐づく評価を削除した後に記事を削除する。
func (r *PostgresItemRepo) DeleteWithReactions(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE item_id = $1`, id); err != nil {
		return fmt.Errorf("記事の評価の削除に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
