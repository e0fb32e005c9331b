package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/hnreact/internal/model"
)

// SQLiteReactionRepo はSQLiteを使用した記事評価リポジトリ。
type SQLiteReactionRepo struct {
	db *sqlx.DB
}

// NewSQLiteReactionRepo はSQLiteReactionRepoを生成する。
func NewSQLiteReactionRepo(db *sqlx.DB) *SQLiteReactionRepo {
	return &SQLiteReactionRepo{db: db}
}

// FindByItemAndUser は記事IDとメールアドレスで評価を取得する。見つからない場合はnilを返す。
func (r *SQLiteReactionRepo) FindByItemAndUser(ctx context.Context, itemID int64, email string) (*model.Reaction, error) {
	query, args, err := sq.Select(reactionColumnList...).
		From("reactions").
		Where(sq.Eq{"item_id": itemID, "user_email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("評価取得SQLの構築に失敗しました: %w", err)
	}

	var row reactionRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("評価の取得に失敗しました: %w", err)
	}
	return row.toModel(), nil
}

// Upsert は評価を冪等にUPSERTする。
// BEGIN IMMEDIATEで書き込みロックを先に取るため、同一キーへの同時要求は直列化され
// 最後にコミットされた状態が残る。
func (r *SQLiteReactionRepo) Upsert(
	ctx context.Context,
	itemID int64,
	email string,
	state model.ReactionState,
) (*model.Reaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	item, err := findSQLiteItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	now := time.Now().UTC()
	snap := item.Snapshot()

	query, args, err := sq.Insert("reactions").
		Columns(reactionColumnList...).
		Values(
			uuid.New().String(), itemID, email, string(state),
			snap.Author, snap.Score, snap.SubmittedAt, snap.Title, snap.URL,
			snap.CommentCount, snap.Kind, snap.Text,
			now, now,
		).
		Suffix(`ON CONFLICT (item_id, user_email) DO UPDATE SET
			state = excluded.state,
			author = excluded.author,
			score = excluded.score,
			submitted_at = excluded.submitted_at,
			title = excluded.title,
			url = excluded.url,
			comment_count = excluded.comment_count,
			kind = excluded.kind,
			text = excluded.text,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("評価保存SQLの構築に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("評価の保存に失敗しました: %w", err)
	}

	selQuery, selArgs, err := sq.Select(reactionColumnList...).
		From("reactions").
		Where(sq.Eq{"item_id": itemID, "user_email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("評価取得SQLの構築に失敗しました: %w", err)
	}
	var row reactionRow
	if err := tx.GetContext(ctx, &row, selQuery, selArgs...); err != nil {
		return nil, fmt.Errorf("保存した評価の取得に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return row.toModel(), nil
}

// DeleteByItemAndUser は(itemID, email)の評価を削除する。
func (r *SQLiteReactionRepo) DeleteByItemAndUser(ctx context.Context, itemID int64, email string) error {
	query, args, err := sq.Delete("reactions").
		Where(sq.Eq{"item_id": itemID, "user_email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("評価削除SQLの構築に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("評価の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByItem は記事に紐づく全ユーザーの評価を削除する。
func (r *SQLiteReactionRepo) DeleteByItem(ctx context.Context, itemID int64) error {
	query, args, err := sq.Delete("reactions").Where(sq.Eq{"item_id": itemID}).ToSql()
	if err != nil {
		return fmt.Errorf("評価削除SQLの構築に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("記事の評価の一括削除に失敗しました: %w", err)
	}
	return nil
}

// CountByItem は記事の状態別評価数を返す。
func (r *SQLiteReactionRepo) CountByItem(ctx context.Context, itemID int64) (model.Counts, error) {
	query, args, err := sq.Select(
		"COALESCE(SUM(CASE WHEN state = 'liked' THEN 1 ELSE 0 END), 0) AS liked",
		"COALESCE(SUM(CASE WHEN state = 'disliked' THEN 1 ELSE 0 END), 0) AS disliked",
	).From("reactions").Where(sq.Eq{"item_id": itemID}).ToSql()
	if err != nil {
		return model.Counts{}, fmt.Errorf("評価集計SQLの構築に失敗しました: %w", err)
	}

	var row struct {
		Liked    int `db:"liked"`
		Disliked int `db:"disliked"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return model.Counts{}, fmt.Errorf("評価数の集計に失敗しました: %w", err)
	}
	return model.Counts{Liked: row.Liked, Disliked: row.Disliked}, nil
}

// ListByUser はユーザーの評価一覧を更新日時の降順で返す。
func (r *SQLiteReactionRepo) ListByUser(ctx context.Context, email string) ([]*model.Reaction, error) {
	return r.list(ctx, sq.Select(reactionColumnList...).
		From("reactions").
		Where(sq.Eq{"user_email": email}).
		OrderBy("updated_at DESC", "item_id ASC"))
}

// ListAll は全ユーザーの評価一覧を更新日時の降順で返す。
func (r *SQLiteReactionRepo) ListAll(ctx context.Context) ([]*model.Reaction, error) {
	return r.list(ctx, sq.Select(reactionColumnList...).
		From("reactions").
		OrderBy("updated_at DESC", "item_id ASC", "user_email ASC"))
}

func (r *SQLiteReactionRepo) list(ctx context.Context, b sq.SelectBuilder) ([]*model.Reaction, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("評価一覧SQLの構築に失敗しました: %w", err)
	}

	var rows []reactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("評価一覧の取得に失敗しました: %w", err)
	}

	reactions := make([]*model.Reaction, len(rows))
	for i, row := range rows {
		reactions[i] = row.toModel()
	}
	return reactions, nil
}

// compile-time interface check
var _ ReactionRepository = (*SQLiteReactionRepo)(nil)
