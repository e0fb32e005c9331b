package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/hnreact/internal/model"
)

// reactionColumns はreactionsテーブルのSELECT対象カラム。scanReactionの引数順と一致させる。
const reactionColumns = `id, item_id, user_email, state,
	author, score, submitted_at, title, url, comment_count, kind, text,
	created_at, updated_at`

// scanReaction はreactionColumnsの順に1行を読み取る。
func scanReaction(row rowScanner) (*model.Reaction, error) {
	rc := &model.Reaction{}
	var state string
	err := row.Scan(
		&rc.ID, &rc.ItemID, &rc.UserEmail, &state,
		&rc.Snapshot.Author, &rc.Snapshot.Score, &rc.Snapshot.SubmittedAt,
		&rc.Snapshot.Title, &rc.Snapshot.URL, &rc.Snapshot.CommentCount,
		&rc.Snapshot.Kind, &rc.Snapshot.Text,
		&rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rc.State = model.ReactionState(state)
	return rc, nil
}

// PostgresReactionRepo はPostgreSQLを使用した記事評価リポジトリ。
type PostgresReactionRepo struct {
	db *sql.DB
}

// NewPostgresReactionRepo はPostgresReactionRepoを生成する。
func NewPostgresReactionRepo(db *sql.DB) *PostgresReactionRepo {
	return &PostgresReactionRepo{db: db}
}

// FindByItemAndUser は記事IDとメールアドレスで評価を取得する。見つからない場合はnilを返す。
func (r *PostgresReactionRepo) FindByItemAndUser(ctx context.Context, itemID int64, email string) (*model.Reaction, error) {
	rc, err := scanReaction(r.db.QueryRowContext(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE item_id = $1 AND user_email = $2`,
		itemID, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("評価の取得に失敗しました: %w", err)
	}
	return rc, nil
}

// Upsert は評価を冪等にUPSERTする。
// 記事行をFOR SHAREでロックしてスナップショットを読み取るため、
// 同時に走るリフレッシュの全件置換とは直列化される。
// UNIQUE(item_id, user_email)制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresReactionRepo) Upsert(
	ctx context.Context,
	itemID int64,
	email string,
	state model.ReactionState,
) (*model.Reaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 FOR SHARE`, itemID,
	))
	if err == sql.ErrNoRows {
		return nil, model.NewItemNotFoundError(itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	snap := item.Snapshot()

	rc, err := scanReaction(tx.QueryRowContext(ctx,
		`INSERT INTO reactions (id, item_id, user_email, state,
		     author, score, submitted_at, title, url, comment_count, kind, text,
		     created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		 ON CONFLICT (item_id, user_email) DO UPDATE SET
		     state = EXCLUDED.state,
		     author = EXCLUDED.author,
		     score = EXCLUDED.score,
		     submitted_at = EXCLUDED.submitted_at,
		     title = EXCLUDED.title,
		     url = EXCLUDED.url,
		     comment_count = EXCLUDED.comment_count,
		     kind = EXCLUDED.kind,
		     text = EXCLUDED.text,
		     updated_at = EXCLUDED.updated_at
		 RETURNING `+reactionColumns,
		uuid.New().String(), itemID, email, string(state),
		snap.Author, snap.Score, snap.SubmittedAt, snap.Title, snap.URL,
		snap.CommentCount, snap.Kind, snap.Text,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("評価の保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return rc, nil
}

// DeleteByItemAndUser は(itemID, email)の評価を削除する。
func (r *PostgresReactionRepo) DeleteByItemAndUser(ctx context.Context, itemID int64, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE item_id = $1 AND user_email = $2`,
		itemID, email,
	)
	if err != nil {
		return fmt.Errorf("評価の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByItem は記事に紐づく全ユーザーの評価を削除する。
func (r *PostgresReactionRepo) DeleteByItem(ctx context.Context, itemID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reactions WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("記事の評価の一括削除に失敗しました: %w", err)
	}
	return nil
}

// CountByItem は記事の状態別評価数を返す。
func (r *PostgresReactionRepo) CountByItem(ctx context.Context, itemID int64) (model.Counts, error) {
	var c model.Counts
	err := r.db.QueryRowContext(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE state = $2),
		     COUNT(*) FILTER (WHERE state = $3)
		 FROM reactions WHERE item_id = $1`,
		itemID, string(model.ReactionLiked), string(model.ReactionDisliked),
	).Scan(&c.Liked, &c.Disliked)
	if err != nil {
		return model.Counts{}, fmt.Errorf("評価数の集計に失敗しました: %w", err)
	}
	return c, nil
}

// ListByUser はユーザーの評価一覧を更新日時の降順で返す。
func (r *PostgresReactionRepo) ListByUser(ctx context.Context, email string) ([]*model.Reaction, error) {
	return r.list(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE user_email = $1 ORDER BY updated_at DESC, item_id ASC`,
		email,
	)
}

// ListAll は全ユーザーの評価一覧を更新日時の降順で返す。
func (r *PostgresReactionRepo) ListAll(ctx context.Context) ([]*model.Reaction, error) {
	return r.list(ctx,
		`SELECT ` + reactionColumns + ` FROM reactions ORDER BY updated_at DESC, item_id ASC, user_email ASC`,
	)
}

func (r *PostgresReactionRepo) list(ctx context.Context, query string, args ...any) ([]*model.Reaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("評価一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reactions []*model.Reaction
	for rows.Next() {
		rc, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("評価の読み取りに失敗しました: %w", err)
		}
		reactions = append(reactions, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("評価一覧の走査に失敗しました: %w", err)
	}
	return reactions, nil
}

// compile-time interface check
var _ ReactionRepository = (*PostgresReactionRepo)(nil)
