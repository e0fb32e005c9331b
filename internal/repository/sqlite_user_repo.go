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

// SQLiteUserRepo はSQLiteを使用したユーザーリポジトリ。
type SQLiteUserRepo struct {
	db *sqlx.DB
}

// NewSQLiteUserRepo はSQLiteUserRepoを生成する。
func NewSQLiteUserRepo(db *sqlx.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db}
}

// Ensure はユーザーが未登録の場合のみ作成し、保存済みのユーザーを返す。
func (r *SQLiteUserRepo) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	query, args, err := sq.Insert("users").
		Columns(userColumnList...).
		Values(user.ID, user.Email, user.Name, user.Nickname, user.Picture, user.IsAdmin, user.CreatedAt).
		Suffix("ON CONFLICT (email) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert user sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	stored, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("user disappeared after insert: %s", user.Email)
	}
	return stored, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLiteUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query, args, err := sq.Select(userColumnList...).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find user sql: %w", err)
	}

	var row userRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return row.toModel(), nil
}

// List は全ユーザーを登録順に返す。
func (r *SQLiteUserRepo) List(ctx context.Context) ([]*model.User, error) {
	query, args, err := sq.Select(userColumnList...).From("users").OrderBy("created_at ASC", "email ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list users sql: %w", err)
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*model.User, len(rows))
	for i, row := range rows {
		users[i] = row.toModel()
	}
	return users, nil
}

// SetAdmin はユーザーの管理者フラグを更新する。
func (r *SQLiteUserRepo) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	query, args, err := sq.Update("users").
		Set("is_admin", isAdmin).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update admin sql: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError(email)
	}
	return nil
}

// DeleteWithReactions はユーザーの評価を削除した後にユーザーを削除する。
func (r *SQLiteUserRepo) DeleteWithReactions(ctx context.Context, email string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE user_email = ?`, email); err != nil {
		return fmt.Errorf("failed to delete user reactions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError(email)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*SQLiteUserRepo)(nil)
