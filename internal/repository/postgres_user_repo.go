package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hnreact/internal/model"
)

// userColumns はusersテーブルのSELECT対象カラム。
const userColumns = `id, email, name, nickname, picture, is_admin, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Nickname, &u.Picture, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Ensure はユーザーが未登録の場合のみ作成し、保存済みのユーザーを返す。
// 既存行はON CONFLICT DO NOTHINGにより上書きされない。
func (r *PostgresUserRepo) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, nickname, picture, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (email) DO NOTHING`,
		user.ID, user.Email, user.Name, user.Nickname, user.Picture, user.IsAdmin, user.CreatedAt,
	)
	if err != nil {
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
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// List は全ユーザーを登録順に返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, email ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// SetAdmin はユーザーの管理者フラグを更新する。
func (r *PostgresUserRepo) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_admin = $1 WHERE email = $2`, isAdmin, email)
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
func (r *PostgresUserRepo) DeleteWithReactions(ctx context.Context, email string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE user_email = $1`, email); err != nil {
		return fmt.Errorf("failed to delete user reactions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
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
var _ UserRepository = (*PostgresUserRepo)(nil)
