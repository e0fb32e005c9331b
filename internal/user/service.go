// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// Service はユーザー管理のサービス層。
// 外部IdPで認証済みの識別情報からのユーザー登録と、管理者によるユーザー操作を提供する。
type Service struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureUser は識別情報のユーザーが未登録であれば登録し、保存済みのユーザーを返す。
// 既に登録済みの場合は内容を更新しない（最初に登録された値が残る）。
// 管理者フラグは識別情報ではなく保存済みの値に従う。
func (s *Service) EnsureUser(ctx context.Context, identity model.Identity) (*model.User, error) {
	email := strings.TrimSpace(identity.Email)
	if email == "" {
		return nil, model.NewUnauthorizedError()
	}

	u, err := s.userRepo.Ensure(ctx, &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      identity.Name,
		Nickname:  identity.Nickname,
		Picture:   identity.Picture,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}
	return u, nil
}

// IsAdmin は保存済みユーザーの管理者フラグを返す。未登録の場合はfalse。
func (s *Service) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u != nil && u.IsAdmin, nil
}

// List は全ユーザーを返す。管理者のみ実行できる。
func (s *Service) List(ctx context.Context, requester model.Identity) ([]*model.User, error) {
	if !requester.IsAdmin {
		return nil, model.NewForbiddenError()
	}
	return s.userRepo.List(ctx)
}

// Delete はユーザーとその評価をすべて削除する。管理者のみ実行できる。
// 評価の削除とユーザーの削除は同一トランザクションで行われる。
func (s *Service) Delete(ctx context.Context, requester model.Identity, email string) error {
	if !requester.IsAdmin {
		return model.NewForbiddenError()
	}

	if err := s.userRepo.DeleteWithReactions(ctx, email); err != nil {
		return err
	}

	s.logger.Info("ユーザーを削除しました",
		slog.String("user_email", email),
		slog.String("admin_email", requester.Email),
	)
	return nil
}

// SetAdmin はユーザーの管理者フラグを変更する。
// 運用コマンドから呼び出すため識別情報による権限確認は行わない。
func (s *Service) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	if err := s.userRepo.SetAdmin(ctx, email, isAdmin); err != nil {
		return err
	}
	s.logger.Info("管理者フラグを変更しました",
		slog.String("user_email", email),
		slog.Bool("is_admin", isAdmin),
	)
	return nil
}
