// Package item は記事の管理操作を提供する。
// 記事の取り込みは ingest パッケージが担い、ここでは管理者による削除を扱う。
package item

import (
	"context"
	"log/slog"

	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// Service は記事管理のサービス層。
type Service struct {
	itemRepo repository.ItemRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(itemRepo repository.ItemRepository, logger *slog.Logger) *Service {
	return &Service{
		itemRepo: itemRepo,
		logger:   logger,
	}
}

// Delete は記事とその記事に対する全ユーザーの評価を削除する。管理者のみ実行できる。
// 記事が存在しない場合は ErrCodeItemNotFound のAPIErrorを返す。
func (s *Service) Delete(ctx context.Context, requester model.Identity, itemID int64) error {
	if !requester.IsAdmin {
		return model.NewForbiddenError()
	}

	existing, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.NewItemNotFoundError(itemID)
	}

	if err := s.itemRepo.DeleteWithReactions(ctx, itemID); err != nil {
		return err
	}

	s.logger.Info("記事を削除しました",
		slog.Int64("item_id", itemID),
		slog.String("admin_email", requester.Email),
	)
	return nil
}
