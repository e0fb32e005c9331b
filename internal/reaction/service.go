// Package reaction は記事への評価（いいね・よくないね）のドメインロジックを提供する。
package reaction

import (
	"context"
	"log/slog"

	"github.com/hitoshi/hnreact/internal/metrics"
	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// Service は評価の登録・取り消し・集計を行うサービス。
// 呼び出し元の識別情報は引数で明示的に受け取り、
// 認証済みかどうかの判定は境界層のガードに任せる。
type Service struct {
	reactionRepo repository.ReactionRepository
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reactionRepo repository.ReactionRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Service{
		reactionRepo: reactionRepo,
		metrics:      collector,
		logger:       logger,
	}
}

// SetReaction は記事に対する評価を設定し、設定後の集計を返す。
// 同じ状態を繰り返し設定しても行は1つのまま（冪等）。
// 逆の状態を設定すると既存の行の状態が切り替わる。
// 記事が存在しない場合は ErrCodeItemNotFound のAPIErrorを返し、何も書き込まない。
func (s *Service) SetReaction(
	ctx context.Context,
	itemID int64,
	requester model.Identity,
	state model.ReactionState,
) (model.Counts, error) {
	if requester.Email == "" {
		return model.Counts{}, model.NewUnauthorizedError()
	}
	if !state.Valid() {
		return model.Counts{}, model.NewInvalidReactionError(string(state))
	}

	if _, err := s.reactionRepo.Upsert(ctx, itemID, requester.Email, state); err != nil {
		return model.Counts{}, err
	}

	s.metrics.RecordReaction(string(state))
	s.logger.Info("評価を登録しました",
		slog.Int64("item_id", itemID),
		slog.String("user_email", requester.Email),
		slog.String("state", string(state)),
	)

	return s.reactionRepo.CountByItem(ctx, itemID)
}

// ClearReaction は記事に対する評価を取り消す。
// 管理者の場合は記事に紐づく全ユーザーの評価を削除し、
// それ以外は呼び出し元自身の評価だけを削除する。
// 該当する評価がなくてもエラーにしない。
func (s *Service) ClearReaction(ctx context.Context, itemID int64, requester model.Identity) error {
	if requester.Email == "" {
		return model.NewUnauthorizedError()
	}

	if requester.IsAdmin {
		if err := s.reactionRepo.DeleteByItem(ctx, itemID); err != nil {
			return err
		}
		s.metrics.RecordReactionCleared(true)
		s.logger.Info("記事の評価を一括削除しました",
			slog.Int64("item_id", itemID),
			slog.String("admin_email", requester.Email),
		)
		return nil
	}

	if err := s.reactionRepo.DeleteByItemAndUser(ctx, itemID, requester.Email); err != nil {
		return err
	}
	s.metrics.RecordReactionCleared(false)
	return nil
}

// GetCounts は記事の状態別評価数を返す。
// 存在しない記事に対しては0件を返す。
func (s *Service) GetCounts(ctx context.Context, itemID int64) (model.Counts, error) {
	return s.reactionRepo.CountByItem(ctx, itemID)
}

// ListByUser は呼び出し元自身の評価一覧をスナップショット付きで返す。
func (s *Service) ListByUser(ctx context.Context, requester model.Identity) ([]*model.Reaction, error) {
	if requester.Email == "" {
		return nil, model.NewUnauthorizedError()
	}
	return s.reactionRepo.ListByUser(ctx, requester.Email)
}

// ListAll は全ユーザーの評価一覧を返す。管理者のみ実行できる。
func (s *Service) ListAll(ctx context.Context, requester model.Identity) ([]*model.Reaction, error) {
	if !requester.IsAdmin {
		return nil, model.NewForbiddenError()
	}
	return s.reactionRepo.ListAll(ctx)
}
