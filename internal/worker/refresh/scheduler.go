// Package refresh は記事リフレッシュの定期実行を提供する。
// ティッカーで一定間隔ごとにリフレッシュを実行し、
// 上流に接続できない場合はFibonacciバックオフで再試行する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hitoshi/hnreact/internal/ingest"
	"github.com/hitoshi/hnreact/internal/model"
)

const (
	// defaultInterval はリフレッシュの既定の実行間隔。
	defaultInterval = 15 * time.Minute
	// defaultRetryBase は再試行の初回待機時間。
	defaultRetryBase = 2 * time.Second
)

// Refresher はリフレッシュ1回分を実行するインターフェース。
type Refresher interface {
	Refresh(ctx context.Context) (*ingest.Result, error)
}

// Scheduler はリフレッシュを定期実行する。
type Scheduler struct {
	refresher  Refresher
	logger     *slog.Logger
	interval   time.Duration
	maxRetries uint64
	retryBase  time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合は15分を使用する。
// maxRetriesは上流に接続できない場合の再試行回数で、0の場合は再試行しない。
func NewScheduler(refresher Refresher, logger *slog.Logger, interval time.Duration, maxRetries uint64) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		refresher:  refresher,
		logger:     logger,
		interval:   interval,
		maxRetries: maxRetries,
		retryBase:  defaultRetryBase,
	}
}

// Start はティッカーでスケジューラを起動し、起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Duration("interval", s.interval),
		slog.Uint64("max_retries", s.maxRetries),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("リフレッシュサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce はリフレッシュを1回実行する。
// 上流に接続できなかった場合のみ再試行し、保存失敗などそれ以外のエラーは即座に返す。
// 別のリフレッシュが実行中の場合は何もせずnilを返す。
func (s *Scheduler) RunOnce(ctx context.Context) (*ingest.Result, error) {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewFibonacci(s.retryBase))

	var result *ingest.Result
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := s.refresher.Refresh(ctx)
		if err == nil {
			result = r
			return nil
		}
		if model.IsCode(err, model.ErrCodeUpstreamUnavailable) {
			s.logger.Warn("上流に接続できないため再試行します",
				slog.String("error", err.Error()),
			)
			return retry.RetryableError(err)
		}
		return err
	})

	if model.IsCode(err, model.ErrCodeRefreshInProgress) {
		s.logger.Info("リフレッシュが実行中のためスキップしました")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
