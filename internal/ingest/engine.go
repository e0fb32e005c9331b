// Package ingest は上流フィードから記事を取り込むリフレッシュ処理を提供する。
// 一覧取得、記事ごとの並列取得、正規化、並べ替え、全件置き換えの順に実行する。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/hnreact/internal/metrics"
	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// defaultConcurrency は記事取得の既定の並列数。
const defaultConcurrency = 10

// Source は上流フィードのインターフェース。
type Source interface {
	// ListTopIDs は掲載順の記事ID一覧を返す。
	// 失敗時は model.ErrCodeUpstreamUnavailable のAPIErrorを返す。
	ListTopIDs(ctx context.Context) ([]int64, error)

	// FetchItem は記事1件を取得する。
	// 失敗時は model.ErrCodeItemMissing のAPIErrorを返す。
	FetchItem(ctx context.Context, id int64) (*model.ItemPayload, error)
}

// Options はEngineの動作設定。
type Options struct {
	// Concurrency は記事取得の最大並列数。0以下の場合は10。
	Concurrency int
	// MaxItems は取り込む記事数の上限。0以下の場合は無制限。
	MaxItems int
	// Location は投稿時刻の表示に使うタイムゾーン。nilの場合はtime.Local。
	Location *time.Location
}

// Result はリフレッシュ1回分の結果。
type Result struct {
	Listed   int           `json:"listed"`
	Stored   int           `json:"stored"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Engine は記事のリフレッシュを実行する。
// 同時に実行できるリフレッシュは1つだけで、実行中の呼び出しは
// model.ErrCodeRefreshInProgress のAPIErrorで拒否する。
type Engine struct {
	source    Source
	itemRepo  repository.ItemRepository
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	concurrency int
	maxItems    int
	location    *time.Location

	running atomic.Bool
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	source Source,
	itemRepo repository.ItemRepository,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Engine{
		source:      source,
		itemRepo:    itemRepo,
		sanitizer:   sanitizer,
		metrics:     collector,
		logger:      logger,
		concurrency: opts.Concurrency,
		maxItems:    opts.MaxItems,
		location:    opts.Location,
	}
}

// Refresh は上流から記事を取り込み、保存済みの記事を全件置き換える。
// 一覧取得に失敗した場合は保存済みの記事に一切触れずにエラーを返す。
// 個別記事の取得失敗はログに記録して読み飛ばす。
// 評価データには触れない。
func (e *Engine) Refresh(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, model.NewRefreshInProgressError()
	}
	defer e.running.Store(false)

	start := time.Now()

	ids, err := e.source.ListTopIDs(ctx)
	if err != nil {
		e.metrics.RecordRefreshFailure("upstream")
		e.logger.Error("記事一覧の取得に失敗したためリフレッシュを中止しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	ids = dedupe(ids)
	if e.maxItems > 0 && len(ids) > e.maxItems {
		ids = ids[:e.maxItems]
	}

	e.logger.Info("リフレッシュを開始します",
		slog.Int("id_count", len(ids)),
		slog.Int("max_concurrency", e.concurrency),
	)

	payloads := e.fetchAll(ctx, ids)

	rs := make([]ranked, 0, len(payloads))
	for _, p := range payloads {
		if p == nil {
			continue
		}
		rs = append(rs, ranked{
			item:  Normalize(p, e.location, e.sanitizer),
			epoch: p.Time,
		})
	}
	items := orderItems(rs)

	// 一覧はあるのに1件も取得できなかった場合は上流障害とみなし、保存済みの記事を残す
	if len(ids) > 0 && len(items) == 0 {
		e.metrics.RecordRefreshFailure("all_missing")
		e.logger.Error("記事を1件も取得できなかったためリフレッシュを中止しました",
			slog.Int("id_count", len(ids)),
		)
		return nil, model.NewUpstreamUnavailableError(fmt.Sprintf("%d件の記事をすべて取得できませんでした", len(ids)))
	}

	if err := e.itemRepo.ReplaceAll(ctx, items); err != nil {
		e.metrics.RecordRefreshFailure("store")
		e.logger.Error("記事の保存に失敗しました",
			slog.Int("item_count", len(items)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to replace items: %w", err)
	}

	result := &Result{
		Listed:   len(ids),
		Stored:   len(items),
		Skipped:  len(ids) - len(items),
		Duration: time.Since(start),
	}

	e.metrics.RecordRefreshSuccess(result.Stored, result.Skipped)
	e.metrics.RecordRefreshLatency(result.Duration)
	e.logger.Info("リフレッシュが完了しました",
		slog.Int("listed", result.Listed),
		slog.Int("stored", result.Stored),
		slog.Int("skipped", result.Skipped),
		slog.Float64("duration_ms", float64(result.Duration.Milliseconds())),
	)

	return result, nil
}

// fetchAll はsemaphoreで並列数を制限しながら全記事を取得する。
// 結果はidsと同じ添字に格納し、取得できなかった記事はnilのまま残す。
func (e *Engine) fetchAll(ctx context.Context, ids []int64) []*model.ItemPayload {
	payloads := make([]*model.ItemPayload, len(ids))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			p, err := e.source.FetchItem(ctx, id)
			if err != nil {
				e.logger.Warn("記事を取得できなかったため読み飛ばします",
					slog.Int64("item_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			if p.Deleted || p.Dead {
				e.logger.Warn("削除済みの記事を読み飛ばします",
					slog.Int64("item_id", id),
					slog.String("error", model.NewItemMissingError(id, "deleted").Error()),
				)
				return
			}
			payloads[i] = p
		}(i, id)
	}

	wg.Wait()
	return payloads
}

// dedupe は重複IDを最初の出現だけ残して取り除く。
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
