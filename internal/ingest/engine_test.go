package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/security"
)

// --- テスト用モック ---

type mockSource struct {
	listFn  func(ctx context.Context) ([]int64, error)
	fetchFn func(ctx context.Context, id int64) (*model.ItemPayload, error)
}

func (m *mockSource) ListTopIDs(ctx context.Context) ([]int64, error) {
	return m.listFn(ctx)
}

func (m *mockSource) FetchItem(ctx context.Context, id int64) (*model.ItemPayload, error) {
	return m.fetchFn(ctx, id)
}

// payloadSource は固定の記事データを返すSourceを生成する。
func payloadSource(payloads ...*model.ItemPayload) *mockSource {
	byID := make(map[int64]*model.ItemPayload, len(payloads))
	ids := make([]int64, len(payloads))
	for i, p := range payloads {
		byID[p.ID] = p
		ids[i] = p.ID
	}
	return &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) { return ids, nil },
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			p, ok := byID[id]
			if !ok {
				return nil, model.NewItemMissingError(id, "not found")
			}
			return p, nil
		},
	}
}

type mockItemRepo struct {
	mu           sync.Mutex
	replaced     []*model.Item
	replaceCalls int
	replaceErr   error
}

func (m *mockItemRepo) ReplaceAll(ctx context.Context, items []*model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = items
	return nil
}

func (m *mockItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	return nil, nil
}

func (m *mockItemRepo) Count(ctx context.Context) (int, error) {
	return len(m.replaced), nil
}

func (m *mockItemRepo) ListWindow(ctx context.Context, offset, limit int) ([]*model.Item, error) {
	return nil, nil
}

func (m *mockItemRepo) DeleteWithReactions(ctx context.Context, id int64) error {
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestEngine(src Source, repo *mockItemRepo, buf *bytes.Buffer, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return NewEngine(src, repo, security.NewItemSanitizer(), nil, newTestLogger(buf), opts)
}

func ids(items []*model.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- テスト ---

// TestRefresh_OrdersNewestFirst はスコア[3,1,2]・時刻[t1<t2<t3]の記事が時刻の降順になることを検証する。
func TestRefresh_OrdersNewestFirst(t *testing.T) {
	src := payloadSource(
		&model.ItemPayload{ID: 1, Score: 3, Time: 1000},
		&model.ItemPayload{ID: 2, Score: 1, Time: 2000},
		&model.ItemPayload{ID: 3, Score: 2, Time: 3000},
	)
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if got, want := ids(repo.replaced), []int64{3, 2, 1}; !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for i, it := range repo.replaced {
		if it.Position != i {
			t.Errorf("items[%d].Position = %d, want %d", i, it.Position, i)
		}
	}
	if result.Stored != 3 || result.Skipped != 0 || result.Listed != 3 {
		t.Errorf("result = %+v", result)
	}
}

// TestRefresh_TiedTimestampsKeepScoreOrder は同時刻の記事がスコア昇順で並ぶことを検証する。
func TestRefresh_TiedTimestampsKeepScoreOrder(t *testing.T) {
	src := payloadSource(
		&model.ItemPayload{ID: 1, Score: 50, Time: 100},
		&model.ItemPayload{ID: 2, Score: 10, Time: 100},
		&model.ItemPayload{ID: 3, Score: 30, Time: 200},
		&model.ItemPayload{ID: 4, Score: 20, Time: 100},
	)
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	if _, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if got, want := ids(repo.replaced), []int64{3, 2, 4, 1}; !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

// TestRefresh_ListFailureLeavesStoreUntouched は一覧取得失敗時に保存処理が呼ばれないことを検証する。
func TestRefresh_ListFailureLeavesStoreUntouched(t *testing.T) {
	fetched := false
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			return nil, model.NewUpstreamUnavailableError("timeout")
		},
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			fetched = true
			return nil, nil
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background())
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if !model.IsCode(err, model.ErrCodeUpstreamUnavailable) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeUpstreamUnavailable)
	}
	if repo.replaceCalls != 0 {
		t.Errorf("ReplaceAll called %d times, want 0", repo.replaceCalls)
	}
	if fetched {
		t.Error("一覧取得に失敗した場合は記事を取得してはならない")
	}
}

// TestRefresh_SkipsMissingItems は取得できない記事だけを読み飛ばすことを検証する。
func TestRefresh_SkipsMissingItems(t *testing.T) {
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			return []int64{1, 2, 3, 4}, nil
		},
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			switch id {
			case 2:
				return nil, model.NewItemMissingError(id, "status 500")
			case 4:
				return &model.ItemPayload{ID: id, Deleted: true}, nil
			}
			return &model.ItemPayload{ID: id, Time: id}, nil
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{Concurrency: 2}).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if got, want := ids(repo.replaced), []int64{3, 1}; !equalIDs(got, want) {
		t.Errorf("stored = %v, want %v", got, want)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if !strings.Contains(buf.String(), model.ErrCodeItemMissing) {
		t.Errorf("ITEM_MISSING がログに出力されていない: %s", buf.String())
	}
}

// TestRefresh_AllItemsMissingKeepsStore は一覧は取れたが記事が1件も取れない場合に保存しないことを検証する。
func TestRefresh_AllItemsMissingKeepsStore(t *testing.T) {
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			return []int64{1, 2, 3}, nil
		},
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			if id == 3 {
				return &model.ItemPayload{ID: id, Dead: true}, nil
			}
			return nil, model.NewItemMissingError(id, "context deadline exceeded")
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background())
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if !model.IsCode(err, model.ErrCodeUpstreamUnavailable) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeUpstreamUnavailable)
	}
	if repo.replaceCalls != 0 {
		t.Errorf("ReplaceAll called %d times, want 0", repo.replaceCalls)
	}
}

// TestRefresh_EmptyListReplacesWithEmptySet は上流の一覧が空の場合は空集合で置き換えることを検証する。
func TestRefresh_EmptyListReplacesWithEmptySet(t *testing.T) {
	src := payloadSource()
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if repo.replaceCalls != 1 || len(repo.replaced) != 0 {
		t.Errorf("replaceCalls = %d, replaced = %d, want 1 call with 0 items", repo.replaceCalls, len(repo.replaced))
	}
	if result.Listed != 0 || result.Stored != 0 {
		t.Errorf("result = %+v, want zero counts", result)
	}
}

// TestRefresh_StoreFailure は保存失敗がラップされて返ることを検証する。
func TestRefresh_StoreFailure(t *testing.T) {
	storeErr := errors.New("disk full")
	src := payloadSource(&model.ItemPayload{ID: 1})
	repo := &mockItemRepo{replaceErr: storeErr}
	var buf bytes.Buffer

	_, err := newTestEngine(src, repo, &buf, Options{}).Refresh(context.Background())
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped %v", err, storeErr)
	}
}

// TestRefresh_MaxItemsAndDuplicates は重複IDの除去と件数上限を検証する。
func TestRefresh_MaxItemsAndDuplicates(t *testing.T) {
	var mu sync.Mutex
	var requested []int64
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			return []int64{5, 5, 6, 7, 8}, nil
		},
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			mu.Lock()
			requested = append(requested, id)
			mu.Unlock()
			return &model.ItemPayload{ID: id}, nil
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	result, err := newTestEngine(src, repo, &buf, Options{MaxItems: 3}).Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if result.Listed != 3 || result.Stored != 3 {
		t.Errorf("result = %+v, want 3 listed and stored", result)
	}
	if len(requested) != 3 {
		t.Errorf("requested = %v, want 3 fetches", requested)
	}
}

// TestRefresh_RejectsConcurrentRun は実行中のリフレッシュがある場合に拒否することを検証する。
func TestRefresh_RejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			close(entered)
			<-release
			return nil, nil
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer
	e := newTestEngine(src, repo, &buf, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := e.Refresh(context.Background())
		done <- err
	}()
	<-entered

	_, err := e.Refresh(context.Background())
	if !model.IsCode(err, model.ErrCodeRefreshInProgress) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeRefreshInProgress)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Refresh returned error: %v", err)
	}

	// 完了後は再度実行できる
	src.listFn = func(ctx context.Context) ([]int64, error) { return nil, nil }
	if _, err := e.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh after completion returned error: %v", err)
	}
}

// TestRefresh_BoundedConcurrency は同時取得数が上限を超えないことを検証する。
func TestRefresh_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	src := &mockSource{
		listFn: func(ctx context.Context) ([]int64, error) {
			return []int64{1, 2, 3, 4, 5, 6, 7, 8}, nil
		},
		fetchFn: func(ctx context.Context, id int64) (*model.ItemPayload, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return &model.ItemPayload{ID: id}, nil
		},
	}
	repo := &mockItemRepo{}
	var buf bytes.Buffer

	if _, err := newTestEngine(src, repo, &buf, Options{Concurrency: 3}).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}
