// Package feed はニュース一覧のページ分割と評価集計の付与を提供する。
package feed

import (
	"context"
	"fmt"

	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// DefaultPageSize は1ページあたりの既定の記事数。
const DefaultPageSize = 10

// CountReader は記事ごとの評価集計を読み取るインターフェース。
type CountReader interface {
	CountByItem(ctx context.Context, itemID int64) (model.Counts, error)
}

// Paginator はリフレッシュ順の記事一覧を窓で切り出し、評価数を付与する。
// 評価数はリクエストごとに集計し、キャッシュしない。
type Paginator struct {
	itemRepo repository.ItemRepository
	counts   CountReader
	pageSize int
}

// NewPaginator はPaginatorの新しいインスタンスを生成する。
// pageSizeが0以下の場合はDefaultPageSizeを使用する。
func NewPaginator(itemRepo repository.ItemRepository, counts CountReader, pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{
		itemRepo: itemRepo,
		counts:   counts,
		pageSize: pageSize,
	}
}

// PageSize は既定のページサイズを返す。
func (p *Paginator) PageSize() int {
	return p.pageSize
}

// Page は指定ページの記事を返す。
// pageNumberが1以上の場合は[(n-1)*size, n*size)を返し、末尾を超えた分は切り詰める。
// pageNumberが0以下の場合は1ページ目として扱う。
// pageSizeが0以下の場合は既定のページサイズを使用する。
// TotalPagesは記事数をページサイズで割った値の切り上げ。
func (p *Paginator) Page(ctx context.Context, pageNumber, pageSize int) (*model.Page, error) {
	if pageSize <= 0 {
		pageSize = p.pageSize
	}
	if pageNumber <= 0 {
		pageNumber = 1
	}

	total, err := p.itemRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	page := &model.Page{
		Items:       []model.ItemView{},
		CurrentPage: pageNumber,
		TotalPages:  totalPages(total, pageSize),
		TotalItems:  total,
	}

	// 末尾より後ろのページはオフセットを計算する前に空で返す
	if pageNumber > page.TotalPages {
		return page, nil
	}

	offset := (pageNumber - 1) * pageSize

	views, err := p.window(ctx, offset, pageSize)
	if err != nil {
		return nil, err
	}
	page.Items = views
	return page, nil
}

// Latest は先頭からlimit件の記事を評価数付きで返す。
func (p *Paginator) Latest(ctx context.Context, limit int) ([]model.ItemView, error) {
	if limit <= 0 {
		return []model.ItemView{}, nil
	}
	return p.window(ctx, 0, limit)
}

func (p *Paginator) window(ctx context.Context, offset, limit int) ([]model.ItemView, error) {
	items, err := p.itemRepo.ListWindow(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	views := make([]model.ItemView, 0, len(items))
	for _, item := range items {
		c, err := p.counts.CountByItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count reactions for item %d: %w", item.ID, err)
		}
		views = append(views, model.ItemView{
			Item:         *item,
			LikeCount:    c.Liked,
			DislikeCount: c.Disliked,
		})
	}
	return views, nil
}

// totalPages はceil(total/size)を返す。
func totalPages(total, size int) int {
	if total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
