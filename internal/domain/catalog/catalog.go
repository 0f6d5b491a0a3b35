// Package catalog answers product list queries: filtering, search,
// ordering and pagination on top of a product.Repository.
package catalog

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/levels-catalog/internal/domain/product"
	"github.com/xenking/levels-catalog/internal/price"
)

// Page is one window of a product listing.
type Page struct {
	Items      []product.Product
	Total      int
	Limit      int
	Offset     int
	TotalPages int
}

// Service runs list queries. It holds no per-request state.
type Service struct {
	repo     product.Repository
	pageSize metric.Int64Histogram
}

// NewService creates a catalog Service.
func NewService(repo product.Repository, meter metric.Meter) (*Service, error) {
	pageSize, err := meter.Int64Histogram("catalog.page.size",
		metric.WithDescription("Products returned per list page"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "page size histogram")
	}
	return &Service{repo: repo, pageSize: pageSize}, nil
}

// List returns a page of the whole catalog.
func (s *Service) List(ctx context.Context, p Params) (*Page, error) {
	return s.find(ctx, "list", p.predicates(), p)
}

// Dashboard returns a page of the products created by creatorID.
func (s *Service) Dashboard(ctx context.Context, creatorID int64, p Params) (*Page, error) {
	preds := append([]product.Predicate{
		{Field: product.FieldCreator, Op: product.OpEq, Value: creatorID},
	}, p.predicates()...)
	return s.find(ctx, "dashboard", preds, p)
}

func (s *Service) find(ctx context.Context, op string, preds []product.Predicate, p Params) (*Page, error) {
	q := product.Query{
		Predicates: preds,
		Order:      ordering(p.Sort),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	byPrice := p.Sort == SortPriceAsc || p.Sort == SortPriceDesc
	if byPrice {
		// Prices are display strings, so every match is loaded and ordered here.
		q.Limit, q.Offset = -1, 0
	}

	items, total, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "find products (%s)", op)
	}
	if byPrice {
		sortByPrice(items, p.Sort == SortPriceDesc)
		items = window(items, p.Offset, p.Limit)
	}

	page := &Page{
		Items:      items,
		Total:      total,
		Limit:      p.Limit,
		Offset:     p.Offset,
		TotalPages: totalPages(total, p.Limit),
	}

	trace.SpanFromContext(ctx).AddEvent("catalog."+op, trace.WithAttributes(
		attribute.String("catalog.sort", p.Sort),
		attribute.Int("catalog.total", total),
		attribute.Int("catalog.returned", len(items)),
	))
	s.pageSize.Record(ctx, int64(len(items)), metric.WithAttributes(attribute.String("op", op)))
	return page, nil
}

func (p Params) predicates() []product.Predicate {
	var preds []product.Predicate
	if p.Category != "" {
		preds = append(preds, product.Predicate{Field: product.FieldCategory, Op: product.OpEq, Value: p.Category})
	}
	if p.Search != "" {
		preds = append(preds, product.Predicate{Field: product.FieldName, Op: product.OpContainsFold, Value: p.Search})
	}
	if p.Trending != nil {
		preds = append(preds, product.Predicate{Field: product.FieldTrending, Op: product.OpEq, Value: *p.Trending})
	}
	return preds
}

// ordering maps a sort key to repository order. Newest first breaks ties.
func ordering(sort string) []product.Order {
	newest := product.Order{Field: product.FieldCreatedAt, Desc: true}
	switch sort {
	case SortNameAsc:
		return []product.Order{{Field: product.FieldName}, newest}
	case SortNameDesc:
		return []product.Order{{Field: product.FieldName, Desc: true}, newest}
	case SortDateAsc:
		return []product.Order{{Field: product.FieldCreatedAt}}
	default:
		return []product.Order{newest}
	}
}

// sortByPrice orders items by their numeric price. The sort is stable, so
// equal prices keep the repository order.
func sortByPrice(items []product.Product, desc bool) {
	slices.SortStableFunc(items, func(a, b product.Product) int {
		c := cmp.Compare(price.ExtractNumeric(a.Price), price.ExtractNumeric(b.Price))
		if desc {
			return -c
		}
		return c
	})
}

func window(items []product.Product, offset, limit int) []product.Product {
	if offset >= len(items) {
		return []product.Product{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func totalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
