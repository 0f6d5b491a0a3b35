package catalog

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/levels-catalog/internal/domain/product"
)

// fakeRepo returns a fixed result set and records the last query.
type fakeRepo struct {
	product.Repository

	items []product.Product
	err   error
	last  product.Query
}

func (f *fakeRepo) Find(_ context.Context, q product.Query) ([]product.Product, int, error) {
	f.last = q
	if f.err != nil {
		return nil, 0, f.err
	}
	out := append([]product.Product(nil), f.items...)
	total := len(out)
	if q.Limit >= 0 {
		out = window(out, q.Offset, q.Limit)
	}
	return out, total, nil
}

func newTestService(t *testing.T, items ...product.Product) (*Service, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{items: items}
	svc, err := NewService(repo, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return svc, repo
}

func item(name, price string, age time.Duration) product.Product {
	return product.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(-age),
	}
}

func names(items []product.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Name
	}
	return out
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{
			query: "",
			want:  Params{Sort: SortDateDesc, Limit: DefaultLimit},
		},
		{
			query: "limit=0&offset=-5",
			want:  Params{Sort: SortDateDesc, Limit: DefaultLimit},
		},
		{
			query: "limit=500&offset=abc",
			want:  Params{Sort: SortDateDesc, Limit: DefaultLimit},
		},
		{
			query: "limit=x&offset=40",
			want:  Params{Sort: SortDateDesc, Limit: DefaultLimit, Offset: 40},
		},
		{
			query: "limit=100&sort=-price",
			want:  Params{Sort: SortPriceDesc, Limit: 100},
		},
		{
			query: "sort=popularity",
			want:  Params{Sort: SortDateDesc, Limit: DefaultLimit},
		},
		{
			query: "category=Laptops&search=+thinkpad+&sort=name&limit=5&offset=10",
			want: Params{
				Category: "Laptops",
				Search:   "thinkpad",
				Sort:     SortNameAsc,
				Limit:    5,
				Offset:   10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseParams(v))
		})
	}
}

func TestParseParams_Trending(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"yes", true},
		{"On", true},
		{"TRUE", true},
		{"1", true},
		{"no", false},
		{"0", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			p := ParseParams(url.Values{"trending": {tt.value}})
			require.NotNil(t, p.Trending)
			assert.Equal(t, tt.want, *p.Trending)
		})
	}

	assert.Nil(t, ParseParams(url.Values{}).Trending, "absent filter")
}

func TestService_List_Predicates(t *testing.T) {
	svc, repo := newTestService(t)
	trending := true

	_, err := svc.List(context.Background(), Params{
		Category: "Desktops",
		Search:   "tower",
		Trending: &trending,
		Sort:     SortNameDesc,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)

	assert.Equal(t, []product.Predicate{
		{Field: product.FieldCategory, Op: product.OpEq, Value: "Desktops"},
		{Field: product.FieldName, Op: product.OpContainsFold, Value: "tower"},
		{Field: product.FieldTrending, Op: product.OpEq, Value: true},
	}, repo.last.Predicates)
	assert.Equal(t, []product.Order{
		{Field: product.FieldName, Desc: true},
		{Field: product.FieldCreatedAt, Desc: true},
	}, repo.last.Order)
	assert.Equal(t, 10, repo.last.Limit)
	assert.Equal(t, 20, repo.last.Offset)
}

func TestService_List_DefaultOrder(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.List(context.Background(), ParseParams(url.Values{"sort": {"unknown"}}))
	require.NoError(t, err)
	assert.Equal(t, []product.Order{{Field: product.FieldCreatedAt, Desc: true}}, repo.last.Order)
	assert.Empty(t, repo.last.Predicates)
}

func TestService_List_PriceSort(t *testing.T) {
	// Repository order is newest first.
	items := []product.Product{
		item("A", "100,000", 0),
		item("B", "50,000 TZS", time.Hour),
		item("C", "200,000", 2*time.Hour),
	}

	t.Run("descending", func(t *testing.T) {
		svc, repo := newTestService(t, items...)
		page, err := svc.List(context.Background(), Params{Sort: SortPriceDesc, Limit: 20})
		require.NoError(t, err)

		assert.Equal(t, []string{"C", "A", "B"}, names(page.Items))
		assert.Equal(t, -1, repo.last.Limit, "price sort loads every match")
		assert.Equal(t, 0, repo.last.Offset)
	})

	t.Run("ascending", func(t *testing.T) {
		svc, _ := newTestService(t, items...)
		page, err := svc.List(context.Background(), Params{Sort: SortPriceAsc, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, names(page.Items))
	})

	t.Run("paginated", func(t *testing.T) {
		svc, _ := newTestService(t, items...)
		page, err := svc.List(context.Background(), Params{Sort: SortPriceDesc, Limit: 2, Offset: 1})
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "B"}, names(page.Items))
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("offset past end", func(t *testing.T) {
		svc, _ := newTestService(t, items...)
		page, err := svc.List(context.Background(), Params{Sort: SortPriceDesc, Limit: 2, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 3, page.Total)
	})

	t.Run("ties keep repository order", func(t *testing.T) {
		svc, _ := newTestService(t,
			item("new", "10,000", 0),
			item("bad", "call us", time.Minute),
			item("old", "10,000 TZS", time.Hour),
		)
		page, err := svc.List(context.Background(), Params{Sort: SortPriceDesc, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "old", "bad"}, names(page.Items))
	})
}

func TestService_Dashboard(t *testing.T) {
	svc, repo := newTestService(t, item("A", "1,000", 0))

	page, err := svc.Dashboard(context.Background(), 42, Params{Category: "Accessories", Sort: SortDateAsc, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.Len(t, repo.last.Predicates, 2)
	assert.Equal(t, product.Predicate{Field: product.FieldCreator, Op: product.OpEq, Value: int64(42)}, repo.last.Predicates[0])
	assert.Equal(t, product.FieldCategory, repo.last.Predicates[1].Field)
	assert.Equal(t, []product.Order{{Field: product.FieldCreatedAt}}, repo.last.Order)
}

func TestService_List_Error(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("connection refused")

	_, err := svc.List(context.Background(), Params{Sort: SortDateDesc, Limit: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 20))
	assert.Equal(t, 1, totalPages(1, 20))
	assert.Equal(t, 1, totalPages(20, 20))
	assert.Equal(t, 2, totalPages(21, 20))
	assert.Equal(t, 5, totalPages(100, 20))
}
