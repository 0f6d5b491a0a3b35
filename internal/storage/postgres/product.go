package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/levels-catalog/internal/domain/product"
)

const (
	productSelect = `SELECT id, name, category, price, price_amount, specs, warranty,
		creator_id, trending, created_at, updated_at FROM products`

	getProductSQL = productSelect + ` WHERE id = $1`

	insertProductSQL = `INSERT INTO products
		(id, name, category, price, price_amount, specs, warranty, creator_id, trending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateProductSQL = `UPDATE products SET
		name = $2, category = $3, price = $4, price_amount = $5, specs = $6,
		warranty = $7, trending = $8, updated_at = $9
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	lockProductSQL = `SELECT id FROM products WHERE id = $1 FOR UPDATE`

	listImagesSQL = `SELECT id, product_id, path, created_at FROM product_images
		WHERE product_id = ANY($1) ORDER BY created_at, id`

	getImageSQL = `SELECT id, product_id, path, created_at FROM product_images
		WHERE id = $1 AND product_id = $2`

	countImagesSQL = `SELECT count(*) FROM product_images WHERE product_id = $1`

	deleteImageSQL = `DELETE FROM product_images WHERE id = $1`

	listNamesSQL = `SELECT name FROM products`
)

var imageColumns = []string{"id", "product_id", "path", "created_at"}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Find returns the products selected by q and the number of all matches.
// Count and page are read from one snapshot.
func (r *ProductRepository) Find(ctx context.Context, q product.Query) ([]product.Product, int, error) {
	sq, err := buildQuery(q)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build query")
	}

	var (
		items []product.Product
		total int
	)
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err = pgx.BeginTxFunc(ctx, r.pool, opts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM products`+sq.where, sq.args...).Scan(&total); err != nil {
			return errors.Wrap(err, "count products")
		}

		rows, err := tx.Query(ctx, productSelect+sq.where+sq.orderBy+sq.page(q.Limit, q.Offset), sq.args...)
		if err != nil {
			return errors.Wrap(err, "query products")
		}
		items, err = pgx.CollectRows(rows, scanProduct)
		if err != nil {
			return errors.Wrap(err, "scan products")
		}
		return attachImages(ctx, tx, items)
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "find products")
	}
	return items, total, nil
}

// GetByID returns a product with its images.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}

	items := []product.Product{p}
	if err := attachImages(ctx, r.pool, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Create inserts the product and its images in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertProductSQL,
			p.ID, p.Name, p.Category, p.Price, p.PriceAmount, p.Specs, p.Warranty,
			p.CreatorID, p.Trending, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.ID)
		}
		return insertImages(ctx, tx, p.Images)
	})
}

// Update writes the mutable columns of p and appends images.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product, images []product.Image) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateProductSQL,
			p.ID, p.Name, p.Category, p.Price, p.PriceAmount, p.Specs, p.Warranty,
			p.Trending, p.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "update product %s", p.ID)
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		return insertImages(ctx, tx, images)
	})
}

// Delete removes a product. Image rows cascade; they are returned so the
// caller can drop the media files.
func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) ([]product.Image, error) {
	var images []product.Image
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if images, err = listImages(ctx, tx, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deleteProductSQL, id)
		if err != nil {
			return errors.Wrapf(err, "delete product %s", id)
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// DeleteImage removes one image while holding the product row lock, so two
// concurrent deletions cannot remove the last two images.
func (r *ProductRepository) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) (*product.Image, error) {
	var img product.Image
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, lockProductSQL, productID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return errors.Wrapf(err, "lock product %s", productID)
		}

		rows, err := tx.Query(ctx, getImageSQL, imageID, productID)
		if err != nil {
			return errors.Wrapf(err, "get image %s", imageID)
		}
		img, err = pgx.CollectExactlyOneRow(rows, scanImage)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrImageNotFound
			}
			return errors.Wrapf(err, "get image %s", imageID)
		}

		var count int
		if err := tx.QueryRow(ctx, countImagesSQL, productID).Scan(&count); err != nil {
			return errors.Wrap(err, "count images")
		}
		if count <= 1 {
			return product.ErrLastImage
		}

		if _, err := tx.Exec(ctx, deleteImageSQL, imageID); err != nil {
			return errors.Wrapf(err, "delete image %s", imageID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Names returns the names of all stored products.
func (r *ProductRepository) Names(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listNamesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list product names")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listImages(ctx context.Context, q querier, ids ...uuid.UUID) ([]product.Image, error) {
	rows, err := q.Query(ctx, listImagesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list images")
	}
	images, err := pgx.CollectRows(rows, scanImage)
	if err != nil {
		return nil, errors.Wrap(err, "scan images")
	}
	return images, nil
}

// attachImages loads the images of items with a single query.
func attachImages(ctx context.Context, q querier, items []product.Product) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, p := range items {
		ids[i] = p.ID
		index[p.ID] = i
		items[i].Images = []product.Image{}
	}

	images, err := listImages(ctx, q, ids...)
	if err != nil {
		return err
	}
	for _, img := range images {
		i := index[img.ProductID]
		items[i].Images = append(items[i].Images, img)
	}
	return nil
}

func insertImages(ctx context.Context, tx pgx.Tx, images []product.Image) error {
	if len(images) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"product_images"}, imageColumns,
		pgx.CopyFromSlice(len(images), func(i int) ([]any, error) {
			img := images[i]
			return []any{img.ID, img.ProductID, img.Path, img.CreatedAt}, nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "insert images")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		amount decimal.Decimal
		specs  []string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Price, &amount, &specs, &p.Warranty,
		&p.CreatorID, &p.Trending, &p.CreatedAt, &p.UpdatedAt,
	)
	if specs == nil {
		specs = []string{}
	}
	p.PriceAmount = amount
	p.Specs = specs
	return p, err
}

func scanImage(row pgx.CollectableRow) (product.Image, error) {
	var img product.Image
	err := row.Scan(&img.ID, &img.ProductID, &img.Path, &img.CreatedAt)
	return img, err
}
