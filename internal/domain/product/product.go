package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog limits.
const (
	DefaultWarranty   = "3 Months"
	MaxImages         = 10
	MaxImageSize      = 5 * 1024 * 1024
	MaxSpecLength     = 500
	MinNameLength     = 3
	MaxNameLength     = 200
	MaxWarrantyLength = 50
	MaxPriceLength    = 50
)

// Categories lists the accepted product categories.
var Categories = []string{"Laptops", "Desktops", "Gaming PCs", "Accessories"}

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("Product not found")
	// ErrImageNotFound is returned when an image does not exist or belongs
	// to another product.
	ErrImageNotFound = errors.New("Image not found")
	// ErrLastImage is returned when removing an image would leave its
	// product without images.
	ErrLastImage = errors.New("Cannot delete the last image. At least one image is required.")
)

// Product is a catalog record.
type Product struct {
	ID       uuid.UUID
	Name     string
	Category string
	// Price is the display string, e.g. "720,000 TZS".
	Price string
	// PriceAmount mirrors Price as a number. Sorting uses Price.
	PriceAmount decimal.Decimal
	Specs       []string
	Warranty    string
	CreatorID   *int64
	Trending    bool
	Images      []Image
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image is a stored product picture. Path is the media store key.
type Image struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Path      string
	CreatedAt time.Time
}

// Field names a filterable or sortable product attribute.
type Field string

// Product fields understood by repositories.
const (
	FieldCategory  Field = "category"
	FieldName      Field = "name"
	FieldTrending  Field = "trending"
	FieldCreator   Field = "creator"
	FieldCreatedAt Field = "created_at"
)

// Op is a predicate comparison.
type Op string

const (
	// OpEq is strict equality.
	OpEq Op = "eq"
	// OpContainsFold is a case-insensitive substring match on strings.
	OpContainsFold Op = "icontains"
)

// Predicate is a single filter condition.
type Predicate struct {
	Field Field
	Op    Op
	Value any
}

// Order is a sort key.
type Order struct {
	Field Field
	Desc  bool
}

// Query selects products. A negative Limit returns every matching row.
type Query struct {
	Predicates []Predicate
	Order      []Order
	Limit      int
	Offset     int
}

// Repository persists products and their images.
type Repository interface {
	// Find returns the selected page and the total number of matches.
	Find(ctx context.Context, q Query) ([]Product, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// Create inserts p together with p.Images in one transaction.
	Create(ctx context.Context, p *Product) error
	// Update writes the scalar fields of p and appends images.
	Update(ctx context.Context, p *Product, images []Image) error
	// Delete removes the product and returns the images it cascaded.
	Delete(ctx context.Context, id uuid.UUID) ([]Image, error)
	// DeleteImage removes one image unless it is the product's last one,
	// in which case ErrLastImage is returned.
	DeleteImage(ctx context.Context, productID, imageID uuid.UUID) (*Image, error)
}

// MediaStore keeps image payloads out of the database.
type MediaStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// Upload is an image payload ready to be stored.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// ImageDecoder turns base64 payloads into storable uploads.
type ImageDecoder interface {
	DecodeBase64(data, filename string) (Upload, error)
}
