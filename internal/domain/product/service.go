package product

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/levels-catalog/internal/price"
)

// Price is a price as received from a client. Number is set when the value
// arrived as a JSON number rather than a string.
type Price struct {
	Text   string
	Number bool
}

// CreateInput holds the fields of a new product.
type CreateInput struct {
	Name      string
	Category  string
	Price     Price
	Specs     []string
	Warranty  *string
	Trending  bool
	CreatorID *int64

	// ImagesData holds base64 images; empty entries are ignored.
	ImagesData []string
	// Uploads holds multipart files read by the transport.
	Uploads []Upload
}

// UpdateInput holds changed fields. Nil fields are left untouched.
type UpdateInput struct {
	Name     *string
	Category *string
	Price    *Price
	Specs    *[]string
	Warranty *string
	Trending *bool

	ImagesData []string
	Uploads    []Upload
}

// Service implements the product lifecycle: creation with mandatory
// images, updates that only ever add images, and guarded deletion.
type Service struct {
	repo   Repository
	media  MediaStore
	images ImageDecoder
	now    func() time.Time

	created metric.Int64Counter
	stored  metric.Int64Counter
}

// NewService creates a product Service.
func NewService(repo Repository, media MediaStore, images ImageDecoder, meter metric.Meter) (*Service, error) {
	created, err := meter.Int64Counter("catalog.products.created",
		metric.WithDescription("Products created"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "products counter")
	}
	stored, err := meter.Int64Counter("catalog.images.stored",
		metric.WithDescription("Product images written to the media store"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "images counter")
	}
	return &Service{
		repo:    repo,
		media:   media,
		images:  images,
		now:     time.Now,
		created: created,
		stored:  stored,
	}, nil
}

// Get returns a product with its images.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates the input, stores its images and persists the product.
// Nothing is persisted when any field or image is rejected.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	now := s.now()
	p := &Product{
		ID:        uuid.New(),
		Name:      in.Name,
		Category:  in.Category,
		Specs:     in.Specs,
		Warranty:  DefaultWarranty,
		CreatorID: in.CreatorID,
		Trending:  in.Trending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Specs == nil {
		p.Specs = []string{}
	}
	if in.Warranty != nil {
		p.Warranty = *in.Warranty
	}

	if err := ValidName(p.Name); err != nil {
		return nil, err
	}
	if err := validCategory(p.Category); err != nil {
		return nil, err
	}
	display, err := normalizePrice(in.Price)
	if err != nil {
		return nil, err
	}
	p.Price = display
	p.PriceAmount = price.Amount(display)
	if err := ValidSpecs(p.Specs); err != nil {
		return nil, err
	}
	if err := ValidWarranty(p.Warranty); err != nil {
		return nil, err
	}

	encoded := nonEmpty(in.ImagesData)
	total := len(encoded) + len(in.Uploads)
	if total > MaxImages {
		return nil, &ValidationError{Message: fmt.Sprintf("Maximum %d images allowed per product.", MaxImages)}
	}
	if total == 0 {
		return nil, &ValidationError{Message: "At least one image is required."}
	}

	uploads, err := s.prepare(p.ID, encoded, in.Uploads)
	if err != nil {
		return nil, err
	}
	images, err := s.store(ctx, p.ID, now, uploads)
	if err != nil {
		return nil, err
	}
	p.Images = images

	if err := s.repo.Create(ctx, p); err != nil {
		s.discard(ctx, images)
		return nil, errors.Wrap(err, "create product")
	}
	s.created.Add(ctx, 1)

	zctx.From(ctx).Info("Product created",
		zap.Stringer("product_id", p.ID),
		zap.Int("images", len(images)),
	)
	return p, nil
}

// Update applies in to the product. With partial unset, name, category
// and price must be present. New images are appended to existing ones.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, partial bool) (*Product, error) {
	if !partial {
		switch {
		case in.Name == nil:
			return nil, &ValidationError{Field: "name", Message: "This field is required."}
		case in.Category == nil:
			return nil, &ValidationError{Field: "category", Message: "This field is required."}
		case in.Price == nil:
			return nil, &ValidationError{Field: "price", Message: "This field is required."}
		}
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if err := ValidName(*in.Name); err != nil {
			return nil, err
		}
		p.Name = *in.Name
	}
	if in.Category != nil {
		if err := validCategory(*in.Category); err != nil {
			return nil, err
		}
		p.Category = *in.Category
	}
	if in.Price != nil {
		display, err := normalizePrice(*in.Price)
		if err != nil {
			return nil, err
		}
		p.Price = display
		p.PriceAmount = price.Amount(display)
	}
	if in.Specs != nil {
		specs := *in.Specs
		if specs == nil {
			specs = []string{}
		}
		if err := ValidSpecs(specs); err != nil {
			return nil, err
		}
		p.Specs = specs
	}
	if in.Warranty != nil {
		if err := ValidWarranty(*in.Warranty); err != nil {
			return nil, err
		}
		p.Warranty = *in.Warranty
	}
	if in.Trending != nil {
		p.Trending = *in.Trending
	}

	encoded := nonEmpty(in.ImagesData)
	current := len(p.Images)
	if current+len(encoded)+len(in.Uploads) > MaxImages {
		return nil, &ValidationError{
			Message: fmt.Sprintf("Maximum %d images allowed. Currently have %d images.", MaxImages, current),
		}
	}

	uploads, err := s.prepare(p.ID, encoded, in.Uploads)
	if err != nil {
		return nil, err
	}
	now := s.now()
	images, err := s.store(ctx, p.ID, now, uploads)
	if err != nil {
		return nil, err
	}

	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p, images); err != nil {
		s.discard(ctx, images)
		return nil, errors.Wrap(err, "update product")
	}
	p.Images = append(p.Images, images...)
	return p, nil
}

// Delete removes the product, its image rows and their media files.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	images, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.discard(ctx, images)
	return nil
}

// DeleteImage removes a single image. The last image of a product is kept
// and ErrLastImage is returned instead.
func (s *Service) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error {
	img, err := s.repo.DeleteImage(ctx, productID, imageID)
	if err != nil {
		return err
	}
	s.discard(ctx, []Image{*img})
	return nil
}

// prepare decodes base64 images and validates uploads, in that order. The
// first rejected image aborts the whole batch.
func (s *Service) prepare(id uuid.UUID, encoded []string, uploads []Upload) ([]Upload, error) {
	out := make([]Upload, 0, len(encoded)+len(uploads))
	for i, data := range encoded {
		u, err := s.images.DecodeBase64(data, fmt.Sprintf("product_%s_%d.png", id, i))
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("Error processing image %d: %s", i+1, err)}
		}
		out = append(out, u)
	}
	for _, u := range uploads {
		if err := ValidImage(u.Size, u.ContentType); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// store writes uploads to the media store. Creation times are spaced by a
// microsecond so the stored order survives a round trip through Postgres.
func (s *Service) store(ctx context.Context, productID uuid.UUID, now time.Time, uploads []Upload) ([]Image, error) {
	images := make([]Image, 0, len(uploads))
	for i, u := range uploads {
		imageID := uuid.New()
		key, err := s.media.Save(ctx, imageID.String()+ImageExtension(u.ContentType), u.Data)
		if err != nil {
			s.discard(ctx, images)
			return nil, errors.Wrapf(err, "store image %d", i+1)
		}
		images = append(images, Image{
			ID:        imageID,
			ProductID: productID,
			Path:      key,
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	s.stored.Add(ctx, int64(len(images)))
	return images, nil
}

func (s *Service) discard(ctx context.Context, images []Image) {
	for _, img := range images {
		if err := s.media.Remove(ctx, img.Path); err != nil {
			zctx.From(ctx).Warn("Remove media file",
				zap.String("path", img.Path),
				zap.Error(err),
			)
		}
	}
}

func normalizePrice(p Price) (string, error) {
	tooLong := &ValidationError{
		Field:   "price",
		Message: fmt.Sprintf("Ensure this field has no more than %d characters.", MaxPriceLength),
	}
	if utf8.RuneCountInString(p.Text) > MaxPriceLength {
		return "", tooLong
	}

	var display string
	if p.Number {
		d, err := decimal.NewFromString(p.Text)
		if err != nil {
			return "", &ValidationError{Field: "price", Message: "A valid number is required."}
		}
		display = price.FormatDecimal(d)
	} else {
		var err error
		if display, err = price.Normalize(p.Text); err != nil {
			return "", &ValidationError{Field: "price", Message: err.Error()}
		}
	}
	// Grouping adds separators, so the stored form can outgrow the input.
	if utf8.RuneCountInString(display) > MaxPriceLength {
		return "", tooLong
	}
	return display, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
