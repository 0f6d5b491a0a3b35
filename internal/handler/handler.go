// Package handler implements the catalog REST API on net/http.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
)

// ProductService runs the product lifecycle.
type ProductService interface {
	Get(ctx context.Context, id uuid.UUID) (*product.Product, error)
	Create(ctx context.Context, in product.CreateInput) (*product.Product, error)
	Update(ctx context.Context, id uuid.UUID, in product.UpdateInput, partial bool) (*product.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error
}

// CatalogService answers list queries.
type CatalogService interface {
	List(ctx context.Context, p catalog.Params) (*catalog.Page, error)
	Dashboard(ctx context.Context, creatorID int64, p catalog.Params) (*catalog.Page, error)
}

// AuthService signs accounts in and resolves tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Authenticate(ctx context.Context, key string) (*auth.Account, error)
}

// Prober reports process liveness.
type Prober interface {
	IsLive() bool
}

// Config holds non-dependency handler settings.
type Config struct {
	// Debug adds error details to 500 responses.
	Debug bool
	// MediaURL turns a stored image key into a public URL. When nil, keys
	// are returned as is.
	MediaURL func(key string) string
	// MaxBodyBytes caps request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes fits ten 5 MiB images plus form fields.
const DefaultMaxBodyBytes = 64 << 20

// Handler serves the API.
type Handler struct {
	products ProductService
	catalog  CatalogService
	auth     AuthService
	health   Prober

	debug    bool
	mediaURL func(string) string
	maxBody  int64
}

// New creates a Handler.
func New(cfg Config, products ProductService, catalog CatalogService, auth AuthService, health Prober) *Handler {
	h := &Handler{
		products: products,
		catalog:  catalog,
		auth:     auth,
		health:   health,
		debug:    cfg.Debug,
		mediaURL: cfg.MediaURL,
		maxBody:  cfg.MaxBodyBytes,
	}
	if h.mediaURL == nil {
		h.mediaURL = func(key string) string { return key }
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	return h
}

// Register mounts the API routes on mux under prefix, e.g. "/api". Every
// route answers with and without a trailing slash.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	prefix = strings.TrimSuffix(prefix, "/")
	handle := func(method, path string, fn http.HandlerFunc) {
		mux.Handle(method+" "+prefix+path, fn)
		mux.Handle(method+" "+prefix+path+"/{$}", fn)
	}

	handle(http.MethodGet, "/health", h.Health)
	handle(http.MethodPost, "/login", h.Login)
	handle(http.MethodGet, "/dashboard", h.requireAuth(h.Dashboard))

	handle(http.MethodGet, "/products", h.ListProducts)
	handle(http.MethodPost, "/products", h.requireAuth(h.CreateProduct))
	handle(http.MethodGet, "/products/{id}", h.GetProduct)
	handle(http.MethodPut, "/products/{id}", h.requireAuth(h.UpdateProduct))
	handle(http.MethodPatch, "/products/{id}", h.requireAuth(h.PatchProduct))
	handle(http.MethodDelete, "/products/{id}", h.requireAuth(h.DeleteProduct))
	handle(http.MethodDelete, "/products/{id}/images/{image_id}", h.requireAuth(h.DeleteImage))
}
