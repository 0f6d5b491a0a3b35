package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
)

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.List(r.Context(), catalog.ParseParams(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve products")
		return
	}
	writeSuccess(w, http.StatusOK, "Products retrieved successfully", func(e *jx.Encoder) {
		e.ObjStart()
		h.encodePageFields(e, page)
		e.ObjEnd()
	})
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, "")
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve product")
		return
	}
	h.writeProduct(w, http.StatusOK, "Product retrieved successfully", p)
}

// CreateProduct handles POST /products. The caller becomes the creator.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to create product"

	form, err := h.decodeProductForm(w, r)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	var creator *int64
	if a, ok := auth.AccountFromContext(r.Context()); ok {
		creator = &a.ID
	}
	in, err := form.createInput(creator)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	h.writeProduct(w, http.StatusCreated, "Product created successfully", p)
}

// UpdateProduct handles PUT /products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PatchProduct handles PATCH /products/{id}.
func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	const fallback = "Failed to update product"

	id, ok := productID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, fallback)
		return
	}
	form, err := h.decodeProductForm(w, r)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	p, err := h.products.Update(r.Context(), id, form.updateInput(), partial)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}
	h.writeProduct(w, http.StatusOK, "Product updated successfully", p)
}

// DeleteProduct handles DELETE /products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, "")
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "Failed to delete product")
		return
	}
	writeSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

// DeleteImage handles DELETE /products/{id}/images/{image_id}.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, "")
		return
	}
	imageID, err := uuid.Parse(r.PathValue("image_id"))
	if err != nil {
		h.fail(w, r, product.ErrImageNotFound, "")
		return
	}
	if err := h.products.DeleteImage(r.Context(), id, imageID); err != nil {
		h.fail(w, r, err, "Failed to delete image")
		return
	}
	writeSuccess(w, http.StatusOK, "Image deleted successfully", nil)
}

func (h *Handler) writeProduct(w http.ResponseWriter, status int, message string, p *product.Product) {
	writeSuccess(w, status, message, func(e *jx.Encoder) {
		h.encodeProduct(e, p)
	})
}

// productID parses the {id} path segment. Malformed ids are reported as
// missing products.
func productID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}
