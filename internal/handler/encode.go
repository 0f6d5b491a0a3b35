package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(timeLayout))
}

func (h *Handler) encodeImage(e *jx.Encoder, img product.Image) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(img.ID.String())
	e.FieldStart("image")
	e.Str(img.Path)
	e.FieldStart("image_url")
	e.Str(h.mediaURL(img.Path))
	e.FieldStart("created_at")
	encodeTime(e, img.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID.String())
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Str(p.Price)

	e.FieldStart("specs")
	e.ArrStart()
	for _, s := range p.Specs {
		e.Str(s)
	}
	e.ArrEnd()

	e.FieldStart("warranty")
	e.Str(p.Warranty)

	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		h.encodeImage(e, img)
	}
	e.ArrEnd()

	e.FieldStart("image_urls")
	e.ArrStart()
	for _, img := range p.Images {
		e.Str(h.mediaURL(img.Path))
	}
	e.ArrEnd()

	e.FieldStart("created_at")
	encodeTime(e, p.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, p.UpdatedAt)

	e.FieldStart("creator")
	if p.CreatorID != nil {
		e.Int64(*p.CreatorID)
	} else {
		e.Null()
	}
	e.FieldStart("trending")
	e.Bool(p.Trending)
	e.ObjEnd()
}

// encodePageFields writes the list fields into an open object.
func (h *Handler) encodePageFields(e *jx.Encoder, page *catalog.Page) {
	e.FieldStart("products")
	e.ArrStart()
	for i := range page.Items {
		h.encodeProduct(e, &page.Items[i])
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(page.Total)
	e.FieldStart("limit")
	e.Int(page.Limit)
	e.FieldStart("offset")
	e.Int(page.Offset)
	e.FieldStart("total_pages")
	e.Int(page.TotalPages)
}

func encodeCreator(e *jx.Encoder, a *auth.Account) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(a.ID)
	e.FieldStart("username")
	e.Str(a.Username)
	e.FieldStart("email")
	e.Str(a.Email)
	e.ObjEnd()
}
