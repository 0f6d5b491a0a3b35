package handler

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	ht "github.com/ogen-go/ogen/http"

	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
	"github.com/xenking/levels-catalog/internal/imagecodec"
)

// multipartMemory is the part of a multipart body kept in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// productForm is a decoded product request. Nil fields were absent.
type productForm struct {
	Name       *string
	Category   *string
	Price      *product.Price
	Specs      *[]string
	Warranty   *string
	Trending   *bool
	ImagesData []string
	Uploads    []product.Upload
}

func (f *productForm) createInput(creatorID *int64) (product.CreateInput, error) {
	in := product.CreateInput{
		Warranty:   f.Warranty,
		CreatorID:  creatorID,
		ImagesData: f.ImagesData,
		Uploads:    f.Uploads,
	}
	switch {
	case f.Name == nil:
		return in, required("name")
	case f.Category == nil:
		return in, required("category")
	case f.Price == nil:
		return in, required("price")
	}
	in.Name = *f.Name
	in.Category = *f.Category
	in.Price = *f.Price
	if f.Specs != nil {
		in.Specs = *f.Specs
	}
	if f.Trending != nil {
		in.Trending = *f.Trending
	}
	return in, nil
}

func (f *productForm) updateInput() product.UpdateInput {
	return product.UpdateInput{
		Name:       f.Name,
		Category:   f.Category,
		Price:      f.Price,
		Specs:      f.Specs,
		Warranty:   f.Warranty,
		Trending:   f.Trending,
		ImagesData: f.ImagesData,
		Uploads:    f.Uploads,
	}
}

func required(field string) error {
	return &product.ValidationError{Field: field, Message: "This field is required."}
}

func invalid(field, msg string) error {
	return &product.ValidationError{Field: field, Message: msg}
}

// decodeProductForm reads a JSON, multipart or url-encoded product body.
func (h *Handler) decodeProductForm(w http.ResponseWriter, r *http.Request) (*productForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, badBody(err)
		}
		return decodeForm(r.MultipartForm.Value, r.MultipartForm.File)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, badBody(err)
		}
		return decodeForm(r.PostForm, nil)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, badBody(err)
		}
		return decodeJSON(body)
	}
}

// badBody keeps size errors intact so they map to their own message.
func badBody(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return &product.ValidationError{Message: "Malformed request body: " + err.Error()}
}

func decodeJSON(body []byte) (*productForm, error) {
	f := &productForm{}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return nil, &product.ValidationError{Message: "Request body must be a JSON object."}
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch key {
		case "name":
			return decodeStr(d, key, &f.Name)
		case "category":
			return decodeStr(d, key, &f.Category)
		case "warranty":
			return decodeStr(d, key, &f.Warranty)
		case "price":
			return decodePrice(d, &f.Price)
		case "specs":
			specs, err := decodeStrings(d, "specs", "Specs must be an array.", "Each spec must be a string.")
			if err != nil {
				return err
			}
			f.Specs = &specs
			return nil
		case "trending":
			return decodeBool(d, &f.Trending)
		case "images_data":
			images, err := decodeStrings(d, "images_data", "Expected a list of items.", "Not a valid string.")
			if err != nil {
				return err
			}
			f.ImagesData = images
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		var verr *product.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, &product.ValidationError{Message: "Malformed JSON: " + err.Error()}
	}
	return f, nil
}

func decodeStr(d *jx.Decoder, field string, dst **string) error {
	if d.Next() != jx.String {
		return invalid(field, "Not a valid string.")
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = &s
	return nil
}

func decodePrice(d *jx.Decoder, dst **product.Price) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = &product.Price{Text: s}
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		*dst = &product.Price{Text: n.String(), Number: true}
	default:
		return invalid("price", "Price must be a number or in format: '720,000' or '720,000 TZS'")
	}
	return nil
}

func decodeBool(d *jx.Decoder, dst **bool) error {
	var v bool
	switch d.Next() {
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return err
		}
		v = b
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		v = catalog.Truthy(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		v = n.String() != "0"
	default:
		return invalid("trending", "Must be a valid boolean.")
	}
	*dst = &v
	return nil
}

func decodeStrings(d *jx.Decoder, field, notArray, notString string) ([]string, error) {
	if d.Next() != jx.Array {
		return nil, invalid(field, notArray)
	}
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return invalid(field, notString)
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// decodeForm reads form fields. List fields accept repeated values or a
// single JSON array.
func decodeForm(values map[string][]string, files map[string][]*multipart.FileHeader) (*productForm, error) {
	f := &productForm{}
	first := func(key string) *string {
		if v, ok := values[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}

	f.Name = first("name")
	f.Category = first("category")
	f.Warranty = first("warranty")
	if p := first("price"); p != nil {
		f.Price = &product.Price{Text: *p}
	}
	if t := first("trending"); t != nil {
		v := catalog.Truthy(*t)
		f.Trending = &v
	}

	if v, ok := values["specs"]; ok {
		specs, err := formList(v, "specs", "Specs must be an array.", "Each spec must be a string.")
		if err != nil {
			return nil, err
		}
		f.Specs = &specs
	}
	if v, ok := values["images_data"]; ok {
		images, err := formList(v, "images_data", "Expected a list of items.", "Not a valid string.")
		if err != nil {
			return nil, err
		}
		f.ImagesData = images
	}

	uploads, err := readUploads(files["images"])
	if err != nil {
		return nil, err
	}
	f.Uploads = uploads
	return f, nil
}

func formList(values []string, field, notArray, notString string) ([]string, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		list, err := decodeStrings(jx.DecodeStr(values[0]), field, notArray, notString)
		if err != nil {
			var verr *product.ValidationError
			if errors.As(err, &verr) {
				return nil, verr
			}
			return nil, invalid(field, notArray)
		}
		return list, nil
	}
	return values, nil
}

func readUploads(headers []*multipart.FileHeader) ([]product.Upload, error) {
	uploads := make([]product.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) (product.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return product.Upload{}, errors.Wrapf(err, "open upload %q", fh.Filename)
	}
	defer func() { _ = f.Close() }()

	return imagecodec.ReadUpload(ht.MultipartFile{
		Name:   fh.Filename,
		File:   f,
		Size:   fh.Size,
		Header: fh.Header,
	})
}
