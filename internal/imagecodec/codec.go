// Package imagecodec converts client-supplied image payloads into files the
// media store can keep: base64 strings are re-encoded as opaque PNG, and
// multipart uploads are read and typed.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	ht "github.com/ogen-go/ogen/http"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/xenking/levels-catalog/internal/domain/product"
)

// ErrUnsupported is returned by a Codec built without image processing.
var ErrUnsupported = errors.New("image processing is not available")

// MaxPixels bounds the dimensions of a decoded image. Compressed payloads
// can declare rasters far larger than their size on the wire.
const MaxPixels = 50_000_000

// InvalidImageError reports a base64 payload that could not be turned
// into an image.
type InvalidImageError struct {
	Err error
}

func (e *InvalidImageError) Error() string {
	return "Invalid base64 image: " + e.Err.Error()
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

var _ product.ImageDecoder = (*Codec)(nil)

// Codec decodes base64 images. Processing can be switched off, in which
// case every decode fails with ErrUnsupported.
type Codec struct {
	enabled bool
}

// New returns a Codec.
func New(enabled bool) *Codec {
	return &Codec{enabled: enabled}
}

// Enabled reports whether the codec can process images.
func (c *Codec) Enabled() bool {
	return c.enabled
}

// DecodeBase64 decodes a base64 image, optionally wrapped in a data URL,
// and returns it re-encoded as an RGB PNG named filename.
func (c *Codec) DecodeBase64(data, filename string) (product.Upload, error) {
	if !c.enabled {
		return product.Upload{}, ErrUnsupported
	}

	if _, payload, ok := strings.Cut(data, ","); ok {
		data = payload
	}
	data = strings.TrimSpace(data)

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		var rawErr error
		if raw, rawErr = base64.RawStdEncoding.DecodeString(data); rawErr != nil {
			return product.Upload{}, &InvalidImageError{Err: err}
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return product.Upload{}, &InvalidImageError{Err: err}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return product.Upload{}, &InvalidImageError{
			Err: errors.Errorf("image of %dx%d pixels exceeds the %d pixel limit", cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return product.Upload{}, &InvalidImageError{Err: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, opaque(img)); err != nil {
		return product.Upload{}, &InvalidImageError{Err: err}
	}

	return product.Upload{
		Name:        filename,
		ContentType: "image/png",
		Size:        int64(buf.Len()),
		Data:        buf.Bytes(),
	}, nil
}

// opaque copies img into an RGB raster, dropping the alpha channel.
func opaque(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.Set(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// ReadUpload reads a multipart file. Reading stops just past the upload
// size limit so oversized files are still reported with their real size.
// A missing or generic content type is sniffed from the payload.
func ReadUpload(f ht.MultipartFile) (product.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(f.File, product.MaxImageSize+1))
	if err != nil {
		return product.Upload{}, errors.Wrapf(err, "read upload %q", f.Name)
	}

	size := f.Size
	if size <= 0 {
		size = int64(len(data))
	}

	contentType := ""
	if f.Header != nil {
		contentType = f.Header.Get("Content-Type")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	return product.Upload{
		Name:        f.Name,
		ContentType: contentType,
		Size:        size,
		Data:        data,
	}, nil
}
