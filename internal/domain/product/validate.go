package product

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/xenking/levels-catalog/internal/price"
)

// AllowedImageTypes lists accepted upload content types.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageExtension returns the file extension stored images of contentType
// get. The media server derives the served type from it, so it never
// comes from the client's file name.
func ImageExtension(contentType string) string {
	if ext, ok := imageExtensions[contentType]; ok {
		return ext
	}
	return ".bin"
}

// ValidationError describes a rejected input value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidCategory reports whether s is one of Categories.
func ValidCategory(s string) bool {
	return slices.Contains(Categories, s)
}

// ValidPriceFormat reports whether s is an accepted display price.
func ValidPriceFormat(s string) bool {
	return price.ValidFormat(s)
}

// ValidName checks the product name length.
func ValidName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength {
		return invalid("name", "Product name must be at least %d characters long.", MinNameLength)
	}
	if n > MaxNameLength {
		return invalid("name", "Product name must not exceed %d characters.", MaxNameLength)
	}
	return nil
}

// ValidSpecs checks every spec entry length.
func ValidSpecs(specs []string) error {
	for _, s := range specs {
		if utf8.RuneCountInString(s) > MaxSpecLength {
			return invalid("specs", "Each spec must not exceed %d characters.", MaxSpecLength)
		}
	}
	return nil
}

// ValidWarranty checks the warranty column width.
func ValidWarranty(w string) error {
	if utf8.RuneCountInString(w) > MaxWarrantyLength {
		return invalid("warranty", "Warranty must not exceed %d characters.", MaxWarrantyLength)
	}
	return nil
}

// ValidImage checks an upload's size and declared content type.
func ValidImage(size int64, contentType string) error {
	if size > MaxImageSize {
		return &ValidationError{Message: "Image size exceeds 5MB limit"}
	}
	if !slices.Contains(AllowedImageTypes, contentType) {
		return &ValidationError{
			Message: "Invalid image type. Allowed types: " + strings.Join(AllowedImageTypes, ", "),
		}
	}
	return nil
}

func validCategory(category string) error {
	if !ValidCategory(category) {
		return invalid("category", "Category must be one of: %s", strings.Join(Categories, ", "))
	}
	return nil
}
