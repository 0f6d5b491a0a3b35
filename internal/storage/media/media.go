// Package media keeps product image files on the local filesystem.
package media

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/levels-catalog/internal/domain/product"
)

// Dir is the key prefix of stored product images.
const Dir = "products"

var _ product.MediaStore = (*Store)(nil)

// Store writes files under a root directory. Keys are slash-separated paths
// relative to the root, e.g. "products/<id>.png".
type Store struct {
	root    string
	baseURL string
}

// New creates the root directory when missing and returns a Store. URLs are
// built by joining baseURL and a key.
func New(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		return nil, errors.Wrap(err, "create media dir")
	}
	return &Store{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes data under the products directory and returns its key. The
// file becomes visible only once fully written.
func (s *Store) Save(_ context.Context, name string, data []byte) (string, error) {
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return "", errors.Errorf("invalid file name %q", name)
	}
	key := path.Join(Dir, base)

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close file")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "rename file")
	}
	return key, nil
}

// Remove deletes the file stored under key. Missing files are not an error.
func (s *Store) Remove(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %q", key)
	}
	return nil
}

// URL returns the public address of key.
func (s *Store) URL(key string) string {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// Handler serves stored files. Mount it with the prefix stripped.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}

func (s *Store) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if !strings.HasPrefix(clean, "/"+Dir+"/") {
		return "", errors.Errorf("key %q is outside the media directory", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
