package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	ht "github.com/ogen-go/ogen/http"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/product"
	"github.com/xenking/levels-catalog/internal/imagecodec"
)

const bloomFPR = 0.001

// seedFile is the layout of a seed document.
type seedFile struct {
	Accounts []seedAccount `json:"accounts"`
	Products []seedProduct `json:"products"`
}

type seedAccount struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type seedProduct struct {
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    seedPrice `json:"price"`
	Specs    []string  `json:"specs"`
	Warranty *string   `json:"warranty"`
	Trending bool      `json:"trending"`
	// Creator is the username of a seeded or existing account.
	Creator string `json:"creator"`
	// ImagesData holds base64 payloads.
	ImagesData []string `json:"images_data"`
	// ImageFiles are paths relative to the seed file.
	ImageFiles []string `json:"image_files"`
}

// seedPrice accepts "720,000 TZS" as well as 720000.
type seedPrice product.Price

func (p *seedPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = seedPrice{Text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "price")
	}
	*p = seedPrice{Text: n.String(), Number: true}
	return nil
}

// readSeedFile decodes a seed document, gunzipping paths ending in .gz.
func readSeedFile(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var doc seedFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &doc, nil
}

type accountStore interface {
	Register(ctx context.Context, username, email, password string) (*auth.Account, error)
}

type accountFinder interface {
	FindAccountByUsername(ctx context.Context, username string) (*auth.Account, error)
}

type productCreator interface {
	Create(ctx context.Context, in product.CreateInput) (*product.Product, error)
}

type productFinder interface {
	Find(ctx context.Context, q product.Query) ([]product.Product, int, error)
}

// seeder loads a seed document into the catalog.
type seeder struct {
	lg       *zap.Logger
	accounts accountStore
	lookup   accountFinder
	products productCreator
	existing productFinder
	workers  int
	// baseDir resolves image_files entries.
	baseDir string
}

type seedStats struct {
	accounts int
	created  int
	skipped  int
}

func (s *seeder) run(ctx context.Context, doc *seedFile, names []string) (seedStats, error) {
	var stats seedStats

	creators, err := s.seedAccounts(ctx, doc.Accounts, &stats)
	if err != nil {
		return stats, errors.Wrap(err, "seed accounts")
	}

	queue, err := s.plan(ctx, doc.Products, names)
	if err != nil {
		return stats, errors.Wrap(err, "plan products")
	}
	stats.skipped = len(doc.Products) - len(queue)

	created, err := s.createProducts(ctx, queue, creators)
	stats.created = created
	if err != nil {
		return stats, errors.Wrap(err, "create products")
	}
	return stats, nil
}

// seedAccounts registers accounts and resolves every username to an id.
// Accounts that already exist are reused.
func (s *seeder) seedAccounts(ctx context.Context, accounts []seedAccount, stats *seedStats) (map[string]int64, error) {
	ids := make(map[string]int64, len(accounts))
	for _, a := range accounts {
		acc, err := s.accounts.Register(ctx, a.Username, a.Email, a.Password)
		switch {
		case err == nil:
			stats.accounts++
			s.lg.Info("Account created", zap.String("username", a.Username), zap.Int64("id", acc.ID))
		case errors.Is(err, auth.ErrAccountExists):
			acc, err = s.lookup.FindAccountByUsername(ctx, a.Username)
			if err != nil {
				return nil, errors.Wrapf(err, "find account %q", a.Username)
			}
			s.lg.Info("Account exists", zap.String("username", a.Username))
		default:
			return nil, errors.Wrapf(err, "register %q", a.Username)
		}
		ids[a.Username] = acc.ID
	}
	return ids, nil
}

// plan drops products whose name is already stored or repeated in the
// document. The bloom filter keeps the exact lookup off the common path.
func (s *seeder) plan(ctx context.Context, items []seedProduct, names []string) ([]seedProduct, error) {
	filter := bloom.NewWithEstimates(uint(len(names)+len(items))+1, bloomFPR)
	for _, n := range names {
		filter.AddString(n)
	}

	queue := make([]seedProduct, 0, len(items))
	inDoc := make(map[string]struct{}, len(items))
	for _, p := range items {
		if _, dup := inDoc[p.Name]; dup {
			s.lg.Info("Skipping repeated product", zap.String("name", p.Name))
			continue
		}
		inDoc[p.Name] = struct{}{}

		if filter.TestString(p.Name) {
			stored, err := s.stored(ctx, p.Name)
			if err != nil {
				return nil, err
			}
			if stored {
				s.lg.Info("Skipping existing product", zap.String("name", p.Name))
				continue
			}
		}
		queue = append(queue, p)
	}
	return queue, nil
}

func (s *seeder) stored(ctx context.Context, name string) (bool, error) {
	_, total, err := s.existing.Find(ctx, product.Query{
		Predicates: []product.Predicate{{Field: product.FieldName, Op: product.OpEq, Value: name}},
		Limit:      1,
	})
	if err != nil {
		return false, errors.Wrapf(err, "look up %q", name)
	}
	return total > 0, nil
}

// createProducts creates the queued products on a bounded worker pool.
func (s *seeder) createProducts(ctx context.Context, queue []seedProduct, creators map[string]int64) (int, error) {
	var created atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))
	for _, p := range queue {
		g.Go(func() error {
			in, err := s.input(p, creators)
			if err != nil {
				return errors.Wrapf(err, "prepare %q", p.Name)
			}
			res, err := s.products.Create(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "create %q", p.Name)
			}
			created.Add(1)
			s.lg.Info("Product created",
				zap.String("name", res.Name),
				zap.Stringer("id", res.ID),
				zap.Int("images", len(res.Images)),
			)
			return nil
		})
	}
	err := g.Wait()
	return int(created.Load()), err
}

func (s *seeder) input(p seedProduct, creators map[string]int64) (product.CreateInput, error) {
	in := product.CreateInput{
		Name:       p.Name,
		Category:   p.Category,
		Price:      product.Price(p.Price),
		Specs:      p.Specs,
		Warranty:   p.Warranty,
		Trending:   p.Trending,
		ImagesData: p.ImagesData,
	}
	if p.Creator != "" {
		id, ok := creators[p.Creator]
		if !ok {
			return in, errors.Errorf("unknown creator %q", p.Creator)
		}
		in.CreatorID = &id
	}
	for _, name := range p.ImageFiles {
		u, err := s.readImage(name)
		if err != nil {
			return in, err
		}
		in.Uploads = append(in.Uploads, u)
	}
	return in, nil
}

func (s *seeder) readImage(name string) (product.Upload, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return product.Upload{}, errors.Wrapf(err, "open image %s", name)
	}
	defer func() { _ = f.Close() }()

	return imagecodec.ReadUpload(ht.MultipartFile{
		Name: filepath.Base(path),
		File: f,
	})
}
