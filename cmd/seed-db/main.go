package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/product"
	"github.com/xenking/levels-catalog/internal/imagecodec"
	"github.com/xenking/levels-catalog/internal/storage/media"
	"github.com/xenking/levels-catalog/internal/storage/postgres"
)

type options struct {
	databaseURL string
	seedFile    string
	mediaRoot   string
	workers     int
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.seedFile, "file", "db/seed/catalog.json", "path to the seed document (.json or .json.gz)")
	flag.StringVar(&opts.mediaRoot, "media-root", "media", "directory for product images (or LEVELS_MEDIA_ROOT env)")
	flag.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0), "products created concurrently")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if v := os.Getenv("LEVELS_MEDIA_ROOT"); v != "" && !isFlagSet("media-root") {
		opts.mediaRoot = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Reading seed document", zap.String("path", opts.seedFile))
	doc, err := readSeedFile(opts.seedFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store, err := media.New(opts.mediaRoot, "")
	if err != nil {
		return errors.Wrap(err, "create media store")
	}

	productRepo := postgres.NewProductRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)

	products, err := product.NewService(productRepo, store, imagecodec.New(true), noop.NewMeterProvider().Meter("seed-db"))
	if err != nil {
		return errors.Wrap(err, "create product service")
	}

	names, err := productRepo.Names(ctx)
	if err != nil {
		return errors.Wrap(err, "load product names")
	}

	s := &seeder{
		lg:       lg,
		accounts: auth.NewService(accountRepo),
		lookup:   accountRepo,
		products: products,
		existing: productRepo,
		workers:  opts.workers,
		baseDir:  filepath.Dir(opts.seedFile),
	}
	stats, err := s.run(ctx, doc, names)
	lg.Info("Seed summary",
		zap.Int("accounts_created", stats.accounts),
		zap.Int("products_created", stats.created),
		zap.Int("products_skipped", stats.skipped),
	)
	return err
}
