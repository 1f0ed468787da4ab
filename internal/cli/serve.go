package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/busweaver/busweaver/internal/api"
	"github.com/busweaver/busweaver/pkg/cache"
	"github.com/busweaver/busweaver/pkg/pipeline"
	"github.com/busweaver/busweaver/pkg/store"
)

// Store backends for the serve command.
const (
	storeMemory = "memory"
	storeMongo  = "mongo"
)

// Cache backends for the serve command.
const (
	cacheFile  = "file"
	cacheRedis = "redis"
	cacheNone  = "none"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string // listen address
	storeKind string // storage backend: "memory" or "mongo"
	mongoURI  string // MongoDB connection string
	cacheKind string // cache backend: "file", "redis" or "none"
	redisAddr string // Redis address
}

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:      ":8080",
		storeKind: storeMemory,
		mongoURI:  "mongodb://localhost:27017",
		cacheKind: cacheFile,
		redisAddr: "localhost:6379",
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the BusWeaver HTTP API server",
		Long: `Run the BusWeaver HTTP API server.

The server accepts topology manifests over HTTP, builds and checks them,
and serves the stored systems, their consistency reports and rendered
diagrams. See the client package for the request surface.

The memory store keeps topologies for the lifetime of the process and
suits development; use --store mongo for durable deployments. Artifact
caching defaults to the local file cache; --cache redis shares one cache
across replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateServeOpts(opts); err != nil {
				return err
			}
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.storeKind, "store", opts.storeKind, "storage backend: memory (default), mongo")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", opts.mongoURI, "MongoDB connection string (with --store mongo)")
	cmd.Flags().StringVar(&opts.cacheKind, "cache", opts.cacheKind, "cache backend: file (default), redis, none")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", opts.redisAddr, "Redis address (with --cache redis)")

	return cmd
}

// validateServeOpts checks the backend selections before connecting anywhere.
func validateServeOpts(opts serveOpts) error {
	switch opts.storeKind {
	case storeMemory, storeMongo:
	default:
		return fmt.Errorf("invalid store: %s (must be 'memory' or 'mongo')", opts.storeKind)
	}
	switch opts.cacheKind {
	case cacheFile, cacheRedis, cacheNone:
	default:
		return fmt.Errorf("invalid cache: %s (must be 'file', 'redis', or 'none')", opts.cacheKind)
	}
	return nil
}

// runServe wires the selected backends into an API server and runs it
// until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	st, err := newServeStore(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close(context.Background())

	cch, err := newServeCache(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}

	runner := pipeline.NewRunner(cch, nil, c.Logger)
	defer runner.Close()

	printSuccess("API listening on %s", opts.addr)
	printDetail("Store: %s · Cache: %s", opts.storeKind, opts.cacheKind)

	server := api.NewServer(st, runner, c.Logger)
	return server.ListenAndServe(ctx, opts.addr)
}

// newServeStore creates the document store selected by --store.
func newServeStore(ctx context.Context, opts serveOpts) (store.Store, error) {
	switch opts.storeKind {
	case storeMongo:
		return store.NewMongoStore(ctx, store.MongoConfig{URI: opts.mongoURI})
	default:
		return store.NewMemoryStore(), nil
	}
}

// newServeCache creates the cache backend selected by --cache.
func newServeCache(ctx context.Context, opts serveOpts) (cache.Cache, error) {
	switch opts.cacheKind {
	case cacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: opts.redisAddr})
	case cacheNone:
		return cache.NewNullCache(), nil
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}
