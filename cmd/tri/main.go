// Package main is the tri CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/munnellg/tri/internal/catalog"
	"github.com/munnellg/tri/internal/config"
	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/server"
	"github.com/munnellg/tri/internal/shell"
	"github.com/munnellg/tri/internal/stats"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/internal/vector"
	"github.com/munnellg/tri/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tri/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development), and a missing default
// file means built-in defaults. Returns the config and the path that was
// actually loaded, empty when none was.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "import":
		runImport(args)
	case "shell":
		runShell(args)
	case "build":
		runBuild(args)
	case "combine":
		runCombine(args)
	case "nh":
		runNearest(args)
	case "sims":
		runSims(args)
	case "cluster":
		runCluster(args)
	case "mean":
		runMean(args)
	case "count":
		runCount(args)
	case "stats":
		runStats(args)
	case "batch":
		runBatch(args)
	case "years":
		runYears(args)
	case "serve", "server":
		runServe(args)
	case "status":
		runStatus(args)
	case "config":
		runConfig(args)
	case "version", "--version", "-v":
		fmt.Printf("tri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fail prints a message and exits non-zero.
func fail(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// isSet reports whether the flag name was given on the command line, so an
// explicit zero can be told apart from the default.
func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// commonFlags are the flags shared by every command that touches the store.
type commonFlags struct {
	fs         *flag.FlagSet
	configPath *string
	debug      *bool
	dimension  *int
	seed       *int64
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		dimension:  fs.Int("d", 0, "vector dimension (default from config, 1000)"),
		seed:       fs.Int64("seed", 0, "random seed (default from config, 10)"),
	}
}

// setup loads the config, applies flag overrides and builds the logger.
func (c commonFlags) setup() (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if *c.dimension > 0 {
		cfg.Space.Dimension = *c.dimension
	}
	if isSet(c.fs, "seed") {
		cfg.Space.Seed = *c.seed
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Int("dimension", cfg.Space.Dimension),
		zap.Int64("seed", cfg.Space.Seed),
	)
	return cfg, logger
}

// Components holds initialized services.
type Components struct {
	Storage     *storage.SQLiteStorage
	Accumulator *temporal.Accumulator
	TermIndex   *keyword.BleveIndex
	Catalog     *catalog.Catalog
}

// Close releases every open component.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.TermIndex != nil {
		_ = c.TermIndex.Close()
	}
}

// initializeComponents opens the store and builds the accumulator. The term
// index and the catalog are optional: failures to open them are logged and
// leave the field nil.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withIndex bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	gen, err := vector.NewGenerator(cfg.Space.Dimension, cfg.Space.Seed, cfg.Space.NonZero)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	acc, err := temporal.New(store, vector.NewElementalCache(gen),
		temporal.WithLogger(logger),
		temporal.WithCacheSize(cfg.Space.ContextCacheSize),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c := &Components{Storage: store, Accumulator: acc}

	if withIndex {
		idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			logger.Warn("term index unavailable", zap.String("path", cfg.Storage.BleveIndexPath), zap.Error(err))
		} else {
			c.TermIndex = idx
		}
	}
	if cat, err := catalog.Scan(cfg.Storage.VectorsDir, cfg.Catalog.StartYear, cfg.Catalog.EndYear,
		catalog.WithLogger(logger)); err == nil {
		c.Catalog = cat
	} else {
		logger.Debug("no vector catalog", zap.String("dir", cfg.Storage.VectorsDir), zap.Error(err))
	}
	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	common := addCommonFlags(fs)
	index := fs.Bool("index", true, "rebuild the term index after importing")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Println("Usage: tri import [flags] <cooccurrences.tsv|-> ...")
		os.Exit(1)
	}
	cfg, logger := common.setup()
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		fail("Failed to create data directory: %v", err)
	}
	components, err := initializeComponents(cfg, logger, *index)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	for _, path := range fs.Args() {
		st, err := importFile(ctx, components.Storage, path)
		if err != nil {
			fail("Import failed: %v", err)
		}
		fmt.Printf("%s: %d records, %d skipped, %d new terms\n", path, st.Records, st.Skipped, st.Terms)
	}
	if components.TermIndex != nil {
		n, err := keyword.IndexAll(ctx, components.TermIndex, components.Storage)
		if err != nil {
			fail("Indexing terms failed: %v", err)
		}
		fmt.Printf("Indexed %d term(s)\n", n)
	}
}

func importFile(ctx context.Context, store storage.Storage, path string) (storage.ImportStats, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return storage.ImportStats{}, err
		}
		defer f.Close()
		r = f
	}
	stats, err := store.Import(ctx, r)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

func runShell(args []string) {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)
	cfg, logger := common.setup()
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	opts := []shell.Option{shell.WithLogger(logger)}
	if components.TermIndex != nil {
		opts = append(opts,
			shell.WithTermIndex(components.TermIndex),
			shell.WithSuggester(keyword.NewSuggester(components.TermIndex)),
		)
	}
	if components.Catalog != nil {
		opts = append(opts, shell.WithCatalog(components.Catalog))
	}
	sh := shell.New(components.Accumulator, opts...)

	ctx, cancel := signalContext()
	defer cancel()
	if err := sh.Run(ctx, os.Stdin, os.Stdout, os.Stderr); err != nil && !errors.Is(err, context.Canceled) {
		fail("Shell failed: %v", err)
	}
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	common := addCommonFlags(fs)
	years := fs.String("years", "", "windows as start:end[:step] (default: the store's year range, one year per window)")
	outDir := fs.String("o", "", "output directory (default from config vectors_dir)")
	prefix := fs.String("prefix", "tri", "file name prefix")
	elemental := fs.Bool("elemental", true, "also write "+catalog.ElementalFile)
	_ = fs.Parse(args)
	cfg, logger := common.setup()
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	windows, err := buildWindows(ctx, components.Storage, *years)
	if err != nil {
		fail("%v", err)
	}
	dir := *outDir
	if dir == "" {
		dir = cfg.Storage.VectorsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fail("Failed to create %s: %v", dir, err)
	}
	for _, w := range windows {
		path := temporal.SpacePath(dir, *prefix, w.Start)
		n, err := components.Accumulator.WriteSpace(ctx, path, w)
		if err != nil {
			fail("Build failed: %v", err)
		}
		fmt.Printf("%s: %d vectors [%d, %d]\n", path, n, w.Start, w.End)
	}
	if *elemental {
		path := catalog.ElementalPath(dir)
		n, err := components.Accumulator.WriteElemental(ctx, path)
		if err != nil {
			fail("Build failed: %v", err)
		}
		fmt.Printf("%s: %d vectors\n", path, n)
	}
}

// buildWindows parses spec, or covers the store's year range one year at a
// time when spec is empty.
func buildWindows(ctx context.Context, store storage.Storage, spec string) ([]temporal.Window, error) {
	if spec != "" {
		return stats.ParseYears(spec)
	}
	lo, hi, ok, err := store.YearRange(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("the store holds no co-occurrences; run tri import first")
	}
	return temporal.Windows(lo, hi, 1)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)
	cfg, logger := common.setup()
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if components.Catalog != nil && cfg.Catalog.WatchOrDefault() {
		go func() {
			err := components.Catalog.Watch(ctx, catalog.OnChange(func(years []int) {
				logger.Info("vector spaces changed", zap.Ints("years", years))
			}))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("catalog watch stopped", zap.Error(err))
			}
		}()
	}

	var terms keyword.TermIndex
	if components.TermIndex != nil {
		terms = components.TermIndex
	}
	srv := server.NewServer(components.Accumulator, components.Storage, terms, components.Catalog, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := addCommonFlags(fs)
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)

	var status server.StatusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = *res
	} else {
		cfg, logger := common.setup()
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		res, err := localStatus(context.Background(), components, cfg)
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = *res
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fail("Output failed: %v", err)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fail("Unknown output format %q; use text or json", *outputFormat)
	}
}

func localStatus(ctx context.Context, c *Components, cfg *config.Config) (*server.StatusResponse, error) {
	terms, err := c.Storage.CountTerms(ctx)
	if err != nil {
		return nil, err
	}
	cooc, err := c.Storage.CountCooccurrences(ctx)
	if err != nil {
		return nil, err
	}
	st := &server.StatusResponse{
		Terms:         terms,
		Cooccurrences: cooc,
		Config: &server.StatusConfig{
			Dimension:      cfg.Space.Dimension,
			Seed:           cfg.Space.Seed,
			NonZero:        cfg.Space.NonZero,
			ReaderMode:     cfg.Space.ReaderMode,
			DatabasePath:   cfg.Storage.DatabasePath,
			VectorsDir:     cfg.Storage.VectorsDir,
			BleveIndexPath: cfg.Storage.BleveIndexPath,
		},
	}
	if c.TermIndex != nil {
		if n, err := c.TermIndex.DocCount(); err == nil {
			st.IndexedTerms = &n
		}
	}
	if c.Catalog != nil {
		st.Spaces = c.Catalog.Len()
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.VectorsDir, cfg.Storage.BleveIndexPath); err == nil {
		st.DiskUsageBytes = &diskBytes
	}
	return st, nil
}

func writeStatusText(w io.Writer, status *server.StatusResponse) {
	fmt.Fprintf(w, "terms:              %d   # dictionary size\n", status.Terms)
	fmt.Fprintf(w, "cooccurrences:      %d   # (term, neighbor, year) records\n", status.Cooccurrences)
	if status.IndexedTerms != nil {
		fmt.Fprintf(w, "indexed_terms:      %d   # terms in the lookup index\n", *status.IndexedTerms)
	}
	fmt.Fprintf(w, "spaces:             %d   # period vector files on disk\n", status.Spaces)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # store + vectors + index on disk\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "dimension:          %d\n", c.Dimension)
		fmt.Fprintf(w, "seed:               %d\n", c.Seed)
		fmt.Fprintf(w, "non_zero:           %d\n", c.NonZero)
		fmt.Fprintf(w, "reader_mode:        %s\n", c.ReaderMode)
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
		if c.VectorsDir != "" {
			fmt.Fprintf(w, "vectors_dir:        %s\n", c.VectorsDir)
		}
		if c.BleveIndexPath != "" {
			fmt.Fprintf(w, "bleve_index_path:   %s\n", c.BleveIndexPath)
		}
	}
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)
	cfg, logger := common.setup()
	defer logger.Sync()
	if err := config.Write(os.Stdout, cfg); err != nil {
		fail("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(usage)
}

const usage = `tri - Temporal Random Indexing

Usage:
  tri import [flags] <file.tsv|-> ...     Import "term<TAB>neighbor<TAB>year<TAB>count" records
  tri shell [flags]                       Interactive session (lv, sim, nh, nhw, search, years)
  tri build [flags]                       Write one vector space per year window
  tri combine [flags] -o <out> <file>...  Sum period spaces into one normalized space
  tri nh [flags] <file> <key>             Nearest neighbors of a key in a space
  tri sims [flags] <file1> <file2>        Keys whose vectors moved the most between two spaces
  tri cluster [flags] -k <n> <file>       k-means over the vectors of a space
  tri mean [flags] <file>                 Mean vector of a space
  tri count <file>...                     Number of vectors per space
  tri stats [flags] [keys-file]           Similarity series of keys across period spaces
  tri batch [flags] -i <terms> -o <out>   Similarity series built straight from the store
  tri years [flags]                       Years with a vector space on disk
  tri serve [flags]                       Start the HTTP server
  tri status [flags]                      Show store/index/space status
  tri config [flags]                      Print the effective configuration
  tri version                             Show version
  tri help                                Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/tri/config.yaml)
  --debug            Enable debug logging
  -d int             Vector dimension (default from config: 1000)
  -seed int          Random seed (default from config: 10)

Examples:
  tri import counts.tsv
  tri build -years 1900:1999:10 -o ./spaces
  tri combine -o ./spaces/all.vectors -dir ./spaces -start 1900 -end 1950
  tri nh -n 20 ./spaces/tri_1900.vectors war
  tri stats -dir ./spaces -series point -format csv -o sims.csv keys.txt
  tri batch -i terms.txt -o out.tsv -years 1900:1999:10
  tri serve`
