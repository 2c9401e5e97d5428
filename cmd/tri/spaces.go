package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/munnellg/tri/internal/catalog"
	"github.com/munnellg/tri/internal/cli"
	"github.com/munnellg/tri/internal/cluster"
	"github.com/munnellg/tri/internal/config"
	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/stats"
	"github.com/munnellg/tri/internal/vector"
	"github.com/munnellg/tri/pkg/utils"
	"go.uber.org/zap"
)

// spaceFlags are shared by the commands that read vector files.
type spaceFlags struct {
	configPath *string
	debug      *bool
	mode       *string
}

func addSpaceFlags(fs *flag.FlagSet) spaceFlags {
	return spaceFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		mode:       fs.String("mode", "", "reader mode: memory or file (default from config)"),
	}
}

func (f spaceFlags) setup() (*config.Config, space.Mode, *zap.Logger) {
	cfg, _, err := loadConfig(*f.configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	mode := space.Mode(cfg.Space.ReaderMode)
	if *f.mode != "" {
		mode = space.Mode(*f.mode)
	}
	if mode != space.ModeMemory && mode != space.ModeFile {
		fail("Unknown reader mode %q; use memory or file", mode)
	}
	logger, err := utils.NewLogger(cfg.Debug || *f.debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	return cfg, mode, logger
}

func openSpace(mode space.Mode, paths ...string) space.Reader {
	r, err := space.Open(mode, paths...)
	if err != nil {
		fail("Failed to open %v: %v", paths, err)
	}
	return r
}

func parseOutput(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return f
}

func runCombine(args []string) {
	fs := flag.NewFlagSet("combine", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	out := fs.String("o", "", "output vector file (required)")
	dir := fs.String("dir", "", "combine the period files of this directory instead of the listed files")
	start := fs.Int("start", 0, "first year to combine with -dir")
	end := fs.Int("end", config.DefaultEndYear, "last year to combine with -dir")
	_ = fs.Parse(args)
	_, mode, logger := sf.setup()
	defer logger.Sync()

	paths := fs.Args()
	if *dir != "" {
		var err error
		paths, err = catalog.FileRange(*dir, *start, *end)
		if err != nil {
			fail("%v", err)
		}
	}
	if *out == "" || len(paths) == 0 {
		fmt.Println("Usage: tri combine [flags] -o <out> (<file>... | -dir <dir> [-start y] [-end y])")
		os.Exit(1)
	}

	readers := make([]space.Reader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()
	for _, p := range paths {
		readers = append(readers, openSpace(mode, p))
	}
	if err := space.CombineToFile(*out, readers...); err != nil {
		fail("Combine failed: %v", err)
	}
	logger.Info("combined spaces", zap.Strings("inputs", paths), zap.String("output", *out))
	fmt.Printf("Combined %d space(s) into %s\n", len(paths), *out)
}

func runNearest(args []string) {
	fs := flag.NewFlagSet("nh", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	n := fs.Int("n", 10, "number of neighbors")
	output := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		fmt.Println("Usage: tri nh [flags] <file>... <key>")
		os.Exit(1)
	}
	_, mode, logger := sf.setup()
	defer logger.Sync()
	format := parseOutput(*output)

	paths, key := fs.Args()[:fs.NArg()-1], fs.Arg(fs.NArg()-1)
	r := openSpace(mode, paths...)
	defer r.Close()
	res, ok, err := space.NearestToKey(r, key, *n)
	if err != nil {
		fail("Search failed: %v", err)
	}
	if !ok {
		fail("Vector not found for: %s", key)
	}
	if err := cli.WriteScores(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runSims(args []string) {
	fs := flag.NewFlagSet("sims", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	n := fs.Int("n", 100, "number of keys")
	minDrift := fs.Float64("min", 0, "lowest drift (1 - overlap) kept")
	maxDrift := fs.Float64("max", 1, "highest drift (1 - overlap) kept")
	output := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Println("Usage: tri sims [flags] <file1> <file2>")
		os.Exit(1)
	}
	_, mode, logger := sf.setup()
	defer logger.Sync()
	format := parseOutput(*output)

	first := openSpace(mode, fs.Arg(0))
	defer first.Close()
	second := openSpace(mode, fs.Arg(1))
	defer second.Close()
	res, err := space.Sims(first, second, *n, *minDrift, *maxDrift)
	if err != nil {
		fail("Sims failed: %v", err)
	}
	if err := cli.WriteScores(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runCluster(args []string) {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	k := fs.Int("k", 10, "number of clusters")
	seed := fs.Int64("seed", 0, "random seed for the initial assignment (default from config)")
	maxIter := fs.Int("max-iter", -1, "iteration cap, 0 runs to convergence (default from config)")
	keysFile := fs.String("keys", "", "cluster only the keys listed in this file")
	stopFile := fs.String("stopwords", "", "skip the keys listed in this file")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Println("Usage: tri cluster [flags] -k <n> <file>...")
		os.Exit(1)
	}
	cfg, mode, logger := sf.setup()
	defer logger.Sync()
	if !isSet(fs, "seed") {
		*seed = cfg.Space.Seed
	}
	if *maxIter < 0 {
		*maxIter = cfg.Cluster.MaxIterations
	}

	r := openSpace(mode, fs.Args()...)
	defer r.Close()
	keys, err := clusterKeys(r, *keysFile, *stopFile)
	if err != nil {
		fail("%v", err)
	}
	items := make([]vector.ObjectVector, len(keys))
	for i, key := range keys {
		items[i] = vector.ObjectVector{Key: key}
	}
	res, err := cluster.KMeans(r, items, *k,
		cluster.WithRand(rand.New(rand.NewPCG(uint64(*seed), uint64(*seed)))),
		cluster.WithMaxIterations(*maxIter),
		cluster.WithLogger(logger),
	)
	if err != nil && !errors.Is(err, cluster.ErrNotConverged) {
		fail("Clustering failed: %v", err)
	}
	if err != nil {
		logger.Warn("stopped before convergence", zap.Int("iterations", res.Iterations))
	}
	writeClusters(os.Stdout, items, res)
}

// clusterKeys returns the keys of keysFile, or every key of r, minus stop words.
func clusterKeys(r space.Reader, keysFile, stopFile string) ([]string, error) {
	var keys []string
	if keysFile != "" {
		f, err := os.Open(keysFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if keys, err = stats.ReadTerms(f); err != nil {
			return nil, err
		}
	} else {
		var err error
		if keys, err = space.Keys(r); err != nil {
			return nil, err
		}
	}
	if stopFile == "" {
		return keys, nil
	}
	stop, err := space.LoadStopWords(stopFile)
	if err != nil {
		return nil, err
	}
	kept := keys[:0]
	for _, k := range keys {
		if _, skip := stop[k]; !skip {
			kept = append(kept, k)
		}
	}
	return kept, nil
}

// writeClusters prints "cluster<TAB>key" per item, grouped by cluster.
func writeClusters(w io.Writer, items []vector.ObjectVector, res *cluster.Clusters) {
	for c, members := range res.Members() {
		sort.Slice(members, func(i, j int) bool { return items[members[i]].Key < items[members[j]].Key })
		for _, i := range members {
			fmt.Fprintf(w, "%d\t%s\n", c, items[i].Key)
		}
	}
}

func runMean(args []string) {
	fs := flag.NewFlagSet("mean", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	out := fs.String("o", "", "write the mean as a one-entry vector file instead of printing it")
	key := fs.String("key", "mean", "key of the entry written with -o")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Println("Usage: tri mean [flags] <file>...")
		os.Exit(1)
	}
	_, mode, logger := sf.setup()
	defer logger.Sync()

	r := openSpace(mode, fs.Args()...)
	defer r.Close()
	mean, err := space.Mean(r)
	if err != nil {
		fail("Mean failed: %v", err)
	}
	if *out != "" {
		if err := space.WriteMap(*out, r.Dimension(), map[string]vector.Vector{*key: mean}, 1); err != nil {
			fail("Write failed: %v", err)
		}
		return
	}
	for i, x := range mean {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(cli.FormatScore(float64(x)))
	}
	fmt.Println()
}

func runCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Println("Usage: tri count <file>...")
		os.Exit(1)
	}
	_, mode, logger := sf.setup()
	defer logger.Sync()
	for _, p := range fs.Args() {
		r := openSpace(mode, p)
		n, err := space.Count(r)
		_ = r.Close()
		if err != nil {
			fail("Count failed: %v", err)
		}
		fmt.Printf("%s\t%d\n", p, n)
	}
}

func runYears(args []string) {
	fs := flag.NewFlagSet("years", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	dir := fs.String("dir", "", "vector directory (default from config vectors_dir)")
	start := fs.Int("start", 0, "first year")
	end := fs.Int("end", config.DefaultEndYear, "last year")
	_ = fs.Parse(args)
	cfg, _, logger := sf.setup()
	defer logger.Sync()
	if *dir == "" {
		*dir = cfg.Storage.VectorsDir
	}
	c, err := catalog.Scan(*dir, *start, *end, catalog.WithLogger(logger))
	if err != nil {
		fail("%v", err)
	}
	for _, y := range c.Years() {
		p, _ := c.Path(y)
		fmt.Printf("%d\t%s\n", y, p)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	sf := addSpaceFlags(fs)
	dir := fs.String("dir", "", "vector directory (default from config vectors_dir)")
	start := fs.Int("start", 0, "first year")
	end := fs.Int("end", config.DefaultEndYear, "last year")
	seriesMode := fs.String("series", string(stats.Cumulative), "series mode: cum or point")
	format := fs.String("format", string(stats.Plain), "output format: plain, csv or xlsx")
	out := fs.String("o", "", "output file (default stdout; required for xlsx)")
	summary := fs.Bool("summary", false, "print mean, stddev and the lowest period of each key instead")
	_ = fs.Parse(args)
	if fs.NArg() > 1 {
		fmt.Println("Usage: tri stats [flags] [keys-file]")
		os.Exit(1)
	}
	cfg, mode, logger := sf.setup()
	defer logger.Sync()
	m, err := stats.ParseMode(*seriesMode)
	if err != nil {
		fail("%v", err)
	}
	f, err := stats.ParseFormat(*format)
	if err != nil {
		fail("%v", err)
	}
	if *dir == "" {
		*dir = cfg.Storage.VectorsDir
	}

	c, err := catalog.Scan(*dir, *start, *end, catalog.WithLogger(logger))
	if err != nil {
		fail("%v", err)
	}
	var keys []string
	if fs.NArg() == 1 {
		keys = readKeys(fs.Arg(0))
	} else if keys, err = c.ElementalKeys(mode); err != nil {
		fail("No keys file given and no elemental space to read keys from: %v", err)
	}
	table, err := stats.Compute(keys, c.Years(), func(year int) (space.Reader, error) {
		return c.Reader(year, mode)
	}, m)
	if err != nil {
		fail("Stats failed: %v", err)
	}
	if *summary {
		for _, s := range stats.Summarize(table) {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", s.Key, cli.FormatScore(s.Mean), cli.FormatScore(s.StdDev),
				cli.FormatScore(s.Lowest), s.LowestLabel)
		}
		return
	}
	writeTable(table, f, *out)
}

func readKeys(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		fail("%v", err)
	}
	defer file.Close()
	keys, err := stats.ReadTerms(file)
	if err != nil {
		fail("%v", err)
	}
	return keys
}

func writeTable(t *stats.Table, f stats.Format, out string) {
	if out == "" {
		if f == stats.XLSX {
			fail("xlsx output needs -o")
		}
		if err := stats.Write(os.Stdout, t, f); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}
	if err := stats.Save(out, t, f); err != nil {
		fail("Output failed: %v", err)
	}
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	common := addCommonFlags(fs)
	in := fs.String("i", "", "terms file, one per line (required)")
	out := fs.String("o", "", "output file (required)")
	threshold := fs.Float64("t", 0, "values below this are written as 0, 0 keeps everything (default from config, 0.001)")
	samples := fs.Int("s", 0, "process a seeded sample of this many terms, 0 processes all (default from config, 1000)")
	years := fs.String("years", "", "windows as start:end[:step] (required)")
	seriesMode := fs.String("series", string(stats.Cumulative), "series mode: cum or point")
	format := fs.String("format", string(stats.Plain), "output format: plain, csv or xlsx")
	_ = fs.Parse(args)
	if *in == "" || *out == "" || *years == "" {
		fmt.Println("Usage: tri batch [flags] -i <terms> -o <out> -years start:end[:step]")
		os.Exit(1)
	}
	cfg, logger := common.setup()
	defer logger.Sync()
	if !isSet(fs, "t") {
		*threshold = cfg.Batch.Threshold
	}
	if !isSet(fs, "s") {
		*samples = cfg.Batch.Samples
	}
	m, err := stats.ParseMode(*seriesMode)
	if err != nil {
		fail("%v", err)
	}
	f, err := stats.ParseFormat(*format)
	if err != nil {
		fail("%v", err)
	}
	windows, err := stats.ParseYears(*years)
	if err != nil {
		fail("%v", err)
	}

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	b := &stats.Batch{
		Accumulator: components.Accumulator,
		Windows:     windows,
		Mode:        m,
		Threshold:   *threshold,
		Samples:     *samples,
		Seed:        cfg.Space.Seed,
		Logger:      logger,
	}
	table, err := b.Run(ctx, readKeys(*in))
	if err != nil {
		fail("Batch failed: %v", err)
	}
	writeTable(table, f, *out)
	fmt.Printf("Wrote %d term(s) over %d window(s) to %s\n", len(table.Keys), len(windows), *out)
}
