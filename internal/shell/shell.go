// Package shell implements the interactive session over a co-occurrence
// store: named vectors are built for year windows, compared, and queried for
// their nearest terms.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/munnellg/tri/internal/catalog"
	"github.com/munnellg/tri/internal/cli"
	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

const defaultSearchLimit = 10

const usage = `commands:
  lv <name> <word> <startYear> <endYear>   build the vector of word and keep it as name
  sim <name1> <name2>                      overlap of two kept vectors
  nh <name> <startYear> <endYear> <n>      n terms nearest to a kept vector in the window
  nhw <word> <startYear> <endYear> <n>     n strongest co-occurrences of word in the window
  search <query> [n]                       look up dictionary terms (wildcards * and ?)
  years [startYear endYear]                years with a vector space on disk
  help                                     this message
  !q                                       quit
`

// Shell is one interactive session. Named vectors live until the session ends.
type Shell struct {
	acc       *temporal.Accumulator
	terms     keyword.TermIndex
	suggester *keyword.Suggester
	catalog   *catalog.Catalog
	logger    *zap.Logger
	session   string
	prompt    string
	memory    map[string]vector.Vector
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger; the session ID is attached to every entry.
func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithTermIndex enables the search command.
func WithTermIndex(idx keyword.TermIndex) Option {
	return func(s *Shell) { s.terms = idx }
}

// WithSuggester makes lookups of unknown words propose close dictionary terms.
func WithSuggester(sg *keyword.Suggester) Option {
	return func(s *Shell) { s.suggester = sg }
}

// WithCatalog enables the years command.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Shell) { s.catalog = c }
}

// WithPrompt sets the prompt printed before each command. Empty disables it.
func WithPrompt(p string) Option {
	return func(s *Shell) { s.prompt = p }
}

// New starts a session over acc.
func New(acc *temporal.Accumulator, opts ...Option) *Shell {
	s := &Shell{
		acc:     acc,
		logger:  zap.NewNop(),
		session: uuid.NewString(),
		prompt:  "> ",
		memory:  make(map[string]vector.Vector),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.session))
	return s
}

// Session returns the session ID.
func (s *Shell) Session() string { return s.session }

// Vector returns the vector kept as name.
func (s *Shell) Vector(name string) (vector.Vector, bool) {
	v, ok := s.memory[name]
	return v, ok
}

// Run reads commands from in until "!q", end of input or cancellation.
// Results go to out, command errors to errOut.
func (s *Shell) Run(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	s.logger.Info("session started")
	defer s.logger.Info("session ended", zap.Int("vectors", len(s.memory)))

	sc := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.prompt != "" {
			fmt.Fprint(out, s.prompt)
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if s.Exec(ctx, sc.Text(), out, errOut) {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the session should end.
// Malformed commands and failures are reported on errOut.
func (s *Shell) Exec(ctx context.Context, line string, out, errOut io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]
	s.logger.Debug("command", zap.String("cmd", cmd), zap.Strings("args", args))

	var err error
	switch cmd {
	case "lv":
		err = s.loadVector(ctx, args, out)
	case "sim":
		err = s.similarity(args, out)
	case "nh":
		err = s.nearestVectors(ctx, args, out)
	case "nhw":
		err = s.nearestWords(ctx, args, out)
	case "search":
		err = s.search(ctx, args, out)
	case "years":
		err = s.years(args, out)
	case "help":
		fmt.Fprint(out, usage)
	case "!q":
		fmt.Fprintln(out, "Goodbye")
		return true
	default:
		fmt.Fprintf(out, "Command not valid: %s\n", strings.TrimSpace(line))
	}
	if err != nil {
		s.logger.Warn("command failed", zap.String("cmd", cmd), zap.Error(err))
		fmt.Fprintf(errOut, "%s: %v\n", cmd, err)
	}
	return false
}

type usageError string

func (u usageError) Error() string { return "no valid arguments, usage: " + string(u) }

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = n
	}
	return out, nil
}

func (s *Shell) loadVector(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 4 {
		return usageError("lv <name> <word> <startYear> <endYear>")
	}
	years, err := ints(args[2:4])
	if err != nil {
		return err
	}
	name, word := args[0], args[1]
	v, ok, err := s.acc.Build(ctx, word, years[0], years[1])
	if err != nil {
		return err
	}
	if !ok {
		s.notFound(word, out)
		return nil
	}
	s.memory[name] = v
	return nil
}

func (s *Shell) notFound(word string, out io.Writer) {
	fmt.Fprintf(out, "Vector not found for: %s\n", word)
	if s.suggester == nil {
		return
	}
	sugg, err := s.suggester.Suggest(word)
	if err != nil {
		s.logger.Warn("suggest failed", zap.String("word", word), zap.Error(err))
		return
	}
	if len(sugg) == 0 {
		return
	}
	names := make([]string, len(sugg))
	for i, sg := range sugg {
		names[i] = sg.Term
	}
	fmt.Fprintf(out, "Did you mean: %s\n", strings.Join(names, ", "))
}

func (s *Shell) similarity(args []string, out io.Writer) error {
	if len(args) < 2 {
		return usageError("sim <name1> <name2>")
	}
	v1, ok1 := s.memory[args[0]]
	v2, ok2 := s.memory[args[1]]
	if !ok1 || !ok2 {
		fmt.Fprintln(out, "Vectors not found")
		return nil
	}
	fmt.Fprintf(out, "sim(%s, %s): %s\n", args[0], args[1], cli.FormatScore(vector.Overlap(v1, v2)))
	return nil
}

func (s *Shell) nearestVectors(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 4 {
		return usageError("nh <name> <startYear> <endYear> <n>")
	}
	nums, err := ints(args[1:4])
	if err != nil {
		return err
	}
	v, ok := s.memory[args[0]]
	if !ok {
		fmt.Fprintln(out, "Vector not found")
		return nil
	}
	res, err := s.acc.NearestVectors(ctx, v, nums[0], nums[1], nums[2])
	if err != nil {
		return err
	}
	return cli.WriteScores(out, res, cli.OutputText)
}

func (s *Shell) nearestWords(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 4 {
		return usageError("nhw <word> <startYear> <endYear> <n>")
	}
	nums, err := ints(args[1:4])
	if err != nil {
		return err
	}
	res, ok, err := s.acc.NearestWords(ctx, args[0], nums[0], nums[1], nums[2])
	if err != nil {
		return err
	}
	if !ok {
		s.notFound(args[0], out)
		return nil
	}
	return cli.WriteScores(out, res, cli.OutputText)
}

func (s *Shell) search(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError("search <query> [n]")
	}
	if s.terms == nil {
		return fmt.Errorf("no term index configured")
	}
	limit := defaultSearchLimit
	if len(args) > 1 {
		nums, err := ints(args[1:2])
		if err != nil {
			return err
		}
		limit = nums[0]
	}
	res, err := s.terms.Search(ctx, args[0], limit, nil)
	if err != nil {
		return err
	}
	return cli.WriteTerms(out, res, cli.OutputText)
}

func (s *Shell) years(args []string, out io.Writer) error {
	if s.catalog == nil {
		return fmt.Errorf("no vector directory configured")
	}
	lo, hi := 0, 0
	bounded := false
	switch len(args) {
	case 0:
	case 2:
		nums, err := ints(args)
		if err != nil {
			return err
		}
		lo, hi, bounded = nums[0], nums[1], true
	default:
		return usageError("years [startYear endYear]")
	}
	for _, y := range s.catalog.Years() {
		if bounded && (y < lo || y > hi) {
			continue
		}
		fmt.Fprintln(out, y)
	}
	return nil
}
