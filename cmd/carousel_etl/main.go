// Command carousel_etl runs the carousel extraction pipeline described by a
// JSON config file: read saved Google results pages, extract the configured
// carousel categories, emit the combined JSON, then optionally persist rows
// to a storage backend and push run metrics.
//
// Usage:
//
//	carousel_etl -config pipeline.json
//	carousel_etl -config pipeline.json -tags env:prod,service:serp
//
// A minimal config:
//
//	{
//	  "job": "nightly_carousels",
//	  "source": {"kind": "dir", "path": "pages/"},
//	  "output": {"path": "carousels.json", "indent": true},
//	  "storage": {"kind": "postgres", "dsn": "postgres://...", "auto_create": true},
//	  "metrics": {"backend": "datadog", "tags": ["env:prod"]},
//	  "runtime": {"workers": 8}
//	}
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"serpcarousel/internal/carousel"
	"serpcarousel/internal/config"
	"serpcarousel/internal/metrics"
	"serpcarousel/internal/metrics/datadog"
	"serpcarousel/internal/metrics/prompush"
	"serpcarousel/internal/storage"
	_ "serpcarousel/internal/storage/all"
)

// backendCloser is the minimal interface used by this command to manage a
// metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
//
// When to use:
//   - Unit tests: inject a fake metrics backend or storage opener and capture
//     stdout/stderr.
//   - Alternate runtimes: swap the backend factory or store opener without
//     touching run.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	BackendFactory func(ctx context.Context, job string, cfg config.Metrics) (backendCloser, error)
	OpenStore      func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Now            func() time.Time
}

// cliOptions holds the parsed command-line flags.
type cliOptions struct {
	ConfigPath string
	TagsCSV    string
}

// main is intentionally small: it wires real dependencies and exits with a code.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	code := run(context.Background(), os.Args[1:], deps{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		BackendFactory: newBackend,
		OpenStore:      storage.New,
		Now:            time.Now,
	})
	os.Exit(code)
}

// newBackend builds the metrics backend the config asks for. A nil backend
// with a nil error means metrics are disabled for the run.
func newBackend(ctx context.Context, job string, cfg config.Metrics) (backendCloser, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "datadog":
		return datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       cfg.Tags,
			FlushEvery: time.Duration(cfg.FlushSeconds) * time.Second,
		})
	case "pushgateway":
		return prompush.NewBackend(job, cfg.PushURL), nil
	}
	return nil, fmt.Errorf("unsupported metrics.backend %q", cfg.Backend)
}

// run executes the pipeline command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: the pipeline failed (unreadable source, storage failure, bad output).
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BackendFactory == nil {
		fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
		return 2
	}
	if d.OpenStore == nil {
		fmt.Fprintln(d.Stderr, "internal error: OpenStore is nil")
		return 2
	}

	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(d.Stderr, "config: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(d.Stderr, "config: %v\n", err)
		return 2
	}
	rules, err := cfg.ResolveRules()
	if err != nil {
		fmt.Fprintf(d.Stderr, "config: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mcfg := cfg.Metrics
	mcfg.Tags = append(mcfg.Tags, datadog.ParseTagsCSV(opts.TagsCSV)...)
	backend, err := d.BackendFactory(ctx, cfg.Job, mcfg)
	if err != nil {
		fmt.Fprintf(d.Stderr, "metrics backend init failed: %v\n", err)
		return 2
	}
	if backend != nil {
		metrics.SetBackend(backend)
		defer func() {
			_ = metrics.Flush()
			_ = backend.Close()
			// Restore the no-op backend so a second run in the same
			// process starts clean.
			metrics.SetBackend(nil)
		}()
	}

	start := d.Now()
	err = runPipeline(ctx, cfg, rules, d)
	metrics.RecordRun(err == nil, d.Now().Sub(start).Seconds())
	if err != nil {
		fmt.Fprintf(d.Stderr, "pipeline: %v\n", err)
		return 1
	}
	return 0
}

// parseFlags parses command arguments into validated options.
//
// Errors:
//   - Returns an error for invalid/missing required flags.
//   - Does not exit the process (caller decides exit code).
func parseFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("carousel_etl", flag.ContinueOnError)

	// Capture help/usage text instead of writing to stdout.
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var opts cliOptions
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to the pipeline config JSON (required)")
	fs.StringVar(&opts.TagsCSV, "tags", "", "Extra metric tags CSV appended to the config tags (e.g. env:prod,service:serp)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cliOptions{}, errors.New(usageBuf.String())
		}
		return cliOptions{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if opts.ConfigPath == "" {
		return cliOptions{}, errors.New("missing required -config <file>")
	}
	return opts, nil
}

// runPipeline executes one configured extraction run: read pages, extract,
// emit the JSON result, persist rows when storage is configured.
func runPipeline(ctx context.Context, cfg config.Pipeline, rules []carousel.Rule, d deps) error {
	extractedAt := d.Now().UTC()

	var (
		pages []carousel.PageResult
		rows  []storage.ItemRow
	)

	switch cfg.Source.Kind {
	case "file":
		b, err := os.ReadFile(cfg.Source.Path)
		if err != nil {
			return fmt.Errorf("read page: %w", err)
		}
		h := carousel.NewHandler(string(b), rules)
		recordHandlerStats(h)
		name := filepath.Base(cfg.Source.Path)
		pages = []carousel.PageResult{{SourceFile: name, Carousels: h.ToObj()}}
		rows = storage.RowsFromResult(name, pages[0].Carousels, extractedAt)
	case "dir":
		var err error
		pages, err = extractDir(ctx, cfg.Source.Path, rules, cfg.Runtime.Workers)
		if err != nil {
			return err
		}
		for _, p := range pages {
			rows = append(rows, storage.RowsFromResult(p.SourceFile, p.Carousels, extractedAt)...)
		}
	default:
		return fmt.Errorf("source.kind %q is not supported", cfg.Source.Kind)
	}
	log.Info().Int("pages", len(pages)).Int("rows", len(rows)).Msg("extraction complete")

	if err := writeOutput(cfg, pages, d.Stdout); err != nil {
		return err
	}
	if cfg.Output.Path != "" {
		log.Info().Str("out", cfg.Output.Path).Msg("wrote extraction output")
	}

	if cfg.Storage.Kind == "" || cfg.Storage.Kind == "none" {
		return nil
	}
	repo, err := d.OpenStore(ctx, storage.Config{
		Kind:       cfg.Storage.Kind,
		DSN:        cfg.Storage.DSN,
		Table:      cfg.Storage.Table,
		AutoCreate: cfg.Storage.AutoCreate,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	n, err := repo.InsertItems(ctx, rows)
	if err != nil {
		return err
	}
	metrics.RecordRowsStored(cfg.Storage.Kind, int(n))
	log.Info().Int64("rows", n).Int("batch", len(rows)).Str("backend", cfg.Storage.Kind).Msg("stored carousel items")
	return nil
}

// extractDir extracts every regular file under dir, fanning out up to workers
// parses at a time. Results come back in filename order regardless of worker
// scheduling; unreadable files are logged and skipped.
func extractDir(ctx context.Context, dir string, rules []carousel.Rule, workers int) ([]carousel.PageResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if workers < 1 {
		workers = 1
	}
	results := make([]*carousel.PageResult, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				log.Warn().Err(err).Str("file", name).Msg("skipping unreadable page")
				return nil
			}
			h := carousel.NewHandler(string(b), rules)
			recordHandlerStats(h)
			results[i] = &carousel.PageResult{SourceFile: name, Carousels: h.ToObj()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make([]carousel.PageResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		pages = append(pages, *r)
	}
	return pages, nil
}

// recordHandlerStats reports one handler run's per-category counters.
func recordHandlerStats(h *carousel.Handler) {
	for category, st := range h.Stats() {
		metrics.RecordItems(category, st.Extracted, st.Dropped)
		metrics.RecordImageLookups(category, st.Recovered, st.RecoveryMisses)
	}
}

// writeOutput encodes the extraction result to the configured destination.
// A file source emits a single category-to-items object, a dir source emits
// an array of per-page results.
func writeOutput(cfg config.Pipeline, pages []carousel.PageResult, stdout io.Writer) error {
	w := stdout
	var f *os.File
	if cfg.Output.Path != "" {
		var err error
		f, err = os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if cfg.Output.Indent {
		enc.SetIndent("", "  ")
	}

	var payload any = pages
	if cfg.Source.Kind == "file" && len(pages) == 1 {
		payload = pages[0].Carousels
	}
	if err := enc.Encode(payload); err != nil {
		if f != nil {
			_ = f.Close()
		}
		return fmt.Errorf("encode output: %w", err)
	}
	if f != nil {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}
	return nil
}
