package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/stratum"
	"github.com/jward/stratum/internal/config"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg is loaded once per invocation by the root command.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stratum",
	Short:         "Incremental declaration resolution for JVM sources and metadata",
	Long:          "Stratum indexes Java sources and imports serialized Kotlin metadata into a SQLite database, then answers member and override queries over both.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		cfg, err = config.Load(cwd)
		if err != nil {
			return err
		}
		if flagDB != "" {
			cfg.DB, err = filepath.Abs(flagDB)
			if err != nil {
				return fmt.Errorf("resolving --db: %w", err)
			}
		}
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: db from stratum.yaml, or .stratum/stratum.db)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: json|text (default: text on a terminal, json otherwise)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(scriptCmd)
}

// --- index ---

var (
	flagForce  bool
	flagSerial bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Index Java sources",
	Long:  "Parses Java files with tree-sitter and stores their classes and members. Directories are walked; unchanged files are skipped. With no arguments, the sources listed in stratum.yaml (or the current directory) are indexed.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "parse files one at a time")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targets := args
	if len(targets) == 0 {
		targets = cfg.Sources
	}
	if len(targets) == 0 {
		targets = []string{"."}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(cfg.DB), err)
	}
	if flagForce {
		if err := removeDB(cfg.DB); err != nil {
			return err
		}
	}

	engine, err := openIndexEngine()
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	ctx := context.Background()
	total := &stratum.IndexStats{}
	var firstErr error
	for _, target := range targets {
		stats, err := indexTarget(ctx, engine, target)
		if stats != nil {
			mergeStats(total, stats)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	fmt.Fprintf(os.Stderr, "Indexed %d files (%d skipped, %d failed) in %s\n",
		total.Indexed, total.Skipped, total.Failed, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DB)

	if firstErr != nil && total.Indexed == 0 && total.Skipped == 0 {
		return outputError("index", firstErr)
	}
	return outputResult(cmd, CLIResult{Command: "index", Results: total})
}

// openIndexEngine opens the Engine for indexing. A database built by another
// reader version is rebuilt from scratch, since its rows cannot be compared
// with fresh ones.
func openIndexEngine() (*stratum.Engine, error) {
	parallel := stratum.WithParallel(!flagSerial)
	engine, err := openEngine(parallel)
	if err != nil || flagForce || !engine.ReaderChanged() {
		return engine, err
	}
	files, err := engine.Store().Files()
	if err != nil {
		engine.Close()
		return nil, err
	}
	if len(files) == 0 {
		return engine, nil
	}
	engine.Close()
	if err := removeDB(cfg.DB); err != nil {
		return nil, err
	}
	return openEngine(parallel)
}

func indexTarget(ctx context.Context, engine *stratum.Engine, target string) (*stratum.IndexStats, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s", abs)
	}
	if info.IsDir() {
		return engine.IndexDirectory(ctx, abs)
	}
	return engine.IndexFiles(ctx, []string{abs})
}

func mergeStats(dst, src *stratum.IndexStats) {
	dst.Indexed += src.Indexed
	dst.Skipped += src.Skipped
	dst.Failed += src.Failed
	dst.Removed += src.Removed
	dst.Changed = append(dst.Changed, src.Changed...)
}

func removeDB(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "Cleared database: %s\n", path)
	return nil
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import [bundle...]",
	Short: "Import serialized metadata bundles",
	Long:  "Stores the entries of metadata bundle files, replacing entries with the same name and kind. With no arguments, the bundles listed in stratum.yaml are imported.",
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = cfg.Metadata
	}
	if len(paths) == 0 {
		return outputError("import", fmt.Errorf("no bundles given and none configured"))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(cfg.DB), err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("import", err)
	}
	defer engine.Close()

	n, err := engine.ImportMetadata(context.Background(), paths...)
	if err != nil {
		return outputError("import", err)
	}
	return outputResult(cmd, CLIResult{Command: "import", Results: CLIImportStats{Bundles: len(paths), Entries: n}})
}

// --- helpers ---

// openEngine creates an Engine over the configured database.
func openEngine(extra ...stratum.Option) (*stratum.Engine, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	opts := []stratum.Option{
		stratum.WithLogger(logger),
		stratum.WithWorkers(cfg.Workers),
		stratum.WithCacheSize(cfg.CacheSize),
		stratum.WithAnnotations(cfg.Annotations),
	}
	if cfg.Scripts != "" {
		opts = append(opts, stratum.WithScriptsDir(cfg.Scripts))
	}
	opts = append(opts, extra...)
	e, err := stratum.New(cfg.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// openExisting opens the Engine for read commands, which need an existing
// database.
func openExisting(extra ...stratum.Option) (*stratum.Engine, error) {
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'stratum index' first)", cfg.DB)
	}
	return openEngine(extra...)
}
