package stratum

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jward/stratum/internal/metadata"
	"github.com/jward/stratum/internal/store"
	"github.com/jward/stratum/internal/syntax"
)

// Engine owns the database and orchestrates source indexing, metadata
// import and query sessions.
type Engine struct {
	store   *store.Store
	logger  *slog.Logger
	entries *entryCache

	// useParallel enables the parallel extraction pipeline.
	useParallel bool
	workers     int

	annotations bool
	cacheSize   int

	scriptsDir string
	scriptsFS  fs.FS
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for indexing and import progress.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// parses files on a bounded worker pool and commits their batches to SQLite
// from a single goroutine. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the number of files parsed concurrently. Values below
// one mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithAnnotations makes sessions decode annotations stored in metadata.
// Without it, annotation queries on serialized declarations fail.
func WithAnnotations(enabled bool) Option {
	return func(e *Engine) {
		e.annotations = enabled
	}
}

// WithCacheSize sets how many decoded metadata entries the Engine keeps in
// memory across sessions.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithScriptsDir sets the directory Risor scripts and their imports are
// loaded from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from the scripts directory on disk. This enables
// embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Removed int `json:"removed,omitempty"`

	// Changed lists the classes that were added, removed, or whose
	// signature changed, sorted by qualified name.
	Changed []string `json:"changed,omitempty"`
}

func (s *IndexStats) addChanged(names []string) {
	s.Changed = append(s.Changed, names...)
}

func (s *IndexStats) finish() {
	sort.Strings(s.Changed)
	s.Changed = dedupSorted(s.Changed)
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stratum: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("stratum: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      slog.Default(),
		useParallel: true, // default to parallel extraction
		cacheSize:   defaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.entries, err = newEntryCache(s, e.cacheSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("stratum: %w", err)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// ReaderChanged reports whether the source reader differs from the one
// that built the current database. Returns true if the DB has no stored
// version (first run) or if it doesn't match. When true, the caller
// should delete the DB and reindex from scratch.
func (e *Engine) ReaderChanged() bool {
	stored, err := e.store.Setting(readerVersionKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != syntax.Version
}

func (e *Engine) storeReaderVersion() {
	if err := e.store.SetSetting(readerVersionKey, syntax.Version); err != nil {
		e.logger.Warn("store reader version", "err", err)
	}
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent extraction with batched SQLite writes.
// Otherwise falls back to the serial path.
//
// For each file:
//  1. Detect language from extension, skip unsupported files
//  2. Skip unchanged files (same content hash)
//  3. Capture the old class signatures, delete stale data
//  4. Parse and store classes, members and parameters
//  5. Compare signatures to report changed classes
//
// Errors on individual files are logged and counted; processing continues
// and the first error is returned with the stats.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (*IndexStats, error) {
	var (
		stats *IndexStats
		err   error
	)
	if e.useParallel {
		stats, err = e.IndexFilesParallel(ctx, paths)
	} else {
		stats, err = e.indexFilesSerial(ctx, paths)
	}
	if stats != nil {
		stats.finish()
		e.logger.Info("indexed files",
			"indexed", stats.Indexed, "skipped", stats.Skipped,
			"failed", stats.Failed, "changed", len(stats.Changed))
	}
	if stats != nil && stats.Indexed > 0 {
		e.storeReaderVersion()
	}
	return stats, err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (*IndexStats, error) {
	stats := &IndexStats{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		changed, skipped, err := e.indexFile(ctx, path)
		switch {
		case err != nil:
			stats.Failed++
			e.logger.Warn("index file failed", "path", path, "err", err)
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		case skipped:
			stats.Skipped++
		default:
			stats.Indexed++
			stats.addChanged(changed)
		}
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("stratum: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

func (e *Engine) indexFile(ctx context.Context, path string) ([]string, bool, error) {
	item, skip, err := e.prepareFile(ctx, path)
	if err != nil || skip {
		return nil, skip, err
	}
	parsed, err := e.parseFile(ctx, item)
	if err != nil {
		return nil, false, err
	}
	if err := saveParsed(e.store, item.fileID, parsed); err != nil {
		return nil, false, fmt.Errorf("save classes: %w", err)
	}
	return e.finishFile(item)
}

// workItem holds everything an extraction worker needs.
type workItem struct {
	path    string
	lang    string
	fileID  int64
	hash    string
	content []byte
	batch   *store.BatchedStore

	// Signatures of the classes the file declared before this run.
	oldHashes map[string]string
}

// prepareFile does the serial setup for a single file: hash check, cleanup,
// file record. Returns (item, skip, error). skip=true means the file is
// unchanged or unsupported.
//
// A new file is recorded with an empty hash, and a changed file keeps its
// old hash, until finishFile runs. A file whose extraction fails is
// therefore retried on the next run.
func (e *Engine) prepareFile(_ context.Context, path string) (workItem, bool, error) {
	lang, ok := syntax.LanguageForFile(path)
	if !ok {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return workItem{}, true, nil // unchanged
	}

	item := workItem{
		path:    path,
		lang:    lang,
		hash:    hash,
		content: content,
		batch:   store.NewBatchedStore(e.store),
	}
	if existing != nil {
		item.fileID = existing.ID
		item.oldHashes, err = e.classHashes(existing.ID)
		if err != nil {
			return workItem{}, false, fmt.Errorf("capture old classes: %w", err)
		}
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	} else {
		item.fileID, err = e.store.InsertFile(&store.File{
			Path:        path,
			Language:    lang,
			LastIndexed: time.Now(),
		})
		if err != nil {
			return workItem{}, false, fmt.Errorf("insert file: %w", err)
		}
	}
	return item, false, nil
}

func (e *Engine) parseFile(ctx context.Context, item workItem) (*syntax.File, error) {
	parsed, err := syntax.Parse(ctx, item.path, item.content)
	if err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		e.logger.Debug("syntax errors", "path", item.path, "count", len(parsed.Errors), "first", parsed.Errors[0])
	}
	return parsed, nil
}

// saveParsed writes every class of a parsed file through ds.
func saveParsed(ds store.DataStore, fileID int64, parsed *syntax.File) error {
	for _, c := range parsed.Classes {
		if err := store.SaveClass(ds, fileID, c, parsed.IsHolder(c)); err != nil {
			return err
		}
	}
	return nil
}

// finishFile records the new content hash and reports which classes
// changed compared to the previous extraction.
func (e *Engine) finishFile(item workItem) ([]string, bool, error) {
	newHashes, err := e.classHashes(item.fileID)
	if err != nil {
		return nil, false, fmt.Errorf("capture new classes: %w", err)
	}
	err = e.store.UpdateFileHash(&store.File{ID: item.fileID, Hash: item.hash, LastIndexed: time.Now()})
	if err != nil {
		return nil, false, err
	}
	return changedClasses(item.oldHashes, newHashes), false, nil
}

func (e *Engine) classHashes(fileID int64) (map[string]string, error) {
	rows, err := e.store.ClassesByFile(fileID)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(rows))
	for _, r := range rows {
		hashes[r.FQName] = r.SignatureHash
	}
	return hashes, nil
}

// changedClasses returns the names present in only one of the maps or
// mapped to different signatures.
func changedClasses(oldHashes, newHashes map[string]string) []string {
	var changed []string
	for fq, h := range oldHashes {
		if nh, ok := newHashes[fq]; !ok || nh != h {
			changed = append(changed, fq)
		}
	}
	for fq := range newHashes {
		if _, ok := oldHashes[fq]; !ok {
			changed = append(changed, fq)
		}
	}
	return changed
}

// skipDirs are directories excluded from a filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"target":       true,
}

// IndexDirectory indexes all supported files under root. If root is inside
// a git repository, uses git ls-files to respect .gitignore. Falls back to
// a filesystem walk (skipping hidden and build directories) if git is
// unavailable. Files previously indexed under root that no longer exist
// are removed.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("stratum: %w", err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available, fall back to walk.
		e.logger.Debug("git ls-files unavailable, walking", "root", root, "err", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}

	removed, err := e.pruneMissing(root, paths)
	if err != nil {
		return nil, err
	}
	stats, err := e.IndexFiles(ctx, paths)
	if stats != nil {
		stats.Removed = len(removed)
		stats.addChanged(removed)
		stats.finish()
	}
	return stats, err
}

// pruneMissing deletes indexed files under root that are not in present
// and returns the classes they declared.
func (e *Engine) pruneMissing(root string, present []string) ([]string, error) {
	files, err := e.store.Files()
	if err != nil {
		return nil, fmt.Errorf("stratum: list files: %w", err)
	}
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	prefix := root + string(filepath.Separator)
	var removed []string
	for _, f := range files {
		if keep[f.Path] || !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		hashes, err := e.classHashes(f.ID)
		if err != nil {
			return nil, fmt.Errorf("stratum: prune %s: %w", f.Path, err)
		}
		if err := e.store.DeleteFile(f.ID); err != nil {
			return nil, fmt.Errorf("stratum: prune %s: %w", f.Path, err)
		}
		e.logger.Info("removed file", "path", f.Path)
		removed = append(removed, changedClasses(hashes, nil)...)
	}
	return removed, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := syntax.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := syntax.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stratum: walk directory: %w", err)
	}
	return paths, nil
}

// ImportMetadata reads metadata bundles and stores their entries, replacing
// entries with the same name and kind. Returns the number of entries
// stored. Sessions started afterwards see the new entries.
func (e *Engine) ImportMetadata(ctx context.Context, paths ...string) (int, error) {
	total := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return total, fmt.Errorf("stratum: import %s: %w", path, err)
		}
		var b metadata.Bundle
		if err := b.Unmarshal(data); err != nil {
			return total, fmt.Errorf("stratum: import %s: %w", path, err)
		}
		n, err := e.store.PutBundle(&b, path, time.Now())
		if err != nil {
			return total, fmt.Errorf("stratum: import %s: %w", path, err)
		}
		e.logger.Info("imported metadata", "path", path, "entries", n)
		total += n
	}
	e.entries.purge()
	return total, nil
}

// Packages lists every package that declares an indexed class.
func (e *Engine) Packages() ([]string, error) {
	return e.store.Packages()
}

// Classes lists the top-level classes indexed in pkg, excluding file
// facades, sorted by qualified name.
func (e *Engine) Classes(pkg string) ([]string, error) {
	rows, err := e.store.TopLevelClasses(pkg)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, r := range rows {
		if !r.Holder {
			names = append(names, r.FQName)
		}
	}
	sort.Strings(names)
	return dedupSorted(names), nil
}

func dedupSorted(s []string) []string {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
