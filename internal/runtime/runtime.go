// Package runtime runs Risor scripts against a query session.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/stratum/internal/store"
)

// Runtime embeds a Risor VM and exposes declaration queries, the source
// reader and read-only Store access to scripts.
type Runtime struct {
	store      *store.Store
	host       Host
	logger     *slog.Logger
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and their imports from fsys instead of the
// scripts directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithHost exposes a Host's declaration queries to scripts.
func WithHost(h Host) RuntimeOption {
	return func(r *Runtime) {
		r.host = h
	}
}

// WithLogger sets the logger behind the scripts' log object.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime returns a Runtime over s. A nil Store drops the store globals.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript runs the named script. Names resolve against the scripts FS
// when one is set, else against the scripts directory.
func (r *Runtime) RunScript(ctx context.Context, name string, globals map[string]any) error {
	src, err := r.LoadScript(name)
	if err != nil {
		return err
	}
	return r.eval(ctx, name, src, globals)
}

// RunSource runs inline Risor source.
func (r *Runtime) RunSource(ctx context.Context, source string, globals map[string]any) error {
	return r.eval(ctx, "<inline>", source, globals)
}

func (r *Runtime) eval(ctx context.Context, label, source string, extra map[string]any) error {
	globals := r.buildGlobals(extra)
	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	if imp := r.importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// importer resolves import statements from the same place scripts are
// loaded from. It is nil when scripts can only run inline.
func (r *Runtime) importer(globalNames []string) importer.Importer {
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript returns the source of a script. FS names are slash-separated
// and relative; directory names may be absolute.
func (r *Runtime) LoadScript(name string) (string, error) {
	var (
		data []byte
		err  error
		path string
	)
	if r.fsys != nil {
		path = strings.TrimPrefix(filepath.ToSlash(name), "/")
		data, err = fs.ReadFile(r.fsys, path)
	} else {
		path = name
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.scriptsDir, path)
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":     makeParseFn(),
		"parse_src": makeParseSrcFn(),
		"log":       mustProxy(&logObject{logger: r.logger.With("component", "script")}),
	}

	// Declaration queries, answered by the host session.
	if r.host != nil {
		globals["lookup"] = makeLookupFn(r.host)
		globals["members"] = makeMembersFn(r.host)
		globals["package_lookup"] = makePackageLookupFn(r.host)
		globals["package_members"] = makePackageMembersFn(r.host)
		globals["functions"] = makeFunctionsFn(r.host)
		globals["package_functions"] = makePackageFunctionsFn(r.host)
		globals["descriptors"] = makeDescriptorsFn(r.host)
		globals["package_descriptors"] = makePackageDescriptorsFn(r.host)
		globals["describe"] = makeDescribeFn(r.host)
		globals["conflicts"] = makeConflictsFn(r.host)
	}

	// Read-only Store access.
	if r.store != nil {
		globals["files"] = makeFilesFn(r.store)
		globals["packages"] = makePackagesFn(r.store)
		globals["classes"] = makeClassesFn(r.store)
		globals["entries"] = makeEntriesFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxying %T: %v", v, err))
	}
	return p
}
