package stratum

import (
	"context"

	"github.com/jward/stratum/internal/runtime"
)

// RunScript runs a Risor script against the session. Scripts are loaded
// from the Engine's scripts filesystem or directory.
func (s *Session) RunScript(ctx context.Context, path string, globals map[string]any) error {
	return s.runtime().RunScript(ctx, path, globals)
}

// RunSource runs Risor source code against the session.
func (s *Session) RunSource(ctx context.Context, src string, globals map[string]any) error {
	return s.runtime().RunSource(ctx, src, globals)
}

func (s *Session) runtime() *runtime.Runtime {
	e := s.engine
	opts := []runtime.RuntimeOption{
		runtime.WithHost(scriptHost{s}),
		runtime.WithLogger(e.logger),
	}
	if e.scriptsFS != nil {
		opts = append(opts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	return runtime.NewRuntime(e.store, e.scriptsDir, opts...)
}

// scriptHost adapts a Session to the runtime's Host interface.
type scriptHost struct {
	s *Session
}

func (h scriptHost) Lookup(class string, static bool, name string) (any, error) {
	return h.s.Lookup(class, static, name)
}

func (h scriptHost) Members(class string, static bool) (any, error) {
	return h.s.Members(class, static)
}

func (h scriptHost) PackageLookup(pkg, name string) (any, error) {
	return h.s.PackageLookup(pkg, name)
}

func (h scriptHost) PackageMembers(pkg string) (any, error) {
	return h.s.PackageMembers(pkg)
}

func (h scriptHost) Functions(class, name string) (any, error) {
	return h.s.Functions(class, name)
}

func (h scriptHost) PackageFunctions(pkg, name string) (any, error) {
	return h.s.PackageFunctions(pkg, name)
}

func (h scriptHost) Descriptors(class string) (any, error) {
	return h.s.ClassDescriptors(class)
}

func (h scriptHost) PackageDescriptors(pkg string) (any, error) {
	return h.s.PackageDescriptors(pkg)
}

func (h scriptHost) Describe(class string) (any, error) {
	return h.s.DescribeClass(class)
}

func (h scriptHost) Conflicts() any {
	return h.s.Conflicts()
}
