// Package stratum resolves declarations lazily from two kinds of input:
// Java source files read with tree-sitter, and serialized metadata bundles
// describing compiled classes and packages.
//
// # Pipeline
//
// Stratum keeps its inputs in SQLite and builds everything else on demand:
//
//  1. Index: for each source file, parse with tree-sitter and store its
//     classes, members and parameters as raw declaration containers.
//     Unchanged files are skipped by content hash.
//
//  2. Import: store the entries of metadata bundles, one row per class or
//     package fragment.
//
//  3. Query: a [Session] builds name indexes over raw containers and
//     descriptors over serialized entries the first time they are asked
//     for, and caches them for its lifetime.
//
// # Usage
//
//	e, err := stratum.New("stratum.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	stats, err := e.IndexDirectory(ctx, "path/to/project")
//	n, err := e.ImportMetadata(ctx, "lib.smd")
//
//	s := e.NewSession()
//	m, err := s.Lookup("geo.Point", false, "x")
//	fns, err := s.Functions("lib.Sub", "f")
//
// # Sessions
//
// A Session is a consistent view for a batch of queries. Providers,
// class descriptors and member scopes are memoized per session, so
// repeated queries return the same values. Start a new Session after
// indexing or importing to observe the changes.
//
// # Scripts
//
// [Session.RunScript] runs a Risor script against a Session. See the
// internal/runtime package for the globals exposed to scripts.
package stratum
