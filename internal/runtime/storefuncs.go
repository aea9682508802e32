package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/stratum/internal/store"
)

// --- Store query functions ---

// makeFilesFn creates "files".
//
// files() → list of {id, path, language, hash}
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":       object.NewInt(f.ID),
				"path":     object.NewString(f.Path),
				"language": object.NewString(f.Language),
				"hash":     object.NewString(f.Hash),
			}))
		}
		return object.NewList(results)
	})
}

// makePackagesFn creates "packages".
//
// packages() → list of package names
func makePackagesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("packages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("packages", 0, len(args))
		}
		pkgs, err := s.Packages()
		if err != nil {
			return object.Errorf("packages: %v", err)
		}
		return stringsToList(pkgs)
	})
}

// makeClassesFn creates "classes".
//
// classes(pkg) → list of {id, fq_name, kind, holder, file_id}
func makeClassesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("classes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("classes", 1, len(args))
		}
		pkg, err := toString(args[0])
		if err != nil {
			return object.Errorf("classes: %v", err)
		}
		rows, err := s.TopLevelClasses(pkg)
		if err != nil {
			return object.Errorf("classes: %v", err)
		}
		results := make([]object.Object, 0, len(rows))
		for _, c := range rows {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":      object.NewInt(c.ID),
				"fq_name": object.NewString(c.FQName),
				"kind":    object.NewString(c.Kind),
				"holder":  object.NewBool(c.Holder),
				"primary": object.NewBool(c.Primary),
				"file_id": object.NewInt(c.FileID),
			}))
		}
		return object.NewList(results)
	})
}

// makeEntriesFn creates "entries".
//
// entries(kind) → list of imported entry names of that kind
func makeEntriesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("entries", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("entries", 1, len(args))
		}
		kind, err := toString(args[0])
		if err != nil {
			return object.Errorf("entries: %v", err)
		}
		names, err := s.EntryNames(kind)
		if err != nil {
			return object.Errorf("entries: %v", err)
		}
		return stringsToList(names)
	})
}

// makeDBQueryFn creates "db_query".
//
// db_query(sql, args...) → list of rows keyed by column name. Only SELECT
// statements run.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) == 0 {
			return object.Errorf("db_query: missing sql argument")
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}
		rows, err := queryRows(ctx, s, query, sqlArgs(args[1:]))
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(rows)
	})
}

// sqlArgs converts script values to query parameters. Anything without a
// SQL counterpart binds as its string form.
func sqlArgs(args []object.Object) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *object.Int:
			out[i] = v.Value()
		case *object.Float:
			out[i] = v.Value()
		case *object.String:
			out[i] = v.Value()
		case *object.Bool:
			out[i] = v.Value()
		case *object.NilType:
			out[i] = nil
		default:
			out[i] = arg.Inspect()
		}
	}
	return out
}

func queryRows(ctx context.Context, s *store.Store, query string, args []any) ([]object.Object, error) {
	rows, err := s.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []object.Object{}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]object.Object, len(cols))
		for i, col := range cols {
			row[col] = sqlValue(values[i])
		}
		out = append(out, object.NewMap(row))
	}
	return out, rows.Err()
}

func sqlValue(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case string:
		return object.NewString(val)
	case []byte:
		return object.NewString(string(val))
	}
	return object.NewString(fmt.Sprint(v))
}

func stringsToList(ss []string) object.Object {
	results := make([]object.Object, 0, len(ss))
	for _, v := range ss {
		results = append(results, object.NewString(v))
	}
	return object.NewList(results)
}
