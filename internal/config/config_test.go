package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes the STRATUM_* variables for the duration of the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDB, EnvWorkers, EnvLogLevel} {
		if v, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseConfig_Full(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`
db: data/stratum.db
sources:
  - src/main/java
  - /abs/lib
metadata:
  - deps/kotlin-stdlib.stratum
workers: 4
cache_size: 512
log_level: debug
annotations: true
scripts: scripts
`), "stratum.yaml")
	require.NoError(t, err)
	assert.Equal(t, "data/stratum.db", cfg.DB)
	assert.Equal(t, []string{"src/main/java", "/abs/lib"}, cfg.Sources)
	assert.Equal(t, []string{"deps/kotlin-stdlib.stratum"}, cfg.Metadata)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 512, cfg.CacheSize)
	assert.True(t, cfg.Annotations)
	assert.Equal(t, "scripts", cfg.Scripts)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestParseConfig_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig(nil, "stratum.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.DB)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "dbpath: x\n", "dbpath"},
		{"negative workers", "workers: -1\n", "workers"},
		{"negative cache", "cache_size: -5\n", "cache_size"},
		{"bad level", "log_level: loud\n", "loud"},
		{"bad yaml", "sources: [\n", "parsing"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseConfig([]byte(tt.yaml), "stratum.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "stratum.yaml")
		})
	}
}

func TestFindConfig_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "workers: 2\n")
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, err := FindConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvDB:       "/tmp/other.db",
		EnvWorkers:  " 8 ",
		EnvLogLevel: "warn",
	}
	cfg := &Config{DB: "file.db", Workers: 2}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "/tmp/other.db", cfg.DB)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelWarn, cfg.Level())

	err := (&Config{}).ApplyEnv(func(k string) string {
		if k == EnvWorkers {
			return "many"
		}
		return ""
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvWorkers)

	err = (&Config{}).ApplyEnv(func(k string) string {
		if k == EnvLogLevel {
			return "chatty"
		}
		return ""
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvLogLevel)
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	unsetEnv(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
db: data/stratum.db
sources: [src]
metadata: [/abs/lib.stratum]
scripts: scripts
`)
	sub := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	cfg, err := Load(sub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path)
	assert.Equal(t, root, cfg.Dir)
	assert.Equal(t, filepath.Join(root, "data", "stratum.db"), cfg.DB)
	assert.Equal(t, []string{filepath.Join(root, "src")}, cfg.Sources)
	assert.Equal(t, []string{"/abs/lib.stratum"}, cfg.Metadata)
	assert.Equal(t, filepath.Join(root, "scripts"), cfg.Scripts)
}

func TestLoad_NoConfigUsesDefaults(t *testing.T) {
	unsetEnv(t)

	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, filepath.Join(dir, DefaultDB), cfg.DB)
	assert.Equal(t, 0, cfg.Workers)
}

func TestLoad_Dotenv(t *testing.T) {
	unsetEnv(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "workers: 2\n")
	writeFile(t, filepath.Join(root, ".env"), "STRATUM_WORKERS=6\nSTRATUM_LOG_LEVEL=error\n")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, slog.LevelError, cfg.Level())

	// The process environment wins over .env.
	t.Setenv(EnvWorkers, "3")
	cfg, err = Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_InvalidConfig(t *testing.T) {
	unsetEnv(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "workers: lots\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), FileName)
}
