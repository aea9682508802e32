package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/stratum"
	"github.com/jward/stratum/scripts"
)

var flagScriptsDir string

var scriptCmd = &cobra.Command{
	Use:   "script <script> [key=value...]",
	Short: "Run a Risor script against a query session",
	Long: `Runs a Risor script with the declaration query functions as globals.
A script path that exists on disk runs from there, and its directory serves
imports. Otherwise the name is looked up in --scripts-dir, the scripts
directory from stratum.yaml, or the built-in scripts (e.g. package_report.risor).
Trailing key=value arguments become string globals.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from this directory instead of the built-in set")
}

func runScript(cmd *cobra.Command, args []string) error {
	globals, err := parseGlobals(args[1:])
	if err != nil {
		return outputError("script", err)
	}

	name, opt := scriptSource(args[0])
	engine, err := openExisting(opt)
	if err != nil {
		return outputError("script", err)
	}
	defer engine.Close()

	if err := engine.NewSession().RunScript(context.Background(), name, globals); err != nil {
		return outputError("script", err)
	}
	return nil
}

// scriptSource picks where a script is loaded from and the name to load
// it by.
func scriptSource(arg string) (string, stratum.Option) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(arg)
		if err == nil {
			return filepath.Base(abs), stratum.WithScriptsDir(filepath.Dir(abs))
		}
	}
	switch {
	case flagScriptsDir != "":
		return arg, stratum.WithScriptsDir(flagScriptsDir)
	case cfg.Scripts != "":
		return arg, stratum.WithScriptsDir(cfg.Scripts)
	}
	return arg, stratum.WithScriptsFS(scripts.FS)
}

// parseGlobals turns key=value arguments into script globals.
func parseGlobals(args []string) (map[string]any, error) {
	globals := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid script argument %q: want key=value", a)
		}
		globals[k] = v
	}
	return globals, nil
}
