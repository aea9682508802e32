package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jward/stratum"
)

// formatMembersText formats MemberInfo results one declaration per line,
// grouped under their name.
func formatMembersText(w io.Writer, infos []*stratum.MemberInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tOWNER\tSIGNATURE")
	for _, m := range infos {
		if m == nil {
			continue
		}
		for _, fn := range m.Methods {
			kind := "method"
			if fn.Constructor {
				kind = "constructor"
			} else if fn.Static {
				kind = "static method"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, kind, fn.Owner, fn.Signature)
		}
		for _, p := range m.Properties {
			kind := "val"
			if p.Var {
				kind = "var"
			}
			sig := p.Type
			if p.Receiver != "" {
				sig = p.Receiver + "." + m.Name + ": " + p.Type
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, kind, propertySource(p), sig)
		}
		if m.SAMInterface != "" {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", m.Name, "sam", m.SAMInterface)
		}
	}
	tw.Flush()
}

func propertySource(p stratum.PropertyInfo) string {
	var parts []string
	for _, s := range []string{p.Field, p.Getter, p.Setter} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// formatDeclarationsText formats DeclarationInfo results as aligned columns.
func formatDeclarationsText(w io.Writer, decls []*stratum.DeclarationInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tOWNER\tORIGIN\tSIGNATURE")
	for _, d := range decls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Kind, d.Name, d.Owner, d.Origin, d.Signature)
	}
	tw.Flush()
}

// formatClassText formats a ClassInfo as readable text.
func formatClassText(w io.Writer, c *stratum.ClassInfo) {
	fmt.Fprintf(w, "%s %s\n", c.Kind, c.FQName)
	if len(c.TypeParameters) > 0 {
		fmt.Fprintf(w, "Type parameters: %s\n", strings.Join(c.TypeParameters, ", "))
	}
	if len(c.Supertypes) > 0 {
		fmt.Fprintf(w, "Supertypes: %s\n", strings.Join(c.Supertypes, ", "))
	}
	if len(c.Nested) > 0 {
		fmt.Fprintf(w, "Nested: %s\n", strings.Join(c.Nested, ", "))
	}
	if len(c.Members) > 0 {
		fmt.Fprintln(w, "Members:")
		for _, m := range c.Members {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
}

// formatStatsText formats IndexStats as a short summary.
func formatStatsText(w io.Writer, s *stratum.IndexStats) {
	fmt.Fprintf(w, "indexed %d, skipped %d, failed %d, removed %d\n", s.Indexed, s.Skipped, s.Failed, s.Removed)
	for _, c := range s.Changed {
		fmt.Fprintf(w, "changed %s\n", c)
	}
}

func formatConflictsText(w io.Writer, conflicts []stratum.ConflictInfo) {
	fmt.Fprintln(w, "\nConflicts:")
	for _, c := range conflicts {
		fmt.Fprintf(w, "  %s.%s overrides %s.%s with an incompatible return type\n",
			c.Declared.Owner, c.Declared.Name, c.Inherited.Owner, c.Inherited.Name)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case *stratum.MemberInfo:
		formatMembersText(w, []*stratum.MemberInfo{v})
	case []*stratum.MemberInfo:
		formatMembersText(w, v)
	case []*stratum.DeclarationInfo:
		formatDeclarationsText(w, v)
	case *stratum.ClassInfo:
		formatClassText(w, v)
	case *stratum.IndexStats:
		formatStatsText(w, v)
	case CLIImportStats:
		fmt.Fprintf(w, "imported %d entries from %d bundles\n", v.Entries, v.Bundles)
	case CLINames:
		for _, n := range v {
			fmt.Fprintln(w, n)
		}
	case *CLIEntry:
		fmt.Fprintf(w, "%s %s (from %s)\n", v.Kind, v.FQName, v.Source)
		fmt.Fprintf(w, "names: %s\n", strings.Join(v.Names, ", "))
		fmt.Fprintf(w, "%s\n", v.Message)
	case nil:
		// No output for nil results (e.g., lookup of an undeclared name).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if len(result.Conflicts) > 0 {
		formatConflictsText(w, result.Conflicts)
	}
	return nil
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if outputFormat(w) == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	w := rootCmd.OutOrStdout()
	if outputFormat(w) == "text" {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// outputFormat resolves --format. Without the flag, a terminal gets text and
// anything else gets JSON.
func outputFormat(w io.Writer) string {
	if flagFormat != "" {
		return flagFormat
	}
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return "text"
		}
	}
	return "json"
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if format == "" {
		return nil
	}
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
