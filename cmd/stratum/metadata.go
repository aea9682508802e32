package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/stratum/internal/metadata"
)

var flagKind string

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Inspect imported metadata entries",
}

func init() {
	metadataCmd.PersistentFlags().StringVar(&flagKind, "kind", "class", "entry kind: class|package")

	metadataCmd.AddCommand(metadataListCmd)
	metadataCmd.AddCommand(metadataDumpCmd)
}

var metadataListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported entries of one kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindFlag()
		if err != nil {
			return outputError("metadata list", err)
		}
		engine, err := openExisting()
		if err != nil {
			return outputError("metadata list", err)
		}
		defer engine.Close()

		names, err := engine.Store().EntryNames(kind.String())
		if err != nil {
			return outputError("metadata list", err)
		}
		return outputResult(cmd, CLIResult{Command: "metadata list", Results: CLINames(names)})
	},
}

var metadataDumpCmd = &cobra.Command{
	Use:   "dump <fq-name>",
	Short: "Render an imported entry's payload through the metadata schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindFlag()
		if err != nil {
			return outputError("metadata dump", err)
		}
		engine, err := openExisting()
		if err != nil {
			return outputError("metadata dump", err)
		}
		defer engine.Close()

		row, err := engine.Store().EntryRow(args[0], kind.String())
		if err != nil {
			return outputError("metadata dump", err)
		}
		if row == nil {
			return outputError("metadata dump", fmt.Errorf("no %s entry %s", kind, args[0]))
		}
		msg, err := metadata.Dump(kind, row.Payload)
		if err != nil {
			return outputError("metadata dump", err)
		}
		return outputResult(cmd, CLIResult{Command: "metadata dump", Results: &CLIEntry{
			FQName:     row.FQName,
			Kind:       row.Kind,
			Source:     row.Source,
			ImportedAt: row.ImportedAt,
			Names:      row.Names,
			Message:    msg,
		}})
	},
}

func parseKindFlag() (metadata.EntryKind, error) {
	kind, ok := metadata.ParseEntryKind(flagKind)
	if !ok {
		return 0, fmt.Errorf("invalid kind %q: must be class or package", flagKind)
	}
	return kind, nil
}
