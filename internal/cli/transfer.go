package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table to JSONL files in dir",
		Long: "Export writes one JSONL file per table into dir, replacing existing files.\n" +
			"The export covers all users.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attach()
			if err != nil {
				return err
			}
			defer backend.Detach()

			counts, err := backend.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, counts, func(w io.Writer) error {
				return table(w, "FILE\tROWS", func(tw io.Writer) {
					for _, file := range slices.Sorted(maps.Keys(counts)) {
						fmt.Fprintf(tw, "%s\t%d\n", file, counts[file])
					}
				})
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load JSONL files from dir into the database",
		Long: "Import loads the JSONL files written by export in one transaction.\n" +
			"Rows that are malformed or collide with existing rows are skipped and\n" +
			"counted; a row referencing a missing parent aborts the whole import.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attach()
			if err != nil {
				return err
			}
			defer backend.Detach()

			report, err := backend.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, report, func(w io.Writer) error {
				return table(w, "FILE\tLOADED\tSKIPPED", func(tw io.Writer) {
					for _, file := range slices.Sorted(maps.Keys(report.Loaded)) {
						fmt.Fprintf(tw, "%s\t%d\t%d\n", file, report.Loaded[file], report.Skipped[file])
					}
				})
			})
		},
	}
}
