package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/telemetry"
	"github.com/driftline/driftline/internal/wire"
)

var (
	mergeFile   string
	mergeFormat string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a change batch (file or stdin) into the local replica",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in *os.File
		if mergeFile == "" || mergeFile == "-" {
			in = os.Stdin
		} else {
			f, err := os.Open(mergeFile) // #nosec G304 -- operator-supplied CLI input
			if err != nil {
				return fmt.Errorf("merge: open %s: %w", mergeFile, err)
			}
			defer f.Close()
			in = f
		}

		replica, save, closeStore, err := openReplica(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		traced := telemetry.Wrap(replica)

		var rep crdt.MergeReport[string]
		switch mergeFormat {
		case "jsonl":
			changes, err := wire.ReadJSONL(in)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			rep = traced.MergeChanges(cmd.Context(), changes)
		case "yaml":
			changes, err := wire.ReadYAML(in)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			rep = traced.MergeChanges(cmd.Context(), changes)
		default:
			return fmt.Errorf("merge: unknown --format %q (want jsonl or yaml)", mergeFormat)
		}

		if err := save(); err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"accepted": rep.Accepted()})
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "merged: %d accepted\n", rep.Accepted())
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeFile, "file", "-", "change batch file, or - for stdin")
	mergeCmd.Flags().StringVar(&mergeFormat, "format", "jsonl", "input format: jsonl or yaml")
	rootCmd.AddCommand(mergeCmd)
}
