package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/telemetry"
	"github.com/driftline/driftline/internal/wire"
)

var (
	changesSince  uint64
	changesFormat string
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print changes at or after a watermark, for a peer to merge",
	RunE: func(cmd *cobra.Command, args []string) error {
		replica, _, closeStore, err := openReplica(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		batch := telemetry.Wrap(replica).ChangesSince(cmd.Context(), changesSince)
		switch changesFormat {
		case "jsonl":
			return wire.WriteJSONL(cmd.OutOrStdout(), batch)
		case "yaml":
			return wire.WriteYAML(cmd.OutOrStdout(), batch)
		default:
			return fmt.Errorf("changes: unknown --format %q (want jsonl or yaml)", changesFormat)
		}
	},
}

func init() {
	changesCmd.Flags().Uint64Var(&changesSince, "since", 0, "inclusive db_version watermark")
	changesCmd.Flags().StringVar(&changesFormat, "format", "jsonl", "output format: jsonl or yaml")
	rootCmd.AddCommand(changesCmd)
}
