package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Tombstone a record permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordID := args[0]

		ctx := cmd.Context()
		replica, save, closeStore, err := openReplica(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		outcome := replica.Delete(recordID)
		if err := save(); err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"record_id": recordID, "outcome": outcome.String()})
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", recordID, outcome)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
