package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <record-id> <fields-json>",
	Short: "Update columns on an existing record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordID, fieldsJSON := args[0], args[1]

		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(fieldsJSON), &raw); err != nil {
			return fmt.Errorf("update: fields must be a JSON object: %w", err)
		}

		ctx := cmd.Context()
		replica, save, closeStore, err := openReplica(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		outcome, err := replica.Update(recordID, raw)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
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
	rootCmd.AddCommand(updateCmd)
}
