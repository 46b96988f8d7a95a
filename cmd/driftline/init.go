package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/cliconfig"
	"github.com/driftline/driftline/internal/siteid"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Assign a site id and write a driftline.toml config",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = "driftline.toml"
		}

		existing, err := cliconfig.Load(path, nil)
		if err != nil {
			return err
		}
		if existing.NodeID != 0 && !initForce {
			return fmt.Errorf("init: %s already has a node id (%d); use --force to reassign", path, existing.NodeID)
		}

		existing.NodeID = siteid.New()
		if err := cliconfig.Save(path, existing); err != nil {
			return err
		}

		abs, _ := filepath.Abs(path)
		if jsonOutput {
			outputJSON(map[string]interface{}{"config_path": abs, "node_id": existing.NodeID})
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (node_id=%d)\n", abs, existing.NodeID)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "reassign node id even if the config already has one")
	rootCmd.AddCommand(initCmd)
}
