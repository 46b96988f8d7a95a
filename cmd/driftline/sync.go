package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/meshsync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push and pull changes with every configured peer",
	Long: `sync fans out to every directory listed under peers in the config:
each is treated as another driftline node's root, reachable over a
shared filesystem. A batch of local changes is dropped into the
peer's watch directory and the peer's own snapshot is read back and
merged locally, all concurrently and retried with backoff per peer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Peers) == 0 {
			return fmt.Errorf("sync: no peers configured; set peers in %s", cfgPath)
		}

		replica, save, closeStore, err := openReplica(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		peers := make([]meshsync.Peer[string, json.RawMessage], 0, len(cfg.Peers))
		for i, dir := range cfg.Peers {
			peers = append(peers, &filePeer{
				name:      fmt.Sprintf("peer-%d", i),
				storePath: filepath.Join(dir, "driftline.db"),
				watchDir:  filepath.Join(dir, ".driftline", "incoming"),
			})
		}

		results := meshsync.Sync(cmd.Context(), replica, peers, nil)
		if err := save(); err != nil {
			return err
		}

		type peerResult struct {
			Peer     string `json:"peer"`
			Pushed   int    `json:"pushed"`
			Accepted int    `json:"accepted"`
			Error    string `json:"error,omitempty"`
		}
		out := make([]peerResult, 0, len(results))
		for _, r := range results {
			pr := peerResult{Peer: r.Peer, Pushed: r.Pushed, Accepted: r.Report.Accepted()}
			if r.Err != nil {
				pr.Error = r.Err.Error()
			}
			out = append(out, pr)
		}

		if jsonOutput {
			outputJSON(out)
		} else {
			for _, pr := range out {
				if pr.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED (%s)\n", pr.Peer, pr.Error)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: pushed %d, accepted %d\n", pr.Peer, pr.Pushed, pr.Accepted)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
