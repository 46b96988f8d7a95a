package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/store/sqlite"
	"github.com/driftline/driftline/internal/wire"
)

// filePeer is a meshsync.Peer backed by another node's SQLite snapshot
// and watch directory, reachable over a shared filesystem (a mounted
// volume, an NFS share, a synced folder). Push drops a JSONL batch
// file into the peer's watch directory for its syncfeed watcher to
// pick up; Pull reads the peer's own snapshot directly, since the
// snapshot is just a file on the same shared filesystem.
type filePeer struct {
	name      string
	storePath string
	watchDir  string
}

func (p *filePeer) Name() string { return p.name }

func (p *filePeer) Push(ctx context.Context, changes []crdt.Change[string, json.RawMessage]) error {
	if len(changes) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.watchDir, 0o755); err != nil {
		return fmt.Errorf("filePeer %s: create watch dir: %w", p.name, err)
	}
	name := fmt.Sprintf("sync-%d.jsonl", time.Now().UnixNano())
	f, err := os.Create(filepath.Join(p.watchDir, name)) // #nosec G304 -- path built from operator config, not external input
	if err != nil {
		return fmt.Errorf("filePeer %s: create batch file: %w", p.name, err)
	}
	defer f.Close()
	return wire.WriteJSONL(f, changes)
}

func (p *filePeer) Pull(ctx context.Context, lastDBVersion uint64) ([]crdt.Change[string, json.RawMessage], error) {
	store, err := sqlite.Open(p.storePath)
	if err != nil {
		return nil, fmt.Errorf("filePeer %s: open snapshot: %w", p.name, err)
	}
	defer store.Close()

	replica, err := store.Load(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("filePeer %s: load snapshot: %w", p.name, err)
	}
	return replica.ChangesSince(lastDBVersion), nil
}
