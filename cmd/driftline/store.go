package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/store/sqlite"
)

// openReplica loads the current snapshot for cfg.NodeID, or starts a
// fresh Replica if the store has never been saved. save persists
// whatever state the replica is in at the time it's called and may be
// called more than once (a long-running command like watch calls it
// once per ingested batch); the caller is responsible for closing the
// store once it's done issuing saves.
func openReplica(ctx context.Context) (replica *crdt.Replica[string, json.RawMessage], save func() error, closeStore func() error, err error) {
	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}

	replica, err = store.Load(ctx, cfg.NodeID)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	save = func() error { return store.Save(ctx, replica) }
	return replica, save, store.Close, nil
}
