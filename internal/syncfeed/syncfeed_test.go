package syncfeed_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/syncfeed"
)

func TestWatchIngestsDroppedChangeFile(t *testing.T) {
	dir := t.TempDir()
	replica := crdt.New[string, json.RawMessage](1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan syncfeed.Event, 4)
	go func() {
		_ = syncfeed.Watch(ctx, dir, replica, events, 10*time.Millisecond)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)

	line := `{"record_id":"r1","col_name":"tag","value":"A","col_version":1,"db_version":1,"site_id":2,"seq":0}` + "\n"
	path := filepath.Join(dir, "peer-2.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	select {
	case ev := <-events:
		require.NoError(t, ev.Err)
		require.Equal(t, path, ev.Path)
		require.Equal(t, 1, ev.Report.Accepted())
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for syncfeed event")
	}

	rec, ok := replica.Get("r1")
	require.True(t, ok)
	require.JSONEq(t, `"A"`, string(rec.Fields["tag"]))
}
