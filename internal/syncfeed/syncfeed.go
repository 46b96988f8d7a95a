// Package syncfeed watches a directory for JSONL change-batch files
// dropped by peers and merges each one into a Replica as it arrives,
// mirroring the teacher's fsnotify-driven watch loop for its own
// issues.jsonl (cmd/bd/list.go) and its git-portable JSONL sync mode
// (internal/config/sync.go's SyncModeGitPortable): peers exchange
// plain files, not a live connection, so a filesystem watch is the
// whole "transport".
package syncfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/wire"
)

// Event reports one ingested change file.
type Event struct {
	Path   string
	Report crdt.MergeReport[string]
	Err    error
}

// Watch watches dir for new or rewritten .jsonl files and merges each
// one's changes into replica, sending an Event per file on events.
// Watch blocks until ctx is canceled or an unrecoverable watcher setup
// error occurs. Debounce collapses rapid successive writes to the same
// file (editors and `cp` can emit several fsnotify.Write events for
// one logical update), matching the debounce timer in cmd/bd/list.go.
func Watch(ctx context.Context, dir string, replica *crdt.Replica[string, json.RawMessage], events chan<- Event, debounce time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("syncfeed: create watch dir %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("syncfeed: new watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("syncfeed: watch %s: %w", dir, err)
	}

	pending := map[string]*time.Timer{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	ingest := func(path string) {
		report, err := ingestFile(replica, path)
		select {
		case events <- Event{Path: path, Report: report, Err: err}:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case events <- Event{Err: fmt.Errorf("syncfeed: watcher error: %w", err)}:
			case <-ctx.Done():
				return nil
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}

			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Stop()
			}
			pending[path] = time.AfterFunc(debounce, func() { ingest(path) })
		}
	}
}

func ingestFile(replica *crdt.Replica[string, json.RawMessage], path string) (crdt.MergeReport[string], error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return crdt.MergeReport[string]{}, fmt.Errorf("syncfeed: open %s: %w", path, err)
	}
	defer f.Close()

	changes, err := wire.ReadJSONL(f)
	if err != nil {
		return crdt.MergeReport[string]{}, fmt.Errorf("syncfeed: decode %s: %w", path, err)
	}
	return replica.MergeChanges(changes), nil
}
