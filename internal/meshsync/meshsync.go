// Package meshsync fans a Replica's sync out to a set of peers
// concurrently, bounded by errgroup and retried with backoff for
// transient per-peer failures. Transport itself is explicitly out of
// scope for the core (spec.md §1); Peer is the seam a caller plugs a
// real transport into.
package meshsync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/telemetry"
)

// Peer is one remote replica endpoint: push sends a local change
// batch to it, pull retrieves its changes since a watermark. A real
// transport (HTTP, file drop, git remote) implements this; meshsync
// only sequences calls to it.
type Peer[K comparable, V any] interface {
	Name() string
	Push(ctx context.Context, changes []crdt.Change[K, V]) error
	Pull(ctx context.Context, lastDBVersion uint64) ([]crdt.Change[K, V], error)
}

// RetryMaxElapsed bounds how long a single peer round-trip is retried
// before giving up, matching the teacher's serverRetryMaxElapsed
// constant in internal/storage/dolt. It is a var, not a const, so
// tests can shrink it instead of waiting out a real 30s backoff.
var RetryMaxElapsed = 30 * time.Second

// Result reports one peer's sync outcome.
type Result[K comparable] struct {
	Peer   string
	Pushed int
	Report crdt.MergeReport[K]
	Err    error
}

// Sync pushes local's changes since watermark to every peer and merges
// each peer's changes back into local. The network round-trip (push +
// pull) for each peer runs concurrently, one errgroup goroutine per
// peer, since that work never touches local. local itself is not safe
// for concurrent use (crdt.Replica's single-threaded-per-instance
// contract, spec §5): the ChangesSince extraction that produces each
// peer's outgoing batch, and the MergeChanges call that applies each
// peer's incoming batch, are both done from this function's own
// goroutine, sequentially, before and after the concurrent phase, and
// routed through telemetry.Wrap so a span/metric covers each call the
// same way cmd/driftline's direct merge command does (a no-op until
// the caller has run telemetry.Init). A failing peer does not cancel
// the others; its error is reported in its Result. watermarks, keyed
// by peer name, lets a caller track distinct per-peer watermarks for
// incremental sync.
func Sync[K comparable, V any](ctx context.Context, local *crdt.Replica[K, V], peers []Peer[K, V], watermarks map[string]uint64) []Result[K] {
	traced := telemetry.Wrap(local)

	results := make([]Result[K], len(peers))
	outgoing := make([][]crdt.Change[K, V], len(peers))
	incoming := make([][]crdt.Change[K, V], len(peers))

	for i, peer := range peers {
		outgoing[i] = traced.ChangesSince(ctx, watermarks[peer.Name()])
	}

	var g errgroup.Group
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			pulled, err := roundTripPeer(ctx, peer, outgoing[i], watermarks[peer.Name()])
			if err != nil {
				results[i] = Result[K]{Peer: peer.Name(), Pushed: len(outgoing[i]), Err: err}
				return nil // errors are carried in Result, not propagated, so one bad peer doesn't abort the rest
			}
			incoming[i] = pulled
			return nil
		})
	}
	_ = g.Wait() // roundTripPeer's errors are carried in Result, not returned, so this can't fail

	for i, peer := range peers {
		if results[i].Err != nil {
			continue
		}
		report := traced.MergeChanges(ctx, incoming[i])
		results[i] = Result[K]{Peer: peer.Name(), Pushed: len(outgoing[i]), Report: report}
	}

	return results
}

// roundTripPeer pushes outgoing and pulls incoming changes for one
// peer, retrying the whole round-trip on transient failure. It never
// reads or writes local: callers serialize extraction and merge
// themselves around the concurrent fan-out this drives.
func roundTripPeer[K comparable, V any](ctx context.Context, peer Peer[K, V], outgoing []crdt.Change[K, V], watermark uint64) ([]crdt.Change[K, V], error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = RetryMaxElapsed

	var incoming []crdt.Change[K, V]
	err := backoff.Retry(func() error {
		if err := peer.Push(ctx, outgoing); err != nil {
			return fmt.Errorf("push to %s: %w", peer.Name(), err)
		}
		pulled, err := peer.Pull(ctx, watermark)
		if err != nil {
			return fmt.Errorf("pull from %s: %w", peer.Name(), err)
		}
		incoming = pulled
		return nil
	}, backoff.WithContext(bo, ctx))

	return incoming, err
}
