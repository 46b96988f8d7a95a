package sqlite_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/crdt"
	"github.com/driftline/driftline/internal/store/sqlite"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	replica := crdt.New[string, json.RawMessage](1)
	_, err = replica.Insert("r1", map[string]json.RawMessage{"tag": json.RawMessage(`"A"`)})
	require.NoError(t, err)
	_, err = replica.Insert("r2", map[string]json.RawMessage{"tag": json.RawMessage(`"B"`)})
	require.NoError(t, err)
	replica.Delete("r2")

	require.NoError(t, store.Save(ctx, replica))

	reloaded, err := store.Load(ctx, 1)
	require.NoError(t, err)

	rec, ok := reloaded.Get("r1")
	require.True(t, ok)
	require.JSONEq(t, `"A"`, string(rec.Fields["tag"]))

	require.True(t, reloaded.IsTombstoned("r2"))
	rec2, ok := reloaded.Get("r2")
	require.True(t, ok)
	require.Empty(t, rec2.Fields)
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	replica := crdt.New[string, json.RawMessage](1)
	replica.Insert("r1", map[string]json.RawMessage{"tag": json.RawMessage(`"A"`)})
	require.NoError(t, store.Save(ctx, replica))

	replica.Update("r1", map[string]json.RawMessage{"tag": json.RawMessage(`"B"`)})
	require.NoError(t, store.Save(ctx, replica))

	reloaded, err := store.Load(ctx, 1)
	require.NoError(t, err)
	rec, ok := reloaded.Get("r1")
	require.True(t, ok)
	require.JSONEq(t, `"B"`, string(rec.Fields["tag"]))
}
