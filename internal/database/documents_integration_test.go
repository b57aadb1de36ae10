//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/database"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/dimitrije/teamtasks-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForDocs(t *testing.T, sub store.Subscription, n int) store.Snapshot {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			require.True(t, ok, "subscription closed")
			require.NoError(t, snap.Err)
			if len(snap.Docs) == n {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d documents", n)
		}
	}
}

func TestDocumentStore_ListenNotify(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	s := database.NewDocumentStore(tdb.DB, nil)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, store.Teams, store.ArrayContains("members", "u1"))
	require.NoError(t, err)
	defer sub.Close()
	waitForDocs(t, sub, 0)

	teamID, err := s.Add(ctx, store.Teams, map[string]any{
		"name":      "Alpha",
		"createdBy": "u1",
		"members":   []string{"u1", "u2"},
	})
	require.NoError(t, err)

	_, err = s.Add(ctx, store.Teams, map[string]any{"name": "Other", "members": []string{"u3"}})
	require.NoError(t, err)

	snap := waitForDocs(t, sub, 1)
	assert.Equal(t, teamID, snap.Docs[0].ID)
}

func TestDocumentStore_SetMergesFields(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	s := database.NewDocumentStore(tdb.DB, nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, store.Users, "u1", map[string]any{"name": "Ann", "email": "ann@example.com"}))
	require.NoError(t, s.Set(ctx, store.Users, "u1", map[string]any{"team": "T1"}))

	docs, err := s.Snapshot(ctx, store.Users, store.Equal("team", "T1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"name":"Ann","email":"ann@example.com","team":"T1"}`, string(docs[0].Data))
}
