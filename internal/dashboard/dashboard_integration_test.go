//go:build integration

package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/dashboard"
	"github.com/dimitrije/teamtasks-api/internal/database"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/mutation"
	"github.com/dimitrije/teamtasks-api/internal/testutil"
	"github.com/dimitrije/teamtasks-api/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventually(t *testing.T, b dashboard.Board, cond func(view.View) bool) view.View {
	t.Helper()
	var last view.View
	require.Eventually(t, func() bool {
		v, err := b.View(context.Background(), nil)
		if err != nil {
			return false
		}
		last = v
		return cond(v)
	}, 15*time.Second, 50*time.Millisecond)
	return last
}

func TestDashboard_PostgresEndToEnd(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	st := database.NewDocumentStore(tdb.DB, nil)
	fx := testutil.NewFixtures(st)
	ctx := context.Background()

	fx.CreateUser(t, "u1", testutil.WithName("Ann"))
	fx.CreateUser(t, "u2", testutil.WithName("Bob"))

	reg := dashboard.NewRegistry(ctx, st, dashboard.Options{WriteTimeout: 5 * time.Second}, nil)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	board, err := reg.Board(ctx, auth.Principal{UID: "u1", DisplayName: "Ann"})
	require.NoError(t, err)

	eventually(t, board, func(v view.View) bool { return v.Phase == view.PhaseNoTeam })

	teamID, err := board.CreateTeam(ctx, "Alpha", []string{"u2"})
	require.NoError(t, err)

	v := eventually(t, board, func(v view.View) bool {
		return v.Phase == view.PhaseReady && len(v.Roster) == 2 && len(v.StaleReferences) == 0
	})
	assert.Equal(t, teamID, v.ActiveTeam.ID)
	require.Len(t, v.AssignablePool, 1)
	assert.Equal(t, "u2", v.AssignablePool[0].ID)

	taskID, err := board.CreateTask(ctx, mutation.NewTask{
		Title:       "Fix login",
		Description: "<b>soon</b><script>x()</script>",
		Assignees:   []string{"u2"},
		TeamID:      teamID,
	})
	require.NoError(t, err)

	eventually(t, board, func(v view.View) bool { return len(v.VisibleTasks) == 1 })

	status, err := board.ToggleStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, status)

	v = eventually(t, board, func(v view.View) bool {
		return len(v.VisibleTasks) == 1 && v.VisibleTasks[0].Status == models.StatusDone
	})
	assert.NotContains(t, v.VisibleTasks[0].Description, "<script>")

	assignees, err := board.ToggleAssignment(ctx, taskID, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u1"}, assignees)

	v = eventually(t, board, func(v view.View) bool { return len(v.Assigned) == 1 })
	assert.Equal(t, taskID, v.Assigned[0].ID)

	require.NoError(t, reg.SignOut(ctx, "u1"))
	assert.Equal(t, 0, reg.Active())
}
