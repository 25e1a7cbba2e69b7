package economy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimTask(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	user := seedUser(t, store, "100", 1000)
	task, err := store.CreateTask(ctx, Task{Category: TaskCategoryChallenge, Description: "Reach level 2", Reward: 500})
	require.NoError(t, err)
	_, err = store.CreateUserTask(ctx, user.ID, task.ID)
	require.NoError(t, err)

	res, err := engine.ClaimTask(ctx, ClaimRequest{UserID: user.ID, TaskID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Reward)
	assert.Equal(t, int64(1500), res.User.Coins)
	assert.True(t, res.Task.Claimed)
}

func TestClaimTaskTwice(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	user := seedUser(t, store, "100", 1000)
	task, err := store.CreateTask(ctx, Task{Category: TaskCategoryChallenge, Description: "Reach level 2", Reward: 500})
	require.NoError(t, err)
	_, err = store.CreateUserTask(ctx, user.ID, task.ID)
	require.NoError(t, err)

	_, err = engine.ClaimTask(ctx, ClaimRequest{UserID: user.ID, TaskID: task.ID})
	require.NoError(t, err)

	_, err = engine.ClaimTask(ctx, ClaimRequest{UserID: user.ID, TaskID: task.ID})
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// No double credit.
	after, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), after.Coins)
}

func TestClaimTaskNotAssigned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	user := seedUser(t, store, "100", 1000)
	task, err := store.CreateTask(ctx, Task{Category: TaskCategoryChallenge, Description: "Reach level 2", Reward: 500})
	require.NoError(t, err)

	_, err = engine.ClaimTask(ctx, ClaimRequest{UserID: user.ID, TaskID: task.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUserTasksMaterializesInviteTasks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, Rules{ReferralMilestone: 5})

	user := seedUser(t, store, "100", 0)

	reached, err := store.CreateTask(ctx, Task{Category: TaskCategoryInvite, Description: "Invite 3 friends", Reward: 300, RequiredInvites: 3})
	require.NoError(t, err)
	distant, err := store.CreateTask(ctx, Task{Category: TaskCategoryInvite, Description: "Invite 10 friends", Reward: 1000, RequiredInvites: 10})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.IncrementReferralCount(ctx, user.ID)
		require.NoError(t, err)
	}

	board, err := engine.ListUserTasks(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, reached.ID, board[0].TaskID)
	assert.False(t, board[0].Claimed)
	assert.Equal(t, int64(300), board[0].Task.Reward)

	// The unreached threshold stays off the board.
	for _, entry := range board {
		assert.NotEqual(t, distant.ID, entry.TaskID)
	}

	// Listing again does not duplicate the record, claiming still works.
	board, err = engine.ListUserTasks(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, board, 1)

	res, err := engine.ClaimTask(ctx, ClaimRequest{UserID: user.ID, TaskID: reached.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.User.Coins)

	board, err = engine.ListUserTasks(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.True(t, board[0].Claimed)
}
