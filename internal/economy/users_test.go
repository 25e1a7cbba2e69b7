package economy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	user := seedUser(t, store, "100", 1000)

	updated, err := engine.AdjustBalance(ctx, user.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), updated.Coins)

	updated, err = engine.AdjustBalance(ctx, user.ID, -1250)
	require.NoError(t, err)
	assert.Zero(t, updated.Coins)
}

func TestAdjustBalanceRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	user := seedUser(t, store, "100", 100)

	_, err := engine.AdjustBalance(ctx, user.ID, -101)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	after, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after.Coins)
}
