package economy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRefill(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	tests := []struct {
		name    string
		taps    float64
		maxTaps int64
		elapsed time.Duration
		want    float64
	}{
		{"half window refills half", 50, 100, 30 * time.Minute, 50},
		{"full window refills to max", 0, 100, time.Hour, 100},
		{"overlong elapsed clamps to headroom", 80, 100, 2 * time.Hour, 20},
		{"already full", 100, 100, time.Hour, 0},
		{"no time passed", 50, 100, 0, 0},
		{"clock went backwards", 50, 100, -time.Minute, 0},
		{"sub-second elapsed floors to zero", 50, 100, 900 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRefill(tt.taps, tt.maxTaps, base, base.Add(tt.elapsed), window)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRefillTaps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base.Add(30 * time.Minute)
	engine := New(store, Rules{RefillWindow: time.Hour}).WithClock(func() time.Time { return now })

	user := seedUser(t, store, "100", 0)
	taps := 200.0
	maxTaps := int64(1000)
	_, err := store.UpdateUser(ctx, user.ID, UserPatch{Taps: &taps, MaxTaps: &maxTaps, LastRefillTime: &base})
	require.NoError(t, err)

	res, err := engine.RefillTaps(ctx, RefillRequest{UserID: user.ID})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.InDelta(t, 500, res.Refilled, 1e-6)
	assert.InDelta(t, 700, res.User.Taps, 1e-6)
	assert.Equal(t, now, res.User.LastRefillTime)
}

func TestRefillTapsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine := New(store, Rules{RefillWindow: time.Hour}).WithClock(func() time.Time { return base })

	user := seedUser(t, store, "100", 0)
	taps := 200.0
	_, err := store.UpdateUser(ctx, user.ID, UserPatch{Taps: &taps, LastRefillTime: &base})
	require.NoError(t, err)

	res, err := engine.RefillTaps(ctx, RefillRequest{UserID: user.ID})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Zero(t, res.Refilled)

	// Untouched: the stored refill timestamp did not move.
	after, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, base, after.LastRefillTime)
	assert.InDelta(t, 200, after.Taps, 1e-6)
}

func TestRefillTapsUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	engine := New(store, DefaultRules())

	_, err := engine.RefillTaps(context.Background(), RefillRequest{UserID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}
