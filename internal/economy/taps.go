package economy

import (
	"context"
	"math"
	"time"
)

type RefillRequest struct {
	UserID string `json:"userId"`
}

type RefillResult struct {
	User *User `json:"user"`
	// Applied is false when no time-based regeneration was due and the
	// stored state was left untouched.
	Applied  bool    `json:"applied"`
	Refilled float64 `json:"refilled"`
}

// ComputeRefill returns the tap allowance regenerated since lastRefill.
// A full allowance regenerates over one window, so the rate is
// maxTaps/window per second. The result is clamped to the remaining
// headroom and never negative; a clock that ran backwards counts as no
// elapsed time.
func ComputeRefill(taps float64, maxTaps int64, lastRefill, now time.Time, window time.Duration) float64 {
	elapsed := math.Floor(now.Sub(lastRefill).Seconds())
	if elapsed <= 0 {
		return 0
	}
	rate := float64(maxTaps) / window.Seconds()
	refill := elapsed * rate
	if room := float64(maxTaps) - taps; refill > room {
		refill = room
	}
	if refill < 0 {
		return 0
	}
	return refill
}

// RefillTaps applies time-based tap regeneration for one user. The new
// allowance and refill timestamp are persisted only when something was
// actually regenerated; otherwise the current state is reported as a
// no-op.
func (e *Engine) RefillTaps(ctx context.Context, req RefillRequest) (*RefillResult, error) {
	if req.UserID == "" {
		return nil, ErrInvalidInput
	}

	var res RefillResult
	err := e.store.Atomic(ctx, func(s Store) error {
		user, err := s.FindUserByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		now := e.now()
		refill := ComputeRefill(user.Taps, user.MaxTaps, user.LastRefillTime, now, e.rules.RefillWindow)
		if refill <= 0 {
			res = RefillResult{User: user}
			return nil
		}

		taps := math.Min(user.Taps+refill, float64(user.MaxTaps))
		updated, err := s.UpdateUser(ctx, user.ID, UserPatch{Taps: &taps, LastRefillTime: &now})
		if err != nil {
			return err
		}
		res = RefillResult{User: updated, Applied: true, Refilled: refill}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
