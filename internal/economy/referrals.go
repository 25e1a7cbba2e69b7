package economy

import "context"

type ReferralResult struct {
	// Applied is false when the referral code did not resolve to a user
	// (stale or invalid codes are skipped silently).
	Applied     bool  `json:"applied"`
	Referrer    *User `json:"referrer,omitempty"`
	NewCount    int64 `json:"newCount"`
	SpinGranted bool  `json:"spinGranted"`
}

// ApplyReferral is the post-registration hook. It runs once per
// successful first-time registration that carried a referral code:
// the caller gates on "user was just created", this hook records the
// edge, bumps the referrer's counter and grants one free spin at each
// exact milestone multiple.
func (e *Engine) ApplyReferral(ctx context.Context, referrerTelegramID, referredUserID string) (*ReferralResult, error) {
	if referredUserID == "" {
		return nil, ErrInvalidInput
	}
	if referrerTelegramID == "" {
		return &ReferralResult{}, nil
	}

	var res ReferralResult
	err := e.store.Atomic(ctx, func(s Store) error {
		referrer, err := s.FindUserByTelegramID(ctx, referrerTelegramID)
		if err != nil {
			return err
		}
		if referrer == nil || referrer.ID == referredUserID {
			return nil
		}

		if err := s.CreateReferral(ctx, referrer.ID, referredUserID); err != nil {
			return err
		}
		count, err := s.IncrementReferralCount(ctx, referrer.ID)
		if err != nil {
			return err
		}

		res.Applied = true
		res.NewCount = count
		if count%e.rules.ReferralMilestone == 0 {
			if err := s.IncrementFreeSpins(ctx, referrer.ID, 1); err != nil {
				return err
			}
			res.SpinGranted = true
		}

		updated, err := s.FindUserByID(ctx, referrer.ID)
		if err != nil {
			return err
		}
		res.Referrer = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ReferredUsers resolves the users a referrer brought in.
func (e *Engine) ReferredUsers(ctx context.Context, referrerID string) ([]User, error) {
	refs, err := e.store.ListReferralsByUser(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(refs))
	for _, r := range refs {
		u, err := e.store.FindUserByID(ctx, r.ReferredID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}
