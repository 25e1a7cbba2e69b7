package economy

import "context"

// AdjustBalance applies a signed coin delta. The balance is not allowed
// to go negative.
func (e *Engine) AdjustBalance(ctx context.Context, userID string, delta int64) (*User, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	var out *User
	err := e.store.Atomic(ctx, func(s Store) error {
		user, err := s.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}
		coins := user.Coins + delta
		if coins < 0 {
			return ErrInsufficientFunds
		}
		out, err = s.UpdateUser(ctx, user.ID, UserPatch{Coins: &coins})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecorateCards attaches one user's ownership levels to a catalog slice.
// An empty userID decorates everything at level 0.
func (e *Engine) DecorateCards(ctx context.Context, userID string, cards []Card) ([]CardState, error) {
	levels := map[string]int{}
	if userID != "" {
		purchases, err := e.store.ListCardPurchases(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, p := range purchases {
			levels[p.CardID] = p.Level
		}
	}
	out := make([]CardState, 0, len(cards))
	for _, c := range cards {
		out = append(out, decorate(c, levels[c.ID]))
	}
	return out, nil
}
