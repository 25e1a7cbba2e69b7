package economy

import "context"

type PurchaseRequest struct {
	UserID string `json:"userId"`
	CardID string `json:"cardId"`
}

type UpgradeRequest struct {
	UserID string `json:"userId"`
	CardID string `json:"cardId"`
}

// CardState is a catalog entry decorated with one user's ownership.
// Level 0 means unowned; NextCost is then the initial purchase price.
type CardState struct {
	Card
	Level             int   `json:"level"`
	NextCost          int64 `json:"nextCost"`
	ProfitPerHour     int64 `json:"profitPerHour"`
	NextProfitPerHour int64 `json:"nextProfitPerHour"`
	Owned             bool  `json:"userPurchased"`
}

type CardResult struct {
	Card CardState `json:"card"`
	User *User     `json:"user"`
}

func decorate(c Card, level int) CardState {
	return CardState{
		Card:              c,
		Level:             level,
		NextCost:          CostAtLevel(c, level),
		ProfitPerHour:     ProfitAtLevel(c, level),
		NextProfitPerHour: ProfitAtLevel(c, level+1),
		Owned:             level > 0,
	}
}

// PurchaseCard moves a card from unowned to owned at level 1, debiting
// the base cost and adding the card's base profit to the user's hourly
// rate. All preconditions are checked before any write.
func (e *Engine) PurchaseCard(ctx context.Context, req PurchaseRequest) (*CardResult, error) {
	if req.UserID == "" || req.CardID == "" {
		return nil, ErrInvalidInput
	}

	var res CardResult
	err := e.store.Atomic(ctx, func(s Store) error {
		card, err := s.FindCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrNotFound
		}

		owned, err := s.FindCardPurchase(ctx, req.UserID, req.CardID)
		if err != nil {
			return err
		}
		if owned != nil {
			return ErrAlreadyOwned
		}

		user, err := s.FindUserByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		cost := CostAtLevel(*card, 0)
		if user.Coins < cost {
			return ErrInsufficientFunds
		}

		coins := user.Coins - cost
		profit := user.ProfitPerHour + ProfitAtLevel(*card, 0)
		updated, err := s.UpdateUser(ctx, user.ID, UserPatch{Coins: &coins, ProfitPerHour: &profit})
		if err != nil {
			return err
		}
		purchase, err := s.CreateCardPurchase(ctx, user.ID, card.ID, 1)
		if err != nil {
			return err
		}

		res = CardResult{Card: decorate(*card, purchase.Level), User: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpgradeCard raises an owned card one level, debiting the cost of the
// current level step.
func (e *Engine) UpgradeCard(ctx context.Context, req UpgradeRequest) (*CardResult, error) {
	if req.UserID == "" || req.CardID == "" {
		return nil, ErrInvalidInput
	}

	var res CardResult
	err := e.store.Atomic(ctx, func(s Store) error {
		card, err := s.FindCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrNotFound
		}

		owned, err := s.FindCardPurchase(ctx, req.UserID, req.CardID)
		if err != nil {
			return err
		}
		if owned == nil {
			return ErrNotFound
		}
		if owned.Level >= card.MaxLevel {
			return ErrMaxLevel
		}

		user, err := s.FindUserByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		next := owned.Level + 1
		cost := CostAtLevel(*card, owned.Level)
		if user.Coins < cost {
			return ErrInsufficientFunds
		}

		delta := ProfitAtLevel(*card, next)
		if e.rules.RebaseProfitOnUpgrade {
			// Replace this card's previous contribution instead of
			// stacking the new one on top of it.
			delta = ProfitAtLevel(*card, owned.Level) - ProfitAtLevel(*card, owned.Level-1)
		}

		coins := user.Coins - cost
		profit := user.ProfitPerHour + delta
		updated, err := s.UpdateUser(ctx, user.ID, UserPatch{Coins: &coins, ProfitPerHour: &profit})
		if err != nil {
			return err
		}
		if err := s.UpdateCardPurchaseLevel(ctx, owned.ID, next); err != nil {
			return err
		}

		res = CardResult{Card: decorate(*card, next), User: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListCards returns the catalog (optionally one category) decorated with
// the user's owned levels and next cost/profit figures. An empty userID
// yields the bare catalog at level 0.
func (e *Engine) ListCards(ctx context.Context, userID, category string) ([]CardState, error) {
	cards, err := e.store.ListCards(ctx, category)
	if err != nil {
		return nil, err
	}
	return e.DecorateCards(ctx, userID, cards)
}
