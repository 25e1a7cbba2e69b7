package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinrush/internal/economy"
)

func validateCard(c economy.Card) error {
	switch {
	case c.Name == "":
		return badRequest("card name is required")
	case c.MaxLevel < 1:
		return badRequest("maxLevel must be at least 1")
	case c.BaseCost < 0 || c.BaseProfit < 0:
		return badRequest("baseCost and baseProfit must be non-negative")
	case c.CostIncrease < 1 || c.ProfitIncrease < 1:
		return badRequest("costIncrease and profitIncrease must be >= 1")
	}
	return nil
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var card economy.Card
	if err := decodeJSON(r, &card); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := validateCard(card); err != nil {
		s.respondError(w, r, err)
		return
	}

	created, err := s.store.CreateCard(r.Context(), card)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.catalog.Invalidate(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

type cardBatchRequest struct {
	Cards []economy.Card `json:"cards"`
}

func (s *Server) handleCreateCardBatch(w http.ResponseWriter, r *http.Request) {
	var req cardBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Cards) == 0 {
		s.respondError(w, r, badRequest("'cards' should be a non-empty array"))
		return
	}
	for _, c := range req.Cards {
		if err := validateCard(c); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	created := make([]economy.Card, 0, len(req.Cards))
	for _, c := range req.Cards {
		out, err := s.store.CreateCard(r.Context(), c)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		created = append(created, *out)
	}
	s.catalog.Invalidate(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.store.FindCard(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if card == nil {
		s.respondError(w, r, notFound("card not found"))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Name           *string  `json:"name"`
		Category       *string  `json:"category"`
		BaseProfit     *int64   `json:"baseProfit"`
		ProfitIncrease *float64 `json:"profitIncrease"`
		MaxLevel       *int     `json:"maxLevel"`
		BaseCost       *int64   `json:"baseCost"`
		CostIncrease   *float64 `json:"costIncrease"`
		Requires       *string  `json:"requires"`
		ImagePath      *string  `json:"imagePath"`
		CoinIcon       *string  `json:"coinIcon"`
	}
	if err := decodeJSON(r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}

	card, err := s.store.UpdateCard(r.Context(), chi.URLParam(r, "cardID"), economy.CardPatch{
		Name:           patch.Name,
		Category:       patch.Category,
		BaseProfit:     patch.BaseProfit,
		ProfitIncrease: patch.ProfitIncrease,
		MaxLevel:       patch.MaxLevel,
		BaseCost:       patch.BaseCost,
		CostIncrease:   patch.CostIncrease,
		Requires:       patch.Requires,
		ImagePath:      patch.ImagePath,
		CoinIcon:       patch.CoinIcon,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if card == nil {
		s.respondError(w, r, notFound("card not found"))
		return
	}
	s.catalog.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCard(r.Context(), chi.URLParam(r, "cardID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.catalog.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// catalogCards reads the card catalog through the Redis cache.
func (s *Server) catalogCards(ctx context.Context, category string) ([]economy.Card, error) {
	if cards, ok := s.catalog.Get(ctx, category); ok {
		return cards, nil
	}
	cards, err := s.store.ListCards(ctx, category)
	if err != nil {
		return nil, err
	}
	s.catalog.Put(ctx, category, cards)
	return cards, nil
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.catalogCards(r.Context(), "")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// handleCardsByCategory lists one category decorated with the caller's
// owned levels. The user comes from the optional userId query param
// (an internal id) or, absent that, the session token.
func (s *Server) handleCardsByCategory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		if claims := ClaimsFrom(r.Context()); claims != nil {
			userID = claims.UserID
		}
	}

	cards, err := s.catalogCards(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	states, err := s.engine.DecorateCards(r.Context(), userID, cards)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handlePurchaseCard(w http.ResponseWriter, r *http.Request) {
	var req economy.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.engine.PurchaseCard(r.Context(), req)
	s.observe("purchase", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "card purchased successfully",
		"card":    res.Card,
		"user":    res.User,
	})
}

func (s *Server) handleUpgradeCard(w http.ResponseWriter, r *http.Request) {
	var req economy.UpgradeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.engine.UpgradeCard(r.Context(), req)
	s.observe("upgrade", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "card upgraded successfully",
		"card":    res.Card,
		"user":    res.User,
	})
}
