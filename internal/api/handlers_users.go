package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinrush/internal/economy"
)

// resolveUser turns the telegram id used in the public routes into the
// stored user.
func (s *Server) resolveUser(r *http.Request, telegramID string) (*economy.User, error) {
	if telegramID == "" {
		return nil, badRequest("user id required")
	}
	user, err := s.store.FindUserByTelegramID(r.Context(), telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user not found")
	}
	return user, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileUpdateRequest struct {
	Username      *string  `json:"username"`
	Coins         *int64   `json:"coins"`
	ProfitPerHour *int64   `json:"profitPerHour"`
	Taps          *float64 `json:"taps"`
	MaxTaps       *int64   `json:"maxTaps"`
	FreeSpins     *int64   `json:"freeSpins"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Username == nil && req.Coins == nil && req.ProfitPerHour == nil &&
		req.Taps == nil && req.MaxTaps == nil && req.FreeSpins == nil {
		s.respondError(w, r, badRequest("no fields provided for update"))
		return
	}

	updated, err := s.store.UpdateUser(r.Context(), user.ID, economy.UserPatch{
		Username:      req.Username,
		Coins:         req.Coins,
		ProfitPerHour: req.ProfitPerHour,
		Taps:          req.Taps,
		MaxTaps:       req.MaxTaps,
		FreeSpins:     req.FreeSpins,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type balanceRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	updated, err := s.engine.AdjustBalance(r.Context(), user.ID, req.Amount)
	s.observe("balance", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    updated.ID,
		"coins": updated.Coins,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleReferredUsers(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r, chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	referred, err := s.engine.ReferredUsers(r.Context(), user.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"referredUsers": referred})
}

type refillRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleRefillTaps(w http.ResponseWriter, r *http.Request) {
	var req refillRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	user, err := s.resolveUser(r, req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.engine.RefillTaps(r.Context(), economy.RefillRequest{UserID: user.ID})
	s.observe("refill", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	msg := "no refill needed"
	if res.Applied {
		msg = "taps refilled successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  msg,
		"applied":  res.Applied,
		"refilled": res.Refilled,
		"user":     res.User,
	})
}
