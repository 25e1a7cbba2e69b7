package api

import (
	"log"
	"net/http"
	"strconv"

	"coinrush/internal/economy"
)

type authRequest struct {
	InitData     string `json:"initData"`
	ReferralCode string `json:"referralCode"`
}

type authResponse struct {
	Token string        `json:"token"`
	User  *economy.User `json:"user"`
}

// handleAuth authenticates a Telegram WebApp session. First-time logins
// create the user and run the referral hook exactly once; repeat logins
// only refresh the username.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	tgUser, ok := s.verify(req.InitData, s.cfg.BotToken)
	if !ok {
		s.observe("auth", economy.ErrInvalidInput)
		s.respondError(w, r, unauthorized("invalid initData"))
		return
	}

	ctx := r.Context()
	user, created, err := s.store.UpsertUser(ctx, economy.NewUser{
		TelegramID: strconv.FormatInt(tgUser.ID, 10),
		Username:   tgUser.Username,
		ReferredBy: req.ReferralCode,
		Coins:      s.cfg.StartingCoins,
		MaxTaps:    s.cfg.MaxTaps,
	})
	if err != nil {
		s.observe("auth", err)
		s.respondError(w, r, err)
		return
	}

	if created && req.ReferralCode != "" {
		res, err := s.engine.ApplyReferral(ctx, req.ReferralCode, user.ID)
		s.observe("referral", err)
		if err != nil {
			// The signup itself stands; a broken referral edge only
			// costs the referrer the credit.
			log.Printf("api: apply referral %q -> %s: %v", req.ReferralCode, user.ID, err)
		} else if res.SpinGranted && s.notify != nil {
			s.notify.ReferralMilestone(ctx, req.ReferralCode, res.NewCount, res.Referrer.FreeSpins)
		}
	}

	tok, err := s.tokens.Issue(user.ID, user.TelegramID)
	if err != nil {
		s.observe("auth", err)
		s.respondError(w, r, err)
		return
	}
	s.observe("auth", nil)
	writeJSON(w, http.StatusOK, authResponse{Token: tok, User: user})
}
