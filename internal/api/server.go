package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coinrush/internal/cache"
	"coinrush/internal/config"
	"coinrush/internal/economy"
	"coinrush/internal/monitoring"
	"coinrush/internal/telegram"
	"coinrush/internal/token"
)

// VerifyFunc checks Telegram WebApp initData. Swapped out in tests.
type VerifyFunc func(initData, botToken string) (telegram.InitUser, bool)

// Notifier receives referral milestone events; the Telegram bot
// implements it when running.
type Notifier interface {
	ReferralMilestone(ctx context.Context, telegramID string, referralCount, freeSpins int64)
}

type Server struct {
	cfg     config.Config
	store   economy.Store
	engine  *economy.Engine
	catalog *cache.Catalog
	metrics *monitoring.Metrics
	tokens  *token.Issuer
	verify  VerifyFunc
	notify  Notifier
}

func NewServer(cfg config.Config, store economy.Store, engine *economy.Engine, catalog *cache.Catalog, metrics *monitoring.Metrics, tokens *token.Issuer) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		catalog: catalog,
		metrics: metrics,
		tokens:  tokens,
		verify:  telegram.VerifyInitData,
	}
}

func (s *Server) SetNotifier(n Notifier)   { s.notify = n }
func (s *Server) SetVerifier(v VerifyFunc) { s.verify = v }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.CORSOrigins))
	}
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(s.rateLimit)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth", s.handleAuth)

		// Catalog administration.
		r.Post("/cards", s.handleCreateCard)
		r.Post("/cards/all", s.handleCreateCardBatch)
		r.Get("/cards/{cardID}", s.handleGetCard)
		r.Put("/cards/{cardID}", s.handleUpdateCard)
		r.Delete("/cards/{cardID}", s.handleDeleteCard)
		r.Post("/tasks", s.handleCreateTask)
		r.Post("/tasks/batch", s.handleCreateTaskBatch)
		r.Get("/tasks", s.handleListTasks)

		// Player routes behind JWT auth.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/cards", s.handleListCards)
			r.Get("/cards/category/{category}", s.handleCardsByCategory)
			r.Post("/cards/purchase", s.handlePurchaseCard)
			r.Post("/cards/upgrade", s.handleUpgradeCard)
			r.Post("/tasks/claim", s.handleClaimTask)
			r.Get("/user/{userID}/tasks", s.handleUserTasks)
			r.Get("/profile/{userID}", s.handleGetProfile)
			r.Put("/profile/{userID}", s.handleUpdateProfile)
			r.Put("/balance/{userID}", s.handleUpdateBalance)
			r.Get("/users", s.handleListUsers)
			r.Get("/users/{userID}", s.handleReferredUsers)
			r.Post("/user/refill", s.handleRefillTaps)
		})
	})

	return r
}

func (s *Server) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOp(op, err)
	}
}
