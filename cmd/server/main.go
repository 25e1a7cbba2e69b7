package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coinrush/internal/api"
	"coinrush/internal/cache"
	"coinrush/internal/config"
	"coinrush/internal/db"
	"coinrush/internal/economy"
	"coinrush/internal/monitoring"
	"coinrush/internal/tgbot"
	"coinrush/internal/token"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var catalog *cache.Catalog
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, card catalog served uncached: %v", err)
		} else {
			catalog = cache.NewCatalog(rdb, cfg.CatalogCacheTTL)
			defer rdb.Close()
		}
	}

	store := database.Store()
	engine := economy.New(store, economy.Rules{
		RefillWindow:      cfg.RefillWindow,
		ReferralMilestone: cfg.ReferralMilestone,
	})

	metrics := monitoring.New()
	tokens := token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	server := api.NewServer(cfg, store, engine, catalog, metrics, tokens)

	if cfg.RunBot && cfg.BotToken != "" {
		bot, err := tgbot.New(cfg, store)
		if err != nil {
			log.Printf("bot disabled: %v", err)
		} else {
			bot.StartPolling(ctx)
			server.SetNotifier(bot)
			log.Printf("bot polling as @%s", bot.Bot.Self.UserName)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
		os.Exit(1)
	}
}
