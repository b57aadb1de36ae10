package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/config"
	"github.com/dimitrije/teamtasks-api/internal/dashboard"
	"github.com/dimitrije/teamtasks-api/internal/database"
	"github.com/dimitrije/teamtasks-api/internal/handlers"
	"github.com/dimitrije/teamtasks-api/internal/logger"
	authmw "github.com/dimitrije/teamtasks-api/internal/middleware"
	"github.com/dimitrije/teamtasks-api/internal/oauth"
	"github.com/dimitrije/teamtasks-api/internal/sse"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/dimitrije/teamtasks-api/internal/store/memory"
	"github.com/dimitrije/teamtasks-api/internal/view"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore := openStore(ctx, cfg, logr)
	defer closeStore()

	hub := sse.NewHub()
	go hub.Run(ctx)

	boards := dashboard.NewRegistry(ctx, st, dashboard.Options{
		WriteTimeout: cfg.WriteTimeout,
		Log:          logr,
	}, func(userID string, v view.View) {
		if !hub.Publish(userID, sse.ViewEvent, handlers.ToViewResponse(v)) {
			logr.Warnw("view event dropped", "user", userID)
		}
	})

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	accounts := oauth.NewAccounts(st)

	authHandler := handlers.NewAuthHandler(cfg, accounts, tokens, boards)
	dashboardHandler := handlers.NewDashboardHandler(boards)
	sseHandler := handlers.NewSSEHandler(hub, boards)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Get("/:provider/consent", authHandler.GetConsentURL)
	authGroup.Get("/:provider/callback", authHandler.Callback)
	authGroup.Post("/exchange", authHandler.ExchangeCode)

	protected := api.Group("")
	protected.Use(authmw.Auth(tokens))

	protected.Post("/auth/logout", authHandler.Logout)

	protected.Get("/view", dashboardHandler.GetView)
	protected.Put("/view/search", dashboardHandler.SetSearch)
	protected.Get("/users", dashboardHandler.ListUsers)

	protected.Post("/teams", dashboardHandler.CreateTeam)
	protected.Post("/teams/repair", dashboardHandler.RepairTeam)

	protected.Post("/tasks", dashboardHandler.CreateTask)
	protected.Post("/tasks/:id/status", dashboardHandler.ToggleStatus)
	protected.Post("/tasks/:id/assignees/:userId", dashboardHandler.ToggleAssignment)

	protected.Get("/events", sseHandler.Connect)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]any{"status": "ok", "dashboards": boards.Active()})
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logr.Infow("server starting", "addr", addr, "store", cfg.Store)
		if err := app.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Infow("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := boards.Close(shutdownCtx); err != nil {
		logr.Warnw("dashboards did not close cleanly", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.SugaredLogger) (store.Store, func()) {
	if cfg.Store == config.StoreMemory {
		logr.Warnw("using in-memory store, data is lost on restart")
		return memory.New(), func() {}
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		log.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewDocumentStore(db, logr), db.Close
}
