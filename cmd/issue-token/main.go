package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/config"
	"github.com/dimitrije/teamtasks-api/internal/database"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: issue-token <user-id>")
		os.Exit(1)
	}

	userID := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var data []byte
	err = db.Pool.QueryRow(ctx, `
		SELECT data FROM documents WHERE collection = $1 AND id = $2
	`, store.Users, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Fatalf("No user document with id: %s", userID)
	}
	if err != nil {
		log.Fatalf("Failed to read user: %v", err)
	}

	user, err := models.DecodeUser(userID, data)
	if err != nil {
		log.Fatalf("Malformed user document: %v", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	token, err := tokens.GenerateAccessToken(auth.Principal{
		UID:         user.ID,
		DisplayName: user.DisplayName(),
		Email:       user.Email,
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
