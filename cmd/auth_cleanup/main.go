package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"authgate/internal/database"
	"authgate/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, time.Now())
	if err != nil {
		slog.Error("cleanup refresh token records failed", "error", err)
		os.Exit(1)
	}

	slog.Info("auth cleanup completed", "refresh_token_records", removed)
}
