package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"authgate/internal/database"
	"authgate/internal/domain"
	"authgate/internal/pkg/password"
	"authgate/internal/repository"
)

type seedUser struct {
	email    string
	password string
	nickname string
	role     domain.UserRole
	name     string
	lastname string
	active   bool
	deleted  bool
}

// Пользователи для локальной разработки: покрывают все ветки Login.
var users = []seedUser{
	{email: "admin@authgate.local", password: "admin123", nickname: "admin", role: domain.RoleAdmin, name: "Admin", active: true},
	{email: "test@authgate.local", password: "testtest", nickname: "johndoe", role: domain.RoleUser, name: "John", lastname: "Doe", active: true},
	{email: "inactive@authgate.local", password: "testtest", nickname: "inactive", role: domain.RoleUser, name: "Jane", lastname: "Doe"},
	{email: "deleted@authgate.local", password: "testtest", nickname: "deleted", role: domain.RoleUser, name: "Max", lastname: "Power", active: true, deleted: true},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "authgate.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		slog.Error("db connection failed", "error", err)
		os.Exit(1)
	}

	slog.Info("running AutoMigrate")
	if err := repository.AutoMigrate(db); err != nil {
		slog.Error("AutoMigrate failed", "error", err)
		os.Exit(1)
	}

	hasher, err := password.NewHasher(0)
	if err != nil {
		slog.Error("hasher init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := repository.NewUserRepository(db)
	created := 0
	for _, su := range users {
		ok, err := seed(ctx, repo, hasher, su)
		if err != nil {
			slog.Error("seed user failed", "email", su.email, "error", err)
			os.Exit(1)
		}
		if ok {
			created++
			slog.Info("user created", "email", su.email, "password", su.password, "active", su.active, "deleted", su.deleted)
		}
	}

	slog.Info("seed completed", "created", created, "skipped", len(users)-created)
}

// seed creates su unless a user with that email (live or soft-deleted) exists.
func seed(ctx context.Context, repo *repository.UserRepository, hasher *password.Hasher, su seedUser) (bool, error) {
	lookup := repo.GetByEmail
	if su.deleted {
		lookup = repo.GetDeletedByEmail
	}
	if _, err := lookup(ctx, su.email); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	digest, err := hasher.Hash(ctx, su.password)
	if err != nil {
		return false, err
	}

	u := &domain.User{
		Email:        su.email,
		PasswordHash: digest,
		Role:         su.role,
		Nickname:     su.nickname,
		Name:         su.name,
		Lastname:     su.lastname,
		Lang:         "en",
		Active:       su.active,
	}
	if err := repo.Create(ctx, u, nil); err != nil {
		return false, err
	}
	if su.deleted {
		if err := repo.SoftDelete(ctx, u.ID); err != nil {
			return false, err
		}
	}
	return true, nil
}
