package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/config"
	"github.com/Raivel16/gestor-tareas/internal/db"
	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/logger"
	"github.com/Raivel16/gestor-tareas/internal/repository"
	"github.com/Raivel16/gestor-tareas/internal/service"
)

// Creates (or logs in) a demo account, seeds its board when empty and
// prints a bearer token for manual API calls.
func main() {
	email := flag.String("email", "demo@example.com", "account email")
	password := flag.String("password", "demo123", "account password")
	seed := flag.Bool("seed", true, "add sample tasks when the board is empty")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Options{Level: cfg.Log.Level})
	defer logger.Sync()

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	taskRepo := repository.NewTaskRepository(pool)
	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	auth := service.NewAuthService(repository.NewUserRepository(pool), service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), audit)
	tasks := service.NewTaskService(taskRepo, nil, nil, audit)

	ctx := context.Background()
	meta := service.RequestMeta{IP: "127.0.0.1", UserAgent: "create_test_user"}

	u, token, err := auth.Register(ctx, service.RegisterInput{
		FullName:        "Demo Student",
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *password,
	}, meta)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		u, token, err = auth.Login(ctx, *email, *password, meta)
		if err != nil {
			logger.Fatal("login failed", "email", *email, "error", err)
		}
		logger.Info("user already exists", "id", u.ID)
	case err != nil:
		logger.Fatal("register failed", "email", *email, "error", err)
	default:
		logger.Info("user created", "id", u.ID)
	}

	if *seed {
		seedBoard(ctx, tasks, u.ID)
	}

	fmt.Printf("user_id=%d\ntoken=%s\n", u.ID, token)
}

func seedBoard(ctx context.Context, tasks *service.TaskService, ownerID int64) {
	existing, err := tasks.List(ctx, ownerID)
	if err != nil {
		logger.Fatal("list tasks", "error", err)
	}
	if len(existing) > 0 {
		logger.Info("board already has tasks", "count", len(existing))
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	in := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}

	samples := []struct {
		input  domain.TaskInput
		column domain.Column
	}{
		{domain.TaskInput{Title: "Calculus problem set", Description: "Chapter 4, exercises 1-20", DueDate: in(2), Priority: domain.PriorityHigh, Tag: "MATH101"}, domain.ColumnTodo},
		{domain.TaskInput{Title: "Read chapters 5 and 6", DueDate: in(7), Priority: domain.PriorityLow, Tag: "LIT200"}, domain.ColumnTodo},
		{domain.TaskInput{Title: "Lab report", Description: "Titration results", DueDate: in(4), Priority: domain.PriorityMedium, Tag: "CHEM110"}, domain.ColumnTodo},
		{domain.TaskInput{Title: "Group project outline", Priority: domain.PriorityMedium}, domain.ColumnInProgress},
		{domain.TaskInput{Title: "Register for finals", Priority: domain.PriorityLow}, domain.ColumnDone},
	}
	for _, s := range samples {
		t, err := tasks.Create(ctx, ownerID, s.input, s.column, nil)
		if err != nil {
			logger.Fatal("seed task", "title", s.input.Title, "error", err)
		}
		logger.Info("seeded task", "id", t.ID, "column", t.Column, "position", t.Position)
	}
}
