package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-staff-records/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-staff-records/migrations"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfig{Level: os.Getenv("LOG_LEVEL"), Dev: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	if err := run(args[0], sugar); err != nil {
		sugar.Errorw("migrate failed", "command", args[0], "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
}

func run(command string, sugar *zap.SugaredLogger) error {
	db, err := database.Open(database.Config{DSN: os.Getenv("DATABASE_URL")})
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		if err := goose.Up(db.DB, "."); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		sugar.Info("migrations applied")
	case "down":
		if err := goose.Down(db.DB, "."); err != nil {
			return fmt.Errorf("roll back migration: %w", err)
		}
		sugar.Info("last migration rolled back")
	case "status":
		return goose.Status(db.DB, ".")
	case "seed-admin":
		email, password := os.Getenv("SEED_ADMIN_EMAIL"), os.Getenv("SEED_ADMIN_PASSWORD")
		if email == "" || password == "" {
			return errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := user.NewUserService(userrepo.NewUserRepo(db), nil)
		in := user.CreateInput{Name: "Super Admin", Email: email, Password: password, Role: entity.RoleSuperAdmin}
		if err := in.Validate(); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		u, err := svc.Create(ctx, in)
		if errors.Is(err, user.ErrDuplicateEmail) {
			sugar.Infow("admin already exists", "email", email)
			return nil
		}
		if err != nil {
			return err
		}
		sugar.Infow("admin created", "id", u.ID, "email", u.Email)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func usage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("commands:")
	fmt.Println("  up          apply all pending migrations")
	fmt.Println("  down        roll back the last migration")
	fmt.Println("  status      print migration status")
	fmt.Println("  seed-admin  create the super_admin from SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD")
}
