package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/fashionistas/ticketing/migrations"
	"github.com/fashionistas/ticketing/pkg/config"
	"github.com/fashionistas/ticketing/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const usage = "usage: migrate [up|down|status|version]"

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name + "-migrate",
		Environment: cfg.App.Environment,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal("migrations require the postgres driver", zap.String("driver", cfg.Database.Driver))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to reach database", zap.Error(err))
	}

	switch command {
	case "up":
		err = migrations.Up(ctx, db)
	case "down":
		err = migrations.Down(ctx, db)
	case "status":
		err = migrations.Status(ctx, db)
	case "version":
		var version int64
		version, err = migrations.Version(ctx, db)
		if err == nil {
			fmt.Println(version)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}

	log.Info("migration complete", zap.String("command", command))
}
