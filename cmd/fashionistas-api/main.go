package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fashionistas/ticketing/internal/di"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/router"
	"github.com/fashionistas/ticketing/migrations"
	"github.com/fashionistas/ticketing/pkg/config"
	"github.com/fashionistas/ticketing/pkg/database"
	"github.com/fashionistas/ticketing/pkg/kafka"
	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/redis"
	"github.com/fashionistas/ticketing/pkg/telemetry"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:       logLevel(cfg),
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewPurchaseMetrics(tel.Meter())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	containerCfg := &di.ContainerConfig{
		Metrics:   metrics,
		Log:       log,
		Source:    cfg.App.Name,
		CacheTTL:  cfg.Redis.CacheTTL,
		Purchase:  cfg.Purchase,
		RateLimit: cfg.RateLimit,
	}

	if cfg.Database.Driver == config.DriverPostgres {
		if cfg.Database.AutoMigrate {
			if err := migrate(ctx, cfg.Database.DSN(), log); err != nil {
				return err
			}
		}
		db, err := database.NewPostgres(ctx, &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      5,
			RetryInterval:   2 * time.Second,
			Tracing:         cfg.OTel.Enabled,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		containerCfg.DB = db
		log.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))
	} else {
		log.Warn("using in-memory store; data is lost on restart")
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, &redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			Tracing:      cfg.OTel.Enabled,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		containerCfg.Redis = client
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr()))
	}

	if cfg.Kafka.Enabled {
		producerCfg := kafka.DefaultProducerConfig()
		producerCfg.Brokers = cfg.Kafka.Brokers
		producerCfg.ClientID = cfg.Kafka.ClientID
		producer, err := kafka.NewProducer(ctx, producerCfg)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		containerCfg.Producer = producer
		log.Info("connected to kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	if cfg.Stripe.Enabled {
		gateway, err := payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("init stripe: %w", err)
		}
		containerCfg.Gateway = gateway
	}

	container, err := di.NewContainer(ctx, containerCfg)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			log.Error("failed to release resources", zap.Error(err))
		}
	}()

	engine := router.New(container, &router.Config{
		ServiceName:    cfg.OTel.ServiceName,
		Release:        cfg.IsProduction(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWT:            &middleware.JWTConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer},
		RateLimit:      di.RateLimitConfig(cfg.RateLimit),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("payments", container.Gateway.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return container.ExpiryWorker.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("service stopped")
	return nil
}

func migrate(ctx context.Context, dsn string, log *logger.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := migrations.Up(ctx, db); err != nil {
		return err
	}
	version, err := migrations.Version(ctx, db)
	if err != nil {
		return err
	}
	log.Info("database migrated", zap.Int64("version", version))
	return nil
}
