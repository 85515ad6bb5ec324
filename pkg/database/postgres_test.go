package database

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestConfig returns config for integration tests from TEST_POSTGRES_* variables
func getTestConfig() *PostgresConfig {
	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}
	return cfg
}

func requireIntegration(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
	db, err := NewPostgres(context.Background(), getTestConfig())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "fashionistas", cfg.Database)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.Tracing)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable",
		cfg.DSN(),
	)
}

func TestNewPostgres_InvalidConfig(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		User:           "invalid",
		Password:       "invalid",
		Database:       "invalid",
		SSLMode:        "disable",
		MaxRetries:     0,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	assert.Error(t, err)
}

func TestPostgresDB_PingWithoutPool(t *testing.T) {
	db := &PostgresDB{}
	assert.ErrorIs(t, db.Ping(context.Background()), ErrNotConnected)
	assert.False(t, db.IsConnected(context.Background()))
}

func TestNewPostgres_Integration(t *testing.T) {
	db := requireIntegration(t)
	ctx := context.Background()

	assert.NoError(t, db.Ping(ctx))
	assert.True(t, db.IsConnected(ctx))
	assert.NotNil(t, db.Pool())
	assert.NotNil(t, db.Stats())
	assert.NoError(t, db.HealthCheck(ctx))
}

func TestPostgresDB_ConditionalUpdate_Integration(t *testing.T) {
	db := requireIntegration(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx, "CREATE TABLE IF NOT EXISTS stock_probe (id INT PRIMARY KEY, qty INT NOT NULL CHECK (qty >= 0))"))
	t.Cleanup(func() { _ = db.Exec(context.Background(), "DROP TABLE IF EXISTS stock_probe") })
	require.NoError(t, db.Exec(ctx, "INSERT INTO stock_probe (id, qty) VALUES (1, 1)"))

	tag, err := db.ExecResult(ctx, "UPDATE stock_probe SET qty = qty - $1 WHERE id = 1 AND qty >= $1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag.RowsAffected())

	tag, err = db.ExecResult(ctx, "UPDATE stock_probe SET qty = qty - $1 WHERE id = 1 AND qty >= $1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tag.RowsAffected())
}

func TestWithTx_RollsBackOnError_Integration(t *testing.T) {
	db := requireIntegration(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx, "CREATE TABLE IF NOT EXISTS tx_probe (value INT)"))
	t.Cleanup(func() { _ = db.Exec(context.Background(), "DROP TABLE IF EXISTS tx_probe") })

	boom := errors.New("boom")
	err := WithTx(ctx, db.Pool(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO tx_probe (value) VALUES (42)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM tx_probe WHERE value = 42").Scan(&count))
	assert.Equal(t, 0, count)

	err = WithTx(ctx, db.Pool(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO tx_probe (value) VALUES (42)")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM tx_probe WHERE value = 42").Scan(&count))
	assert.Equal(t, 1, count)
}
