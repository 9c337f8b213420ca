package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "")
	t.Setenv("LOGIN_WINDOW_MINUTES", "")

	cfg, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, int64(24), cfg.JWTExpirationHours)
	assert.Empty(t, cfg.RedisAddrs)
	assert.Equal(t, int64(5), cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
}

func TestLoadAppConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")
	t.Setenv("REDIS_ADDR", "r1:6379, r2:6379,")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("LOGIN_WINDOW_MINUTES", "1")
	t.Setenv("INITIAL_ADMIN_PHONE", "+254700000000")

	cfg, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, int64(24), cfg.JWTExpirationHours)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.RedisAddrs)
	assert.Equal(t, int64(3), cfg.LoginMaxAttempts)
	assert.Equal(t, time.Minute, cfg.LoginWindow)
	assert.Equal(t, "+254700000000", cfg.InitialAdminPhone)
}

func TestLoadAppConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := LoadAppConfig()
	assert.Error(t, err)
}

func TestLoadDBConfig(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "pp")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "patapesa")
	t.Setenv("DB_SSLMODE", "")

	cfg, err := LoadDBConfig()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=pp password=pw dbname=patapesa sslmode=disable", cfg.DSN)

	t.Setenv("DB_HOST", "")
	_, err = LoadDBConfig()
	assert.Error(t, err)
}

func TestAutoMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, AutoMigrate(context.Background(), mock))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))
	assert.ErrorContains(t, AutoMigrate(context.Background(), mock), "unable to apply migrations")

	assert.NoError(t, mock.ExpectationsWereMet())
}
