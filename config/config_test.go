package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/quiz")
	t.Setenv("IDENTITY_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RoundDuration)
	assert.Equal(t, 8*time.Second, cfg.BetweenRoundDuration)
	assert.Equal(t, 15*time.Second, cfg.ExtendIncrement)
	assert.Equal(t, 60*time.Second, cfg.HostGracePeriod)
	assert.Equal(t, 100, cfg.BasePoints)
	assert.Equal(t, 900, cfg.MaxTimeBonus)
	assert.Equal(t, 7*24*time.Hour, cfg.IdentityMaxAge)
	assert.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/quiz")
	t.Setenv("IDENTITY_KEY", "secret")
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROUND_DURATION", "45s")
	t.Setenv("BASE_POINTS", "250")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.RoundDuration)
	assert.Equal(t, 250, cfg.BasePoints)
	assert.True(t, cfg.Debug)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/quiz")
	t.Setenv("IDENTITY_KEY", "secret")
	t.Setenv("ROUND_DURATION", "not a duration")
	t.Setenv("BASE_POINTS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.RoundDuration)
	assert.Equal(t, 100, cfg.BasePoints)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("IDENTITY_KEY", "secret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("POSTGRES_URL", "postgres://localhost/quiz")
	t.Setenv("IDENTITY_KEY", "")
	_, err = Load()
	assert.Error(t, err)
}
