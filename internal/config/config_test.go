package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(1000), cfg.MaxTaps)
	assert.Equal(t, time.Hour, cfg.RefillWindow)
	assert.Equal(t, int64(5), cfg.ReferralMilestone)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.RunBot)
	assert.Nil(t, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_TAPS", "2500")
	t.Setenv("REFILL_WINDOW_SEC", "1800")
	t.Setenv("RUN_BOT", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(2500), cfg.MaxTaps)
	assert.Equal(t, 30*time.Minute, cfg.RefillWindow)
	assert.True(t, cfg.RunBot)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEnvParsersIgnoreGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	t.Setenv("SOME_BOOL", "not-a-bool")

	assert.Equal(t, int64(7), envInt64("SOME_INT", 7))
	assert.True(t, envBool("SOME_BOOL", true))
}
