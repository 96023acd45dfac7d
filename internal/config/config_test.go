package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/courts")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "inr", c.Currency)
	assert.Equal(t, "postgres", c.Ledger)
	assert.Equal(t, 10*time.Second, c.ProviderTimeout)
	assert.Equal(t, "@every 5m", c.CompleteCron)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": "", "DATABASE_URL": "x"}},
		{name: "postgres without url", env: map[string]string{"JWT_SECRET": "k", "DATABASE_URL": ""}},
		{name: "unknown ledger", env: map[string]string{"JWT_SECRET": "k", "LEDGER": "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("LEDGER", "postgres")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryLedgerNeedsNoDatabase(t *testing.T) {
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LEDGER", "memory")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Ledger)
}
