package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpigw/pkg/ocpi"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.AdminToken)

	ref, err := cfg.PartyRef()
	require.NoError(t, err)
	assert.Equal(t, "DE*OGW/CPO", ref.String())

	version, err := cfg.Version()
	require.NoError(t, err)
	assert.Equal(t, ocpi.V221, version)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OCPIGW_ADDR", ":9090")
	t.Setenv("OCPIGW_BASE_URL", "https://ocpi.example.com/")
	t.Setenv("OCPIGW_COUNTRY_CODE", "nl")
	t.Setenv("OCPIGW_PARTY_ID", "xyz")
	t.Setenv("OCPIGW_ROLE", "emsp")
	t.Setenv("OCPIGW_HTTP_TIMEOUT", "3s")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://ocpi.example.com", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)

	ref, err := cfg.PartyRef()
	require.NoError(t, err)
	assert.Equal(t, "NL*XYZ/EMSP", ref.String())
}

func TestInvalidIdentityIsRejected(t *testing.T) {
	t.Setenv("OCPIGW_COUNTRY_CODE", "GERMANY")
	cfg := Load()
	_, err := cfg.PartyRef()
	assert.Error(t, err)

	t.Setenv("OCPIGW_PREFERRED_VERSION", "1.0")
	cfg = Load()
	_, err = cfg.Version()
	assert.Error(t, err)
}
