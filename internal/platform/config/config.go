// Package config loads process configuration from the environment via viper
// so main stays lean. Every knob has a development default; production
// deployments override through OCPIGW_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ocpigw/pkg/ocpi"
)

// Config captures everything the server process needs to boot.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string
	// BaseURL is this node's externally reachable root, used to build the
	// versions and endpoint URLs we advertise to peers.
	BaseURL string

	// Party identity presented during registration.
	CountryCode     string
	PartyID         string
	Role            string
	BusinessName    string
	BusinessWebsite string

	// PreferredVersion is the OCPI version this node pins during
	// registration. Exact match only.
	PreferredVersion string

	// HTTPTimeout bounds each outbound discovery or credentials call.
	HTTPTimeout time.Duration

	// RedisURL enables the registry snapshot hook when non-empty.
	RedisURL string

	// SeedFile optionally points at a JSON file of pre-shared parties
	// loaded at boot (manual trust bootstrap).
	SeedFile string

	// AdminToken guards the operator endpoints. Empty disables them.
	AdminToken string
}

// Load reads configuration from the environment.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("OCPIGW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("COUNTRY_CODE", "DE")
	v.SetDefault("PARTY_ID", "OGW")
	v.SetDefault("ROLE", "CPO")
	v.SetDefault("BUSINESS_NAME", "OCPI Gateway")
	v.SetDefault("BUSINESS_WEBSITE", "")
	v.SetDefault("PREFERRED_VERSION", "2.2.1")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SEED_FILE", "")
	v.SetDefault("ADMIN_TOKEN", "")

	return Config{
		Addr:             v.GetString("ADDR"),
		BaseURL:          strings.TrimRight(v.GetString("BASE_URL"), "/"),
		CountryCode:      v.GetString("COUNTRY_CODE"),
		PartyID:          v.GetString("PARTY_ID"),
		Role:             v.GetString("ROLE"),
		BusinessName:     v.GetString("BUSINESS_NAME"),
		BusinessWebsite:  v.GetString("BUSINESS_WEBSITE"),
		PreferredVersion: v.GetString("PREFERRED_VERSION"),
		HTTPTimeout:      v.GetDuration("HTTP_TIMEOUT"),
		RedisURL:         v.GetString("REDIS_URL"),
		SeedFile:         v.GetString("SEED_FILE"),
		AdminToken:       v.GetString("ADMIN_TOKEN"),
	}
}

// PartyRef parses the configured identity triple.
func (c Config) PartyRef() (ocpi.PartyRef, error) {
	ref, err := ocpi.NewPartyRef(c.CountryCode, c.PartyID, c.Role)
	if err != nil {
		return ocpi.PartyRef{}, fmt.Errorf("invalid party identity in config: %w", err)
	}
	return ref, nil
}

// Version parses the configured preferred version.
func (c Config) Version() (ocpi.VersionID, error) {
	version, err := ocpi.ParseVersionID(c.PreferredVersion)
	if err != nil {
		return "", fmt.Errorf("invalid preferred version in config: %w", err)
	}
	return version, nil
}
