package party

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ocpigw/pkg/ocpi"
)

// SeedEntry is one pre-shared party in the bootstrap file. LocalToken is the
// registration token we hand the peer out of band; RemoteToken and
// VersionsURL are set when the peer gave us its bootstrap data instead, so
// that an outbound Register can run against it.
type SeedEntry struct {
	CountryCode     string               `json:"country_code"`
	PartyID         string               `json:"party_id"`
	Role            string               `json:"role"`
	BusinessDetails ocpi.BusinessDetails `json:"business_details"`
	LocalToken      string               `json:"local_token,omitempty"`
	RemoteToken     string               `json:"remote_token,omitempty"`
	VersionsURL     string               `json:"versions_url,omitempty"`
}

// SeedFromFile loads pre-shared parties from a JSON file into the registry.
// This is the manual trust bootstrap: each entry becomes an UNREGISTERED
// party that either side can complete a handshake against. Entries already
// present in the registry (e.g. restored from a snapshot) are skipped.
func SeedFromFile(ctx context.Context, registry *Registry, path string, now time.Time) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var entries []SeedEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	added := 0
	for i, entry := range entries {
		ref, err := ocpi.NewPartyRef(entry.CountryCode, entry.PartyID, entry.Role)
		if err != nil {
			return added, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if _, err := registry.Find(ref); err == nil {
			continue
		}

		p := &RemoteParty{
			Ref:             ref,
			BusinessDetails: entry.BusinessDetails,
			Status:          StatusEnabled,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if entry.LocalToken != "" {
			p.LocalAccessInfos = []LocalAccessInfo{{
				Token:       ocpi.AccessToken(entry.LocalToken),
				Status:      TokenAllowed,
				LastUpdated: now,
			}}
		}
		if entry.RemoteToken != "" || entry.VersionsURL != "" {
			p.RemoteAccessInfos = []RemoteAccessInfo{{
				Token:       ocpi.AccessToken(entry.RemoteToken),
				VersionsURL: entry.VersionsURL,
				Status:      ConnectionUnknown,
			}}
		}

		if err := registry.Add(ctx, p); err != nil {
			return added, fmt.Errorf("seed entry %d (%s): %w", i, ref, err)
		}
		added++
	}
	return added, nil
}
