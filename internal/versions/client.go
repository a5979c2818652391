// Package versions implements both halves of OCPI version negotiation: the
// client side that discovers a peer's supported versions and module
// endpoints from a bootstrap URL, and the server side that advertises our
// own.
package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ocpigw/internal/versions/metrics"
	"ocpigw/pkg/ocpi"
)

// Client resolves a peer's supported protocol versions and, for a chosen
// version, its module endpoint map. It never retries: retry policy belongs
// to the caller because discovery is always safe to repeat.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient constructs a discovery client. The timeout bounds each GET
// individually; pass zero to rely on the request context alone.
func NewClient(timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: m,
	}
}

// GetVersions fetches the peer's version list from its bootstrap URL. The
// token is optional: OCPI requires the versions endpoints to be readable
// pre-registration so that registration itself is possible.
func (c *Client) GetVersions(ctx context.Context, versionsURL string, token ocpi.AccessToken) ([]ocpi.VersionEntry, error) {
	start := time.Now()
	var entries []ocpi.VersionEntry
	if err := c.getEnvelope(ctx, versionsURL, token, &entries); err != nil {
		return nil, err
	}
	c.metrics.ObserveDiscovery("versions", time.Since(start))

	c.logger.DebugContext(ctx, "discovered peer versions",
		"url", versionsURL,
		"count", len(entries),
	)
	return entries, nil
}

// GetVersionDetails selects wanted from the discovered version list and
// fetches its endpoint map. Selection is exact-match: if the peer does not
// offer wanted, the call fails locally with UnsupportedVersionError before
// any further HTTP exchange.
func (c *Client) GetVersionDetails(ctx context.Context, entries []ocpi.VersionEntry, wanted ocpi.VersionID, token ocpi.AccessToken) (*ocpi.VersionDetails, error) {
	var detailsURL string
	offered := make([]ocpi.VersionID, 0, len(entries))
	for _, entry := range entries {
		offered = append(offered, entry.Version)
		if entry.Version == wanted {
			detailsURL = entry.URL
		}
	}
	if detailsURL == "" {
		c.metrics.IncrementFailure("unsupported_version")
		return nil, &UnsupportedVersionError{Wanted: wanted, Offered: offered}
	}

	start := time.Now()
	var details ocpi.VersionDetails
	if err := c.getEnvelope(ctx, detailsURL, token, &details); err != nil {
		return nil, err
	}
	c.metrics.ObserveDiscovery("version_details", time.Since(start))

	if details.Version != wanted {
		c.metrics.IncrementFailure("envelope")
		return nil, &DiscoveryError{
			URL: detailsURL,
			Err: fmt.Errorf("peer answered with version %q instead of %q", details.Version, wanted),
		}
	}

	c.logger.DebugContext(ctx, "discovered peer endpoints",
		"url", detailsURL,
		"version", wanted,
		"endpoints", len(details.Endpoints),
	)
	return &details, nil
}

// Discover runs the full two-step discovery against a bootstrap URL.
func (c *Client) Discover(ctx context.Context, versionsURL string, wanted ocpi.VersionID, token ocpi.AccessToken) ([]ocpi.VersionID, *ocpi.VersionDetails, error) {
	entries, err := c.GetVersions(ctx, versionsURL, token)
	if err != nil {
		return nil, nil, err
	}
	details, err := c.GetVersionDetails(ctx, entries, wanted, token)
	if err != nil {
		return nil, nil, err
	}
	offered := make([]ocpi.VersionID, 0, len(entries))
	for _, entry := range entries {
		offered = append(offered, entry.Version)
	}
	return offered, details, nil
}

// EndpointMap indexes a version-details payload by module identifier.
// Unrecognized identifiers pass through so a newer peer keeps working.
func EndpointMap(details *ocpi.VersionDetails) map[ocpi.ModuleID]string {
	endpoints := make(map[ocpi.ModuleID]string, len(details.Endpoints))
	for _, entry := range details.Endpoints {
		endpoints[entry.Identifier] = entry.URL
	}
	return endpoints
}

// getEnvelope GETs url, checks the transport status, and decodes the OCPI
// envelope into out.
func (c *Client) getEnvelope(ctx context.Context, url string, token ocpi.AccessToken, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.metrics.IncrementFailure("transport")
		return &DiscoveryError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if !token.IsZero() {
		req.Header.Set("Authorization", "Token "+string(token))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncrementFailure("transport")
		return &DiscoveryError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncrementFailure("http_status")
		return &DiscoveryError{
			URL:        url,
			HTTPStatus: resp.StatusCode,
			Err:        fmt.Errorf("unexpected HTTP status"),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.IncrementFailure("transport")
		return &DiscoveryError{URL: url, HTTPStatus: resp.StatusCode, Err: err}
	}

	var envelope ocpi.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.metrics.IncrementFailure("envelope")
		return &DiscoveryError{URL: url, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if envelope.StatusCode != ocpi.StatusSuccess {
		c.metrics.IncrementFailure("envelope")
		return &DiscoveryError{
			URL:        url,
			HTTPStatus: resp.StatusCode,
			Err:        fmt.Errorf("peer status_code %d: %s", envelope.StatusCode, envelope.StatusMessage),
		}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		c.metrics.IncrementFailure("envelope")
		return &DiscoveryError{URL: url, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
