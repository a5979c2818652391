// Package credentials implements the OCPI registration handshake: the
// outbound flow that turns an out-of-band bootstrap token into a live
// bidirectional trust relationship, and the inbound flow that answers a
// peer doing the same against us. Both halves exist on every node — a
// platform is simultaneously CPO- and EMSP-facing.
//
// The engine is the only component permitted to mutate token fields in the
// party registry. Every flow either fully commits under the registry's
// per-identity lock or leaves the stored party untouched, so retrying a
// failed registration is always safe.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ocpigw/internal/credentials/metrics"
	"ocpigw/internal/party"
	"ocpigw/internal/versions"
	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/sentinel"
	"ocpigw/pkg/requestcontext"
)

// LocalNode describes this node's own identity as presented to peers.
type LocalNode struct {
	Ref              ocpi.PartyRef
	BusinessDetails  ocpi.BusinessDetails
	VersionsURL      string
	PreferredVersion ocpi.VersionID
}

// Discovery resolves a peer's versions and module endpoints from its
// bootstrap URL. Implemented by the versions client.
type Discovery interface {
	Discover(ctx context.Context, versionsURL string, wanted ocpi.VersionID, token ocpi.AccessToken) ([]ocpi.VersionID, *ocpi.VersionDetails, error)
}

// ClientInvalidator drops cached outbound clients for a peer after the
// engine rotates that peer's remote token, so no stale client keeps using a
// superseded credential.
type ClientInvalidator interface {
	Invalidate(ctx context.Context, ref ocpi.PartyRef)
}

// Service is the handshake engine.
type Service struct {
	node        LocalNode
	registry    *party.Registry
	discovery   Discovery
	invalidator ClientInvalidator
	http        *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService constructs the handshake engine. timeout bounds each outbound
// credentials exchange; discovery carries its own.
func NewService(
	node LocalNode,
	registry *party.Registry,
	discovery Discovery,
	invalidator ClientInvalidator,
	timeout time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		node:        node,
		registry:    registry,
		discovery:   discovery,
		invalidator: invalidator,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		metrics:     m,
	}
}

// Register runs the outbound registration handshake against a known party.
//
// Precondition: the party holds a RemoteAccessInfo with a versions URL and a
// bootstrap token (pre-shared out of band, or left over from an earlier
// incomplete registration). On success the peer's submitted token replaces
// our remote token, our freshly generated token becomes the peer's local
// credential with us, and the peer's endpoints are re-resolved — all in one
// atomic registry commit. On any failure nothing is mutated and the previous
// tokens stay live, so calling Register again is always safe.
func (s *Service) Register(ctx context.Context, ref ocpi.PartyRef) error {
	start := time.Now()

	p, err := s.registry.Find(ref)
	if err != nil {
		s.metrics.IncrementRegistration("outbound", "invalid")
		return fmt.Errorf("register %s: %w", ref, err)
	}
	remote, ok := p.PrimaryRemoteInfo()
	if !ok || remote.VersionsURL == "" || remote.Token.IsZero() {
		s.metrics.IncrementRegistration("outbound", "invalid")
		return fmt.Errorf("register %s: party has no bootstrap token or versions URL", ref)
	}

	// Step 1: discover the peer's credentials endpoint. Network calls run
	// outside any registry lock.
	_, details, err := s.discovery.Discover(ctx, remote.VersionsURL, s.node.PreferredVersion, remote.Token)
	if err != nil {
		s.metrics.IncrementRegistration("outbound", classifyDiscovery(err))
		return fmt.Errorf("register %s: %w", ref, err)
	}
	credentialsURL, ok := versions.EndpointMap(details)[ocpi.ModuleCredentials]
	if !ok {
		s.metrics.IncrementRegistration("outbound", "discovery_failed")
		return fmt.Errorf("register %s: peer advertises no credentials endpoint", ref)
	}

	// Step 2: generate the token the peer must use against us from now on.
	fresh, err := GenerateToken()
	if err != nil {
		s.metrics.IncrementRegistration("outbound", "invalid")
		return fmt.Errorf("register %s: %w", ref, err)
	}

	// Step 3: the exchange. Our fresh token goes out; the peer's fresh
	// token comes back.
	method := http.MethodPost
	if remote.Registered() {
		// Re-registration against an established peer rotates via PUT.
		method = http.MethodPut
	}
	peerCreds, err := s.exchangeCredentials(ctx, method, credentialsURL, remote.Token, ocpi.Credentials{
		Token:           fresh,
		URL:             s.node.VersionsURL,
		BusinessDetails: s.node.BusinessDetails,
		CountryCode:     s.node.Ref.CountryCode,
		PartyID:         s.node.Ref.PartyID,
	})
	if err != nil {
		s.metrics.IncrementRegistration("outbound", "peer_rejected")
		return fmt.Errorf("register %s: %w", ref, err)
	}

	// Step 4: re-resolve the peer's endpoints through the URL it answered
	// with, authenticated with the token it just issued us.
	offered, refreshed, err := s.discovery.Discover(ctx, peerCreds.URL, s.node.PreferredVersion, peerCreds.Token)
	if err != nil {
		s.metrics.IncrementRegistration("outbound", classifyDiscovery(err))
		return fmt.Errorf("register %s: refresh endpoints: %w", ref, err)
	}

	// Step 5: single atomic commit under the per-identity lock.
	now := requestcontext.Now(ctx)
	err = s.registry.Update(ctx, ref, func(p *party.RemoteParty) error {
		p.SetRemoteInfo(party.RemoteAccessInfo{
			Token:             peerCreds.Token,
			VersionsURL:       peerCreds.URL,
			VersionIDs:        offered,
			SelectedVersionID: s.node.PreferredVersion,
			Endpoints:         versions.EndpointMap(refreshed),
			Status:            party.ConnectionOnline,
		}, now)
		p.RotateLocalToken(fresh, now)
		p.BusinessDetails = peerCreds.BusinessDetails
		return nil
	})
	if err != nil {
		s.metrics.IncrementRegistration("outbound", "invalid")
		return fmt.Errorf("register %s: commit: %w", ref, err)
	}
	s.invalidator.Invalidate(ctx, ref)

	s.metrics.IncrementRegistration("outbound", "ok")
	s.metrics.IncrementRotation()
	s.metrics.ObserveRegisterLatency(time.Since(start))
	s.logger.InfoContext(ctx, "outbound registration completed",
		"party", ref.String(),
		"version", s.node.PreferredVersion.String(),
		"local_token", fresh.Redacted(),
		"remote_token", peerCreds.Token.Redacted(),
	)
	return nil
}

// Unregister tears down the trust relationship with a peer: best-effort
// DELETE at the peer's credentials endpoint, then unconditional local
// removal. The local side is removed even when the peer is unreachable so an
// operator can always evict a dead peer.
func (s *Service) Unregister(ctx context.Context, ref ocpi.PartyRef) error {
	p, err := s.registry.Find(ref)
	if err != nil {
		return fmt.Errorf("unregister %s: %w", ref, err)
	}

	if remote, ok := p.PrimaryRemoteInfo(); ok && remote.Registered() {
		if url, ok := remote.Endpoints[ocpi.ModuleCredentials]; ok {
			if err := s.deleteCredentials(ctx, url, remote.Token); err != nil {
				s.logger.WarnContext(ctx, "peer-side deregistration failed, removing locally anyway",
					"party", ref.String(),
					"error", err,
				)
			}
		}
	}

	if err := s.registry.Remove(ctx, ref); err != nil {
		return fmt.Errorf("unregister %s: %w", ref, err)
	}
	s.invalidator.Invalidate(ctx, ref)
	s.logger.InfoContext(ctx, "party unregistered", "party", ref.String())
	return nil
}

// InboundRegister handles a peer's POST (initial registration) or PUT
// (re-registration) of credentials. callerRef is the identity the gate
// resolved from the presented token. On success the returned Credentials
// carry the fresh token the peer must use against us from now on.
func (s *Service) InboundRegister(ctx context.Context, callerRef ocpi.PartyRef, method string, submitted ocpi.Credentials) (*ocpi.Credentials, error) {
	p, err := s.registry.Find(callerRef)
	if err != nil {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown party")
	}

	// PUT rotates an established registration; POST establishes one. Each
	// is a protocol error in the other state.
	registered := p.Registered()
	if method == http.MethodPut && !registered {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeMethodNotAllowed, "The client is not yet registered, please POST first")
	}
	if method == http.MethodPost && registered {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeMethodNotAllowed, "The client is already registered, please use PUT to update")
	}

	// Identity is immutable: a peer cannot re-register under a different
	// country or party id.
	if submitted.CountryCode != callerRef.CountryCode {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("Updating the country code from '%s' to '%s' is not allowed!", callerRef.CountryCode, submitted.CountryCode))
	}
	if submitted.PartyID != callerRef.PartyID {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("Updating the party id from '%s' to '%s' is not allowed!", callerRef.PartyID, submitted.PartyID))
	}
	if err := submitted.Validate(); err != nil {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeBadRequest, err.Error())
	}

	// Resolve the peer's endpoints through the URL it submitted, using the
	// token it issued us. Runs before, never under, the registry lock.
	offered, details, err := s.discovery.Discover(ctx, submitted.URL, s.node.PreferredVersion, submitted.Token)
	if err != nil {
		var unsupported *versions.UnsupportedVersionError
		if errors.As(err, &unsupported) {
			s.metrics.IncrementRegistration("inbound", "unsupported_version")
			return nil, dErrors.New(dErrors.CodeBadRequest, unsupported.Error())
		}
		s.metrics.IncrementRegistration("inbound", "discovery_failed")
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("could not discover versions at %s", submitted.URL))
	}

	fresh, err := GenerateToken()
	if err != nil {
		s.metrics.IncrementRegistration("inbound", "invalid")
		return nil, dErrors.New(dErrors.CodeInternal, "token generation failed")
	}

	now := requestcontext.Now(ctx)
	err = s.registry.Update(ctx, callerRef, func(p *party.RemoteParty) error {
		p.SetRemoteInfo(party.RemoteAccessInfo{
			Token:             submitted.Token,
			VersionsURL:       submitted.URL,
			VersionIDs:        offered,
			SelectedVersionID: s.node.PreferredVersion,
			Endpoints:         versions.EndpointMap(details),
			Status:            party.ConnectionOnline,
		}, now)
		p.RotateLocalToken(fresh, now)
		p.BusinessDetails = submitted.BusinessDetails
		return nil
	})
	if err != nil {
		s.metrics.IncrementRegistration("inbound", "invalid")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "the submitted token is already in use by another party")
		}
		return nil, dErrors.New(dErrors.CodeInternal, "registration commit failed")
	}
	s.invalidator.Invalidate(ctx, callerRef)

	s.metrics.IncrementRegistration("inbound", "ok")
	s.metrics.IncrementRotation()
	s.logger.InfoContext(ctx, "inbound registration completed",
		"party", callerRef.String(),
		"method", method,
		"version", s.node.PreferredVersion.String(),
	)
	return &ocpi.Credentials{
		Token:           fresh,
		URL:             s.node.VersionsURL,
		BusinessDetails: s.node.BusinessDetails,
		CountryCode:     s.node.Ref.CountryCode,
		PartyID:         s.node.Ref.PartyID,
	}, nil
}

// InboundUnregister handles a peer's DELETE of its own registration. The
// party is removed entirely — both trust directions — with no soft delete.
func (s *Service) InboundUnregister(ctx context.Context, callerRef ocpi.PartyRef) error {
	if err := s.registry.Remove(ctx, callerRef); err != nil {
		return dErrors.New(dErrors.CodeForbidden, "Invalid or blocked access token!")
	}
	s.invalidator.Invalidate(ctx, callerRef)
	s.logger.InfoContext(ctx, "party deregistered by peer", "party", callerRef.String())
	return nil
}

// CredentialsView builds the Credentials body for GET requests. For an
// authenticated caller it carries the caller's active token with us; for an
// anonymous caller the token is redacted — a live secret is never echoed to
// a caller that did not present it.
func (s *Service) CredentialsView(callerRef ocpi.PartyRef) ocpi.Credentials {
	creds := ocpi.Credentials{
		Token:           "<any>",
		URL:             s.node.VersionsURL,
		BusinessDetails: s.node.BusinessDetails,
		CountryCode:     s.node.Ref.CountryCode,
		PartyID:         s.node.Ref.PartyID,
	}
	if callerRef.IsZero() {
		return creds
	}
	p, err := s.registry.Find(callerRef)
	if err != nil {
		return creds
	}
	if token, ok := p.ActiveLocalToken(); ok {
		creds.Token = token
	}
	return creds
}

// exchangeCredentials POSTs or PUTs our credentials to the peer and decodes
// the credentials it answers with.
func (s *Service) exchangeCredentials(ctx context.Context, method, url string, authToken ocpi.AccessToken, payload ocpi.Credentials) (*ocpi.Credentials, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build credentials request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+string(authToken))

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s credentials at %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read credentials response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("peer refused credentials %s with HTTP %d: %s", method, resp.StatusCode, truncate(raw))
	}

	var envelope ocpi.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode credentials envelope: %w", err)
	}
	if envelope.StatusCode != ocpi.StatusSuccess {
		return nil, fmt.Errorf("peer answered status_code %d: %s", envelope.StatusCode, envelope.StatusMessage)
	}
	var creds ocpi.Credentials
	if err := json.Unmarshal(envelope.Data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials data: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("peer answered invalid credentials: %w", err)
	}
	return &creds, nil
}

func (s *Service) deleteCredentials(ctx context.Context, url string, authToken ocpi.AccessToken) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build credentials delete: %w", err)
	}
	req.Header.Set("Authorization", "Token "+string(authToken))

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete credentials at %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("peer refused credentials delete with HTTP %d", resp.StatusCode)
	}
	return nil
}

func classifyDiscovery(err error) string {
	var unsupported *versions.UnsupportedVersionError
	if errors.As(err, &unsupported) {
		return "unsupported_version"
	}
	return "discovery_failed"
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "…"
	}
	return string(b)
}
