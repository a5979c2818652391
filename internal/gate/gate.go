// Package gate is the inbound access-control layer. Every request to an
// OCPI endpoint passes through Authorize before any domain handler runs: it
// resolves the presented bearer token against the party registry and either
// attaches the resolved peer to the request or terminates the request with a
// denial. Denials are terminal — no retry, no partial processing.
package gate

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ocpigw/internal/gate/metrics"
	"ocpigw/internal/party"
	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/httputil"
	"ocpigw/pkg/platform/sentinel"
	"ocpigw/pkg/requestcontext"
)

// Capability names an operation class a request wants to perform.
type Capability string

const (
	CapabilityVersionsRead     Capability = "versions:read"
	CapabilityCredentialsRead  Capability = "credentials:read"
	CapabilityCredentialsWrite Capability = "credentials:write"
)

// Public reports whether anonymous callers may exercise the capability.
// Version discovery and the credentials read are public by OCPI's bootstrap
// requirement: a brand-new peer must be able to read GET versions,
// GET version-detail and GET credentials before it has been issued a token,
// otherwise registration itself would be impossible. This asymmetry is
// intentional.
func (c Capability) Public() bool {
	switch c {
	case CapabilityVersionsRead, CapabilityCredentialsRead:
		return true
	default:
		return false
	}
}

// Decision is the closed result of an authorization check.
type Decision interface {
	isDecision()
}

// Allow grants the request. Party is nil for anonymous access to a public
// capability.
type Allow struct {
	Party *party.RemoteParty
}

// Deny terminates the request with the embedded error.
type Deny struct {
	Err *dErrors.Error
}

func (Allow) isDecision() {}
func (Deny) isDecision()  {}

const blockedMessage = "Invalid or blocked access token!"

// Gate authorizes inbound requests against the party registry.
type Gate struct {
	registry *party.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a gate.
func New(registry *party.Registry, logger *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{registry: registry, logger: logger, metrics: m}
}

// Authorize resolves a presented token to a decision for the capability.
//
// Lookup order:
//  1. no token: anonymous — allowed only for public capabilities
//  2. token matches an ALLOWED entry of an enabled party: allow
//  3. token matches a BLOCKED entry (or a disabled party): deny 403,
//     regardless of capability — a blocked peer loses even public reads
//  4. token matches nothing: public capabilities degrade to anonymous so an
//     unrecognized token is indistinguishable from no token; protected
//     capabilities deny with the same message as the blocked case to avoid
//     a token-guessing side channel
func (g *Gate) Authorize(token ocpi.AccessToken, capability Capability) Decision {
	if token.IsZero() {
		if capability.Public() {
			g.metrics.IncrementDecision("allow", "anonymous")
			return Allow{}
		}
		g.metrics.IncrementDecision("deny", "missing_token")
		return Deny{Err: dErrors.New(dErrors.CodeUnauthorized, "authorization token is required")}
	}

	p, err := g.registry.FindByLocalToken(token)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			g.metrics.IncrementDecision("deny", "registry_error")
			return Deny{Err: dErrors.New(dErrors.CodeInternal, "token lookup failed")}
		}
		if capability.Public() {
			g.metrics.IncrementDecision("allow", "anonymous")
			return Allow{}
		}
		g.metrics.IncrementDecision("deny", "unknown_token")
		return Deny{Err: dErrors.New(dErrors.CodeForbidden, blockedMessage)}
	}

	info, ok := p.LocalInfoFor(token)
	if !ok || info.Status == party.TokenBlocked {
		g.metrics.IncrementDecision("deny", "blocked")
		return Deny{Err: dErrors.New(dErrors.CodeForbidden, blockedMessage)}
	}
	if !p.Enabled() {
		g.metrics.IncrementDecision("deny", "party_disabled")
		return Deny{Err: dErrors.New(dErrors.CodeForbidden, blockedMessage)}
	}

	g.metrics.IncrementDecision("allow", "party")
	return Allow{Party: p}
}

// Require wraps a handler chain with an authorization check for capability.
// On allow the resolved party identity and presented token are attached to
// the request context; on deny the request is terminated with an OCPI
// envelope. The Allow and Access-Control-Allow-Methods headers reflect the
// method set granted to the caller's registration state.
func (g *Gate) Require(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			decision := g.Authorize(token, capability)

			switch d := decision.(type) {
			case Deny:
				g.logger.WarnContext(r.Context(), "request denied",
					"request_id", requestcontext.RequestID(r.Context()),
					"capability", string(capability),
					"token", token.Redacted(),
					"reason", d.Err.Message,
				)
				httputil.WriteError(w, r, d.Err)
				return
			case Allow:
				ctx := r.Context()
				ctx = requestcontext.WithCallerToken(ctx, token)
				registered := false
				if d.Party != nil {
					ctx = requestcontext.WithCallerRef(ctx, d.Party.Ref)
					registered = d.Party.Registered()
				}
				setAllowedMethods(w, registered)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// AllowedMethods returns the credentials-module method set for a
// registration state. A not-yet-registered peer may not PUT or DELETE.
func AllowedMethods(registered bool) []string {
	if registered {
		return []string{http.MethodOptions, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
	}
	return []string{http.MethodOptions, http.MethodGet, http.MethodPost}
}

func setAllowedMethods(w http.ResponseWriter, registered bool) {
	methods := strings.Join(AllowedMethods(registered), ", ")
	w.Header().Set("Allow", methods)
	w.Header().Set("Access-Control-Allow-Methods", methods)
}

// TokenFromRequest extracts the bearer token from the Authorization header.
// OCPI uses the "Token" scheme; "Bearer" is accepted for interoperability
// with peers that send the generic form.
func TokenFromRequest(r *http.Request) ocpi.AccessToken {
	header := r.Header.Get("Authorization")
	for _, prefix := range []string{"Token ", "Bearer "} {
		if after, ok := strings.CutPrefix(header, prefix); ok {
			return ocpi.AccessToken(strings.TrimSpace(after))
		}
	}
	return ""
}
