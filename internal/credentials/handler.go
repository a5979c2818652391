package credentials

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ocpigw/internal/gate"
	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/httputil"
	"ocpigw/pkg/requestcontext"
)

// Handler exposes the credentials module over HTTP. The access gate runs in
// front of every route: reads are public (with a redacted token for
// anonymous callers), writes require a resolved party.
type Handler struct {
	service *Service
	gate    *gate.Gate
	logger  *slog.Logger
}

// NewHandler constructs the credentials handler.
func NewHandler(service *Service, g *gate.Gate, logger *slog.Logger) *Handler {
	return &Handler{service: service, gate: g, logger: logger}
}

// Register mounts the credentials endpoints for every supported version.
func (h *Handler) Register(r chi.Router) {
	for _, v := range ocpi.SupportedVersions() {
		path := "/ocpi/" + v.String() + "/credentials"
		r.Route(path, func(r chi.Router) {
			r.With(h.gate.Require(gate.CapabilityCredentialsRead)).Get("/", h.HandleGet)
			r.With(h.gate.Require(gate.CapabilityCredentialsRead)).Options("/", h.HandleOptions)
			r.With(h.gate.Require(gate.CapabilityCredentialsWrite)).Post("/", h.HandleRegister)
			r.With(h.gate.Require(gate.CapabilityCredentialsWrite)).Put("/", h.HandleRegister)
			r.With(h.gate.Require(gate.CapabilityCredentialsWrite)).Delete("/", h.HandleDelete)
		})
	}
}

// HandleGet handles GET credentials: our identity plus the token the caller
// holds with us. Anonymous callers get a "<any>" placeholder instead of a
// live token.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	creds := h.service.CredentialsView(requestcontext.CallerRef(r.Context()))
	httputil.WriteData(w, r, creds)
}

// HandleOptions answers preflight/capability probes. The gate middleware has
// already set the Allow headers for the caller's registration state.
func (h *Handler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleRegister handles POST (initial registration) and PUT
// (re-registration / token rotation) of credentials.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerRef := requestcontext.CallerRef(ctx)
	if callerRef.IsZero() {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "registration requires an access token"))
		return
	}

	submitted, ok := httputil.DecodeBody[ocpi.Credentials](w, r, h.logger)
	if !ok {
		return
	}

	creds, err := h.service.InboundRegister(ctx, callerRef, r.Method, submitted)
	if err != nil {
		h.logger.WarnContext(ctx, "inbound registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"party", callerRef.String(),
			"method", r.Method,
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteData(w, r, creds)
}

// HandleDelete handles DELETE credentials: the peer unregisters itself and
// the party is removed entirely.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerRef := requestcontext.CallerRef(ctx)
	if callerRef.IsZero() {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "deregistration requires an access token"))
		return
	}

	if err := h.service.InboundUnregister(ctx, callerRef); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, r, "Successfully unregistered "+formatRef(callerRef))
}

func formatRef(ref ocpi.PartyRef) string {
	return strings.Join([]string{ref.CountryCode.String(), ref.PartyID.String()}, "*")
}
