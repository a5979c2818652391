package versions

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ocpigw/internal/gate"
	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/httputil"
)

// Handler serves our own version and version-details endpoints. These are
// the endpoints a brand-new peer reads before it has been issued a token, so
// they allow anonymous access — but they still run behind the gate: a peer
// whose token has been blocked is refused even here.
type Handler struct {
	baseURL string
	gate    *gate.Gate
	logger  *slog.Logger
}

// NewHandler constructs the versions handler. baseURL is this node's
// externally reachable root, e.g. "https://ocpi.example.com".
func NewHandler(baseURL string, g *gate.Gate, logger *slog.Logger) *Handler {
	return &Handler{
		baseURL: strings.TrimRight(baseURL, "/"),
		gate:    g,
		logger:  logger,
	}
}

// Register mounts the version discovery endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.gate.Require(gate.CapabilityVersionsRead)).Get("/ocpi/versions", h.HandleVersions)
	r.With(h.gate.Require(gate.CapabilityVersionsRead)).Get("/ocpi/{version}", h.HandleVersionDetails)
}

// VersionsURL returns the bootstrap URL peers should store for this node.
func (h *Handler) VersionsURL() string {
	return h.baseURL + "/ocpi/versions"
}

// HandleVersions handles GET /ocpi/versions.
func (h *Handler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	supported := ocpi.SupportedVersions()
	entries := make([]ocpi.VersionEntry, 0, len(supported))
	for _, v := range supported {
		entries = append(entries, ocpi.VersionEntry{
			Version: v,
			URL:     fmt.Sprintf("%s/ocpi/%s", h.baseURL, v),
		})
	}
	httputil.WriteData(w, r, entries)
}

// HandleVersionDetails handles GET /ocpi/<version>.
func (h *Handler) HandleVersionDetails(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "version")
	version, err := ocpi.ParseVersionID(raw)
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("version %q is not supported", raw)))
		return
	}
	served := false
	for _, v := range ocpi.SupportedVersions() {
		if v == version {
			served = true
			break
		}
	}
	if !served {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("version %q is not supported", raw)))
		return
	}

	details := ocpi.VersionDetails{
		Version:   version,
		Endpoints: h.endpointsFor(version),
	}
	httputil.WriteData(w, r, details)
}

// endpointsFor lists the module endpoints this node actually serves for a
// version. Domain modules are added here as they are implemented.
func (h *Handler) endpointsFor(version ocpi.VersionID) []ocpi.EndpointEntry {
	root := fmt.Sprintf("%s/ocpi/%s", h.baseURL, version)
	return []ocpi.EndpointEntry{
		{Identifier: ocpi.ModuleCredentials, URL: root + "/credentials"},
	}
}
