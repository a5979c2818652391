// Package admin exposes the operator surface: inspecting known parties,
// triggering outbound registrations, blocking tokens and evicting peers.
// Everything here is guarded by a static operator token and never prints a
// live access token — views are redacted.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ocpigw/internal/party"
	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/httputil"
	"ocpigw/pkg/requestcontext"
)

// Registrar is the slice of the handshake engine the admin surface drives.
type Registrar interface {
	Register(ctx context.Context, ref ocpi.PartyRef) error
	Unregister(ctx context.Context, ref ocpi.PartyRef) error
}

// Handler wires the operator endpoints.
type Handler struct {
	registry  *party.Registry
	registrar Registrar
	token     string
	logger    *slog.Logger
}

// New constructs the admin handler. An empty token disables the surface.
func New(registry *party.Registry, registrar Registrar, token string, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, registrar: registrar, token: token, logger: logger}
}

// Register mounts the operator endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/parties", func(r chi.Router) {
		r.Use(h.requireOperator)
		r.Get("/", h.HandleList)
		r.Route("/{countryCode}/{partyID}/{role}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/register", h.HandleRegister)
			r.Post("/block", h.HandleBlock)
			r.Post("/unblock", h.HandleUnblock)
			r.Delete("/", h.HandleDelete)
		})
	})
}

func (h *Handler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "admin surface is disabled"))
			return
		}
		header := r.Header.Get("Authorization")
		if header != "Token "+h.token && header != "Bearer "+h.token {
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeForbidden, "operator token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenView is a redacted local access info.
type tokenView struct {
	Token       string    `json:"token"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// remoteView is a redacted remote access info.
type remoteView struct {
	Token           string   `json:"token"`
	VersionsURL     string   `json:"versions_url"`
	SelectedVersion string   `json:"selected_version,omitempty"`
	Endpoints       []string `json:"endpoints,omitempty"`
	Status          string   `json:"status"`
}

// partyView is the operator's redacted picture of one peer.
type partyView struct {
	CountryCode     string               `json:"country_code"`
	PartyID         string               `json:"party_id"`
	Role            string               `json:"role"`
	BusinessDetails ocpi.BusinessDetails `json:"business_details"`
	Status          string               `json:"status"`
	Registered      bool                 `json:"registered"`
	LocalTokens     []tokenView          `json:"local_tokens"`
	RemoteInfos     []remoteView         `json:"remote_infos"`
}

func toView(p *party.RemoteParty) partyView {
	view := partyView{
		CountryCode:     p.Ref.CountryCode.String(),
		PartyID:         p.Ref.PartyID.String(),
		Role:            p.Ref.Role.String(),
		BusinessDetails: p.BusinessDetails,
		Status:          string(p.Status),
		Registered:      p.Registered(),
	}
	for _, info := range p.LocalAccessInfos {
		view.LocalTokens = append(view.LocalTokens, tokenView{
			Token:       info.Token.Redacted(),
			Status:      string(info.Status),
			LastUpdated: info.LastUpdated,
		})
	}
	for _, info := range p.RemoteAccessInfos {
		rv := remoteView{
			Token:           info.Token.Redacted(),
			VersionsURL:     info.VersionsURL,
			SelectedVersion: info.SelectedVersionID.String(),
			Status:          string(info.Status),
		}
		for module := range info.Endpoints {
			rv.Endpoints = append(rv.Endpoints, module.String())
		}
		view.RemoteInfos = append(view.RemoteInfos, rv)
	}
	return view
}

// HandleList handles GET /admin/parties.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	parties := h.registry.List()
	views := make([]partyView, 0, len(parties))
	for _, p := range parties {
		views = append(views, toView(p))
	}
	httputil.WriteData(w, r, views)
}

// HandleGet handles GET /admin/parties/{cc}/{pid}/{role}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}
	p, err := h.registry.Find(ref)
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "unknown party "+ref.String()))
		return
	}
	httputil.WriteData(w, r, toView(p))
}

// HandleRegister handles POST .../register: runs the outbound handshake.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}
	if err := h.registrar.Register(r.Context(), ref); err != nil {
		h.logger.ErrorContext(r.Context(), "operator-triggered registration failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"party", ref.String(),
			"error", err,
		)
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnavailable, err.Error()))
		return
	}
	httputil.WriteSuccess(w, r, "registered "+ref.String())
}

// HandleBlock handles POST .../block: marks every local token BLOCKED so the
// peer is locked out immediately, without dropping the relationship.
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	h.setTokenStatus(w, r, party.TokenBlocked)
}

// HandleUnblock handles POST .../unblock.
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	h.setTokenStatus(w, r, party.TokenAllowed)
}

func (h *Handler) setTokenStatus(w http.ResponseWriter, r *http.Request, status party.TokenStatus) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}
	now := requestcontext.Now(r.Context())
	err := h.registry.Update(r.Context(), ref, func(p *party.RemoteParty) error {
		for i := range p.LocalAccessInfos {
			p.LocalAccessInfos[i].Status = status
			p.LocalAccessInfos[i].LastUpdated = now
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "unknown party "+ref.String()))
		return
	}
	httputil.WriteSuccess(w, r, ref.String()+" tokens set to "+string(status))
}

// HandleDelete handles DELETE /admin/parties/{cc}/{pid}/{role}: full
// deregistration including the best-effort peer-side DELETE.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.refFromURL(w, r)
	if !ok {
		return
	}
	if err := h.registrar.Unregister(r.Context(), ref); err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "unknown party "+ref.String()))
		return
	}
	httputil.WriteSuccess(w, r, "removed "+ref.String())
}

func (h *Handler) refFromURL(w http.ResponseWriter, r *http.Request) (ocpi.PartyRef, bool) {
	ref, err := ocpi.NewPartyRef(
		chi.URLParam(r, "countryCode"),
		chi.URLParam(r, "partyID"),
		chi.URLParam(r, "role"),
	)
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return ocpi.PartyRef{}, false
	}
	return ref, true
}
