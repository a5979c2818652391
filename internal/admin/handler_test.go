package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"ocpigw/internal/party"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/testutil"
)

type fakeRegistrar struct {
	registered   []ocpi.PartyRef
	unregistered []ocpi.PartyRef
	fail         bool
}

func (f *fakeRegistrar) Register(_ context.Context, ref ocpi.PartyRef) error {
	if f.fail {
		return fmt.Errorf("handshake failed")
	}
	f.registered = append(f.registered, ref)
	return nil
}

func (f *fakeRegistrar) Unregister(_ context.Context, ref ocpi.PartyRef) error {
	if f.fail {
		return fmt.Errorf("unknown party")
	}
	f.unregistered = append(f.unregistered, ref)
	return nil
}

type AdminHandlerTestSuite struct {
	suite.Suite
	registry  *party.Registry
	registrar *fakeRegistrar
	router    http.Handler
	peerRef   ocpi.PartyRef
}

func TestAdminHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerTestSuite))
}

func (s *AdminHandlerTestSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.registry = party.NewRegistry(nil, logger)
	s.registrar = &fakeRegistrar{}

	var err error
	s.peerRef, err = ocpi.NewPartyRef("NL", "PER", "EMSP")
	s.Require().NoError(err)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.registry.Add(context.Background(), &party.RemoteParty{
		Ref:             s.peerRef,
		BusinessDetails: ocpi.BusinessDetails{Name: "Peer EMSP"},
		Status:          party.StatusEnabled,
		LocalAccessInfos: []party.LocalAccessInfo{
			{Token: "super-secret-local-token", Status: party.TokenAllowed, LastUpdated: now},
		},
		RemoteAccessInfos: []party.RemoteAccessInfo{
			{Token: "super-secret-remote-token", VersionsURL: "https://peer.example.com/ocpi/versions", Status: party.ConnectionUnknown},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	router := chi.NewRouter()
	New(s.registry, s.registrar, "operator-token", logger).Register(router)
	s.router = router
}

func (s *AdminHandlerTestSuite) do(method, path string, authed bool) *http.Response {
	req := testutil.NewRequest(s.T(), method, path)
	if authed {
		req.Header.Set("Authorization", "Token operator-token")
	}
	rr := testutil.DoRequest(s.router, req)
	return rr.Result()
}

func (s *AdminHandlerTestSuite) TestOperatorTokenGuard() {
	s.Run("missing token is refused", func() {
		resp := s.do(http.MethodGet, "/admin/parties", false)
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("wrong token is refused", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/parties")
		req.Header.Set("Authorization", "Token wrong")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("empty configured token disables the surface", func() {
		router := chi.NewRouter()
		New(s.registry, s.registrar, "", slog.New(slog.DiscardHandler)).Register(router)
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/parties")
		req.Header.Set("Authorization", "Token anything")
		rr := testutil.DoRequest(router, req)
		s.Equal(http.StatusNotFound, rr.Code)
	})
}

func (s *AdminHandlerTestSuite) TestListRedactsTokens() {
	resp := s.do(http.MethodGet, "/admin/parties", true)
	s.Equal(http.StatusOK, resp.StatusCode)

	var envelope ocpi.Envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	body := string(envelope.Data)

	s.NotContains(body, "super-secret-local-token")
	s.NotContains(body, "super-secret-remote-token")
	s.Contains(body, "supe…")
	s.Contains(body, "Peer EMSP")
}

func (s *AdminHandlerTestSuite) TestGetParty() {
	resp := s.do(http.MethodGet, "/admin/parties/NL/PER/EMSP", true)
	s.Equal(http.StatusOK, resp.StatusCode)

	s.Run("unknown party is 404", func() {
		resp := s.do(http.MethodGet, "/admin/parties/FR/UNK/CPO", true)
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("malformed identity is 400", func() {
		resp := s.do(http.MethodGet, "/admin/parties/FRANCE/UNK/CPO", true)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *AdminHandlerTestSuite) TestTriggerRegistration() {
	resp := s.do(http.MethodPost, "/admin/parties/NL/PER/EMSP/register", true)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().Len(s.registrar.registered, 1)
	s.Equal(s.peerRef, s.registrar.registered[0])

	s.Run("engine failure surfaces as unavailable", func() {
		s.registrar.fail = true
		resp := s.do(http.MethodPost, "/admin/parties/NL/PER/EMSP/register", true)
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func (s *AdminHandlerTestSuite) TestBlockAndUnblock() {
	resp := s.do(http.MethodPost, "/admin/parties/NL/PER/EMSP/block", true)
	s.Equal(http.StatusOK, resp.StatusCode)

	p, err := s.registry.Find(s.peerRef)
	s.Require().NoError(err)
	s.Equal(party.TokenBlocked, p.LocalAccessInfos[0].Status)

	resp = s.do(http.MethodPost, "/admin/parties/NL/PER/EMSP/unblock", true)
	s.Equal(http.StatusOK, resp.StatusCode)

	p, err = s.registry.Find(s.peerRef)
	s.Require().NoError(err)
	s.Equal(party.TokenAllowed, p.LocalAccessInfos[0].Status)
}

func (s *AdminHandlerTestSuite) TestDeleteParty() {
	resp := s.do(http.MethodDelete, "/admin/parties/NL/PER/EMSP", true)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().Len(s.registrar.unregistered, 1)
	s.Equal(s.peerRef, s.registrar.unregistered[0])
}
