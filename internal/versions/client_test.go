package versions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ocpigw/pkg/ocpi"
)

type ClientTestSuite struct {
	suite.Suite
	client *Client
	ctx    context.Context
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.client = NewClient(5*time.Second, slog.New(slog.DiscardHandler), nil)
	s.ctx = context.Background()
}

// peerServer simulates the discovery side of a remote node. It records the
// Authorization header of the last request it saw.
func (s *ClientTestSuite) peerServer(offered []ocpi.VersionID, detailsVersion ocpi.VersionID) (*httptest.Server, *string) {
	var lastAuth string
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/ocpi/versions", func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		entries := make([]ocpi.VersionEntry, 0, len(offered))
		for _, v := range offered {
			entries = append(entries, ocpi.VersionEntry{Version: v, URL: server.URL + "/ocpi/" + v.String()})
		}
		s.writeEnvelope(w, entries)
	})
	mux.HandleFunc("/ocpi/", func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		s.writeEnvelope(w, ocpi.VersionDetails{
			Version: detailsVersion,
			Endpoints: []ocpi.EndpointEntry{
				{Identifier: ocpi.ModuleCredentials, URL: server.URL + "/ocpi/" + detailsVersion.String() + "/credentials"},
			},
		})
	})

	server = httptest.NewServer(mux)
	s.T().Cleanup(server.Close)
	return server, &lastAuth
}

func (s *ClientTestSuite) writeEnvelope(w http.ResponseWriter, data any) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	w.Header().Set("Content-Type", "application/json")
	s.Require().NoError(json.NewEncoder(w).Encode(ocpi.Envelope{
		Data:       raw,
		StatusCode: ocpi.StatusSuccess,
		Timestamp:  ocpi.Now(),
	}))
}

func (s *ClientTestSuite) TestDiscoverHappyPath() {
	server, lastAuth := s.peerServer([]ocpi.VersionID{ocpi.V22, ocpi.V221}, ocpi.V221)

	offered, details, err := s.client.Discover(s.ctx, server.URL+"/ocpi/versions", ocpi.V221, "boot-token")
	s.Require().NoError(err)
	s.Equal([]ocpi.VersionID{ocpi.V22, ocpi.V221}, offered)
	s.Equal(ocpi.V221, details.Version)
	s.Equal("Token boot-token", *lastAuth)

	endpoints := EndpointMap(details)
	s.Contains(endpoints, ocpi.ModuleCredentials)
}

func (s *ClientTestSuite) TestAnonymousDiscoverySendsNoAuthHeader() {
	server, lastAuth := s.peerServer([]ocpi.VersionID{ocpi.V221}, ocpi.V221)

	_, err := s.client.GetVersions(s.ctx, server.URL+"/ocpi/versions", "")
	s.Require().NoError(err)
	s.Empty(*lastAuth)
}

func (s *ClientTestSuite) TestUnsupportedVersionFailsLocally() {
	// The peer offers only 2.2; wanting 2.2.1 must fail before any further
	// HTTP exchange, so the error carries no HTTP metadata at all.
	detailsHits := 0
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/ocpi/versions", func(w http.ResponseWriter, r *http.Request) {
		s.writeEnvelope(w, []ocpi.VersionEntry{{Version: ocpi.V22, URL: server.URL + "/ocpi/2.2"}})
	})
	mux.HandleFunc("/ocpi/2.2", func(w http.ResponseWriter, r *http.Request) {
		detailsHits++
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	_, _, err := s.client.Discover(s.ctx, server.URL+"/ocpi/versions", ocpi.V221, "tok")

	var unsupported *UnsupportedVersionError
	s.Require().ErrorAs(err, &unsupported)
	s.Equal(ocpi.V221, unsupported.Wanted)
	s.Equal([]ocpi.VersionID{ocpi.V22}, unsupported.Offered)
	s.Zero(detailsHits)

	var discovery *DiscoveryError
	s.False(errors.As(err, &discovery))
}

func (s *ClientTestSuite) TestTransportFailureCarriesNoHTTPStatus() {
	server := httptest.NewServer(nil)
	server.Close() // connection refused from here on

	_, err := s.client.GetVersions(s.ctx, server.URL+"/ocpi/versions", "")

	var discovery *DiscoveryError
	s.Require().ErrorAs(err, &discovery)
	s.Zero(discovery.HTTPStatus)
}

func (s *ClientTestSuite) TestHTTPErrorStatusIsPreserved() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := s.client.GetVersions(s.ctx, server.URL, "")

	var discovery *DiscoveryError
	s.Require().ErrorAs(err, &discovery)
	s.Equal(http.StatusForbidden, discovery.HTTPStatus)
}

func (s *ClientTestSuite) TestNonSuccessEnvelopeFails() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ocpi.Envelope{
			StatusCode:    ocpi.StatusGenericServerErr,
			StatusMessage: "peer broke",
			Timestamp:     ocpi.Now(),
		})
	}))
	defer server.Close()

	_, err := s.client.GetVersions(s.ctx, server.URL, "")
	s.Require().Error(err)
	s.ErrorContains(err, "3000")
}

func (s *ClientTestSuite) TestDetailsAnsweringWrongVersionFails() {
	server, _ := s.peerServer([]ocpi.VersionID{ocpi.V221}, ocpi.V22)

	_, _, err := s.client.Discover(s.ctx, server.URL+"/ocpi/versions", ocpi.V221, "tok")

	var discovery *DiscoveryError
	s.Require().ErrorAs(err, &discovery)
	s.ErrorContains(err, `instead of "2.2.1"`)
}
