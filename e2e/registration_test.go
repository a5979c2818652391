// Package e2e drives two complete in-process nodes through the registration
// lifecycle over real HTTP, feature-style.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/go-chi/chi/v5"

	"ocpigw/internal/client"
	"ocpigw/internal/credentials"
	"ocpigw/internal/gate"
	"ocpigw/internal/party"
	"ocpigw/internal/versions"
	"ocpigw/pkg/ocpi"
)

const bootstrapToken = "bootstrap-secret"

// node is one complete in-process gateway: registry, handshake engine and
// HTTP surface behind an httptest server.
type node struct {
	ref      ocpi.PartyRef
	registry *party.Registry
	service  *credentials.Service
	server   *httptest.Server
}

func startNode(countryCode, partyID, role string) (*node, error) {
	logger := slog.New(slog.DiscardHandler)
	ref, err := ocpi.NewPartyRef(countryCode, partyID, role)
	if err != nil {
		return nil, err
	}

	registry := party.NewRegistry(nil, logger)

	// The router is swapped in after the server URL is known, because the
	// versions handler advertises absolute URLs.
	var mu sync.RWMutex
	var router http.Handler = http.NotFoundHandler()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		h := router
		mu.RUnlock()
		h.ServeHTTP(w, r)
	}))

	accessGate := gate.New(registry, logger, nil)
	versionsHandler := versions.NewHandler(server.URL, accessGate, logger)
	discovery := versions.NewClient(5*time.Second, logger, nil)
	dispatcher := client.NewDispatcher(registry, 5*time.Second, logger)
	service := credentials.NewService(credentials.LocalNode{
		Ref:              ref,
		BusinessDetails:  ocpi.BusinessDetails{Name: partyID},
		VersionsURL:      versionsHandler.VersionsURL(),
		PreferredVersion: ocpi.V221,
	}, registry, discovery, dispatcher, 5*time.Second, logger, nil)

	r := chi.NewRouter()
	versionsHandler.Register(r)
	credentials.NewHandler(service, accessGate, logger).Register(r)

	mu.Lock()
	router = r
	mu.Unlock()

	return &node{ref: ref, registry: registry, service: service, server: server}, nil
}

func (n *node) versionsURL() string {
	return n.server.URL + "/ocpi/versions"
}

func (n *node) credentialsURL() string {
	return n.server.URL + "/ocpi/2.2.1/credentials"
}

type handshakeWorld struct {
	cpo  *node
	emsp *node
}

func (w *handshakeWorld) close() {
	if w.cpo != nil {
		w.cpo.server.Close()
	}
	if w.emsp != nil {
		w.emsp.server.Close()
	}
}

func (w *handshakeWorld) aCPONodeIsRunning(countryCode, partyID string) error {
	n, err := startNode(countryCode, partyID, "CPO")
	w.cpo = n
	return err
}

func (w *handshakeWorld) anEMSPNodeIsRunning(countryCode, partyID string) error {
	n, err := startNode(countryCode, partyID, "EMSP")
	w.emsp = n
	return err
}

// theNodesExchangedBootstrapToken seeds the out-of-band trust: the CPO has
// issued token to the eMSP, and the eMSP knows the CPO's versions URL.
func (w *handshakeWorld) theNodesExchangedBootstrapToken(token string) error {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := w.cpo.registry.Add(ctx, &party.RemoteParty{
		Ref:    w.emsp.ref,
		Status: party.StatusEnabled,
		LocalAccessInfos: []party.LocalAccessInfo{
			{Token: ocpi.AccessToken(token), Status: party.TokenAllowed, LastUpdated: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	return w.emsp.registry.Add(ctx, &party.RemoteParty{
		Ref:    w.cpo.ref,
		Status: party.StatusEnabled,
		RemoteAccessInfos: []party.RemoteAccessInfo{
			{Token: ocpi.AccessToken(token), VersionsURL: w.cpo.versionsURL(), Status: party.ConnectionUnknown},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (w *handshakeWorld) theEMSPRegistersWithTheCPO() error {
	return w.emsp.service.Register(context.Background(), w.cpo.ref)
}

func (w *handshakeWorld) theEMSPUnregistersFromTheCPO() error {
	return w.emsp.service.Unregister(context.Background(), w.cpo.ref)
}

func (w *handshakeWorld) nodeConsidersRegistered(owner *node, peer ocpi.PartyRef) error {
	p, err := owner.registry.Find(peer)
	if err != nil {
		return err
	}
	if !p.Registered() {
		return fmt.Errorf("%s does not consider %s registered", owner.ref, peer)
	}
	return nil
}

func (w *handshakeWorld) theEMSPConsidersTheCPORegistered() error {
	return w.nodeConsidersRegistered(w.emsp, w.cpo.ref)
}

func (w *handshakeWorld) theCPOConsidersTheEMSPRegistered() error {
	return w.nodeConsidersRegistered(w.cpo, w.emsp.ref)
}

// theBootstrapTokenNoLongerAuthenticates proves the rotation took: a write
// with the bootstrap token is refused like any unknown token.
func (w *handshakeWorld) theBootstrapTokenNoLongerAuthenticates() error {
	if _, err := w.cpo.registry.FindByLocalToken(bootstrapToken); err == nil {
		return fmt.Errorf("bootstrap token is still indexed on the CPO")
	}

	req, err := http.NewRequest(http.MethodDelete, w.cpo.credentialsURL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+bootstrapToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		return fmt.Errorf("expected HTTP 403 for the dead bootstrap token, got %d", resp.StatusCode)
	}
	return nil
}

func (w *handshakeWorld) theEMSPCanReadItsCredentials() error {
	// The token the CPO issued to the eMSP is the eMSP's remote credential.
	p, err := w.emsp.registry.Find(w.cpo.ref)
	if err != nil {
		return err
	}
	remote, ok := p.PrimaryRemoteInfo()
	if !ok {
		return fmt.Errorf("eMSP holds no remote credential for the CPO")
	}

	req, err := http.NewRequest(http.MethodGet, w.cpo.credentialsURL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+string(remote.Token))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected HTTP 200, got %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var envelope ocpi.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	var creds ocpi.Credentials
	if err := json.Unmarshal(envelope.Data, &creds); err != nil {
		return err
	}
	if !creds.Token.Equal(remote.Token) {
		return fmt.Errorf("CPO echoed a different token than it issued")
	}
	return nil
}

func (w *handshakeWorld) theCPONoLongerKnowsTheEMSP() error {
	if _, err := w.cpo.registry.Find(w.emsp.ref); err == nil {
		return fmt.Errorf("CPO still knows %s", w.emsp.ref)
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	w := &handshakeWorld{}

	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		w.close()
		return ctx, err
	})

	sc.Given(`^a CPO node "([^"]*)" "([^"]*)" is running$`, w.aCPONodeIsRunning)
	sc.Given(`^an eMSP node "([^"]*)" "([^"]*)" is running$`, w.anEMSPNodeIsRunning)
	sc.Given(`^the nodes have exchanged the bootstrap token "([^"]*)"$`, w.theNodesExchangedBootstrapToken)
	sc.When(`^the eMSP registers with the CPO$`, w.theEMSPRegistersWithTheCPO)
	sc.When(`^the eMSP registers with the CPO again$`, w.theEMSPRegistersWithTheCPO)
	sc.When(`^the eMSP unregisters from the CPO$`, w.theEMSPUnregistersFromTheCPO)
	sc.Then(`^the eMSP considers the CPO registered$`, w.theEMSPConsidersTheCPORegistered)
	sc.Then(`^the CPO considers the eMSP registered$`, w.theCPOConsidersTheEMSPRegistered)
	sc.Then(`^the bootstrap token no longer authenticates with the CPO$`, w.theBootstrapTokenNoLongerAuthenticates)
	sc.Then(`^the eMSP can read its credentials from the CPO with its issued token$`, w.theEMSPCanReadItsCredentials)
	sc.Then(`^the CPO no longer knows the eMSP$`, w.theCPONoLongerKnowsTheEMSP)
}

func TestRegistrationFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("registration feature suite failed")
	}
}
