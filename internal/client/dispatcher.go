package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ocpigw/internal/party"
	"ocpigw/pkg/ocpi"
)

// Dispatcher hands out authenticated clients for registered peers. Clients
// are cached per identity; the handshake engine calls Invalidate after every
// remote-token mutation so no cached client outlives its credential.
type Dispatcher struct {
	registry *party.Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[ocpi.PartyRef]*Client
	group singleflight.Group
}

// NewDispatcher constructs a dispatcher. timeout bounds each outbound call
// made by the clients it builds.
func NewDispatcher(registry *party.Registry, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		cache:    make(map[ocpi.PartyRef]*Client),
	}
}

// ClientFor returns a client for the peer, building one from the registry's
// current remote token and endpoint map on a cache miss. Pass
// allowCached=false to force a rebuild, e.g. right after a handshake when
// the caller knows the cached credential is stale.
func (d *Dispatcher) ClientFor(ref ocpi.PartyRef, allowCached bool) (*Client, error) {
	if allowCached {
		d.mu.RLock()
		cached, ok := d.cache[ref]
		d.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	// singleflight collapses concurrent rebuilds for the same peer.
	v, err, _ := d.group.Do(ref.String(), func() (any, error) {
		c, err := d.build(ref)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cache[ref] = c
		d.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// Invalidate drops the cached client for a peer. Called by the handshake
// engine after every token rotation or removal.
func (d *Dispatcher) Invalidate(ctx context.Context, ref ocpi.PartyRef) {
	d.mu.Lock()
	delete(d.cache, ref)
	d.mu.Unlock()
	d.logger.DebugContext(ctx, "outbound client invalidated", "party", ref.String())
}

func (d *Dispatcher) build(ref ocpi.PartyRef) (*Client, error) {
	p, err := d.registry.Find(ref)
	if err != nil {
		return nil, fmt.Errorf("build client for %s: %w", ref, err)
	}
	remote, ok := p.PrimaryRemoteInfo()
	if !ok || !remote.Registered() {
		return nil, fmt.Errorf("build client for %s: party is not registered", ref)
	}

	endpoints := make(map[ocpi.ModuleID]string, len(remote.Endpoints))
	for k, v := range remote.Endpoints {
		endpoints[k] = v
	}
	return &Client{
		ref:       ref,
		token:     remote.Token,
		endpoints: endpoints,
		http:      &http.Client{Timeout: d.timeout},
	}, nil
}
