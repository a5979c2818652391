package party

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/platform/sentinel"
)

// Error Contract:
// All registry methods follow this error pattern:
// - Return ErrNotFound (wrapped) when the requested party does not exist
// - Return ErrConflict (wrapped) when an identity or token index collides
// - Return nil for successful operations
//
// Reads hand out deep copies; callers may mutate the result freely without
// affecting stored state. All writes go through Add/Remove/Update, which
// serialize per identity so two concurrent handshake completions for the
// same peer cannot interleave their read-modify-write.
type Registry struct {
	mu       sync.RWMutex
	parties  map[ocpi.PartyRef]*RemoteParty
	byLocal  map[ocpi.AccessToken]ocpi.PartyRef
	byRemote map[ocpi.AccessToken]ocpi.PartyRef

	lockMu        sync.Mutex
	identityLocks map[ocpi.PartyRef]*sync.Mutex

	snapshotter Snapshotter
	logger      *slog.Logger
}

// NewRegistry constructs an empty registry. The snapshotter is optional; when
// present it is invoked after every committed mutation and its failures are
// logged, never propagated — the in-memory state is the source of truth.
func NewRegistry(snapshotter Snapshotter, logger *slog.Logger) *Registry {
	return &Registry{
		parties:       make(map[ocpi.PartyRef]*RemoteParty),
		byLocal:       make(map[ocpi.AccessToken]ocpi.PartyRef),
		byRemote:      make(map[ocpi.AccessToken]ocpi.PartyRef),
		identityLocks: make(map[ocpi.PartyRef]*sync.Mutex),
		snapshotter:   snapshotter,
		logger:        logger,
	}
}

// Add inserts a new party. Fails with a conflict if the identity triple is
// already present or one of its tokens is already indexed to another party.
func (r *Registry) Add(ctx context.Context, p *RemoteParty) error {
	if p == nil || p.Ref.IsZero() {
		return fmt.Errorf("party identity is required: %w", sentinel.ErrInvalidState)
	}
	r.mu.Lock()
	if _, exists := r.parties[p.Ref]; exists {
		r.mu.Unlock()
		return fmt.Errorf("party %s already exists: %w", p.Ref, sentinel.ErrConflict)
	}
	if err := r.checkTokenCollisions(p); err != nil {
		r.mu.Unlock()
		return err
	}
	r.parties[p.Ref] = p.Clone()
	r.indexTokens(p.Ref)
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

// Remove deletes a party and all of its token index entries. Removal is
// immediate and unconditional; there is no soft delete.
func (r *Registry) Remove(ctx context.Context, ref ocpi.PartyRef) error {
	r.mu.Lock()
	p, ok := r.parties[ref]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("party %s: %w", ref, sentinel.ErrNotFound)
	}
	r.dropTokenIndex(p)
	delete(r.parties, ref)
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

// Find returns a copy of the party with the given identity.
func (r *Registry) Find(ref ocpi.PartyRef) (*RemoteParty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[ref]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", ref, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

// FindByLocalToken resolves the party a presented bearer token belongs to.
// This is the gate's hot path: a single read lock and two map hits.
func (r *Registry) FindByLocalToken(token ocpi.AccessToken) (*RemoteParty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byLocal[token]
	if !ok {
		return nil, fmt.Errorf("local token: %w", sentinel.ErrNotFound)
	}
	return r.parties[ref].Clone(), nil
}

// FindByRemoteToken resolves the party we call with the given token.
func (r *Registry) FindByRemoteToken(token ocpi.AccessToken) (*RemoteParty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byRemote[token]
	if !ok {
		return nil, fmt.Errorf("remote token: %w", sentinel.ErrNotFound)
	}
	return r.parties[ref].Clone(), nil
}

// List returns copies of all known parties, for the admin surface and the
// snapshot hook.
func (r *Registry) List() []*RemoteParty {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RemoteParty, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p.Clone())
	}
	return out
}

// Update applies mutate to the party under an exclusive per-identity lock.
// The mutator receives a private copy; the copy replaces the stored party
// only if the mutator returns nil, so a failed mutation is a full no-op.
// The mutator must not perform network calls — discovery and credential
// exchanges happen before Update, only the commit runs under the lock.
func (r *Registry) Update(ctx context.Context, ref ocpi.PartyRef, mutate func(*RemoteParty) error) error {
	lock := r.identityLock(ref)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	cur, ok := r.parties[ref]
	var next *RemoteParty
	if ok {
		next = cur.Clone()
	}
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("party %s: %w", ref, sentinel.ErrNotFound)
	}

	if err := mutate(next); err != nil {
		return err
	}
	if next.Ref != ref {
		return fmt.Errorf("party identity is immutable: %w", sentinel.ErrInvalidState)
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}

	r.mu.Lock()
	if err := r.checkTokenCollisions(next); err != nil {
		r.mu.Unlock()
		return err
	}
	old := r.parties[ref]
	r.dropTokenIndex(old)
	r.parties[ref] = next
	r.indexTokens(ref)
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

// Restore replaces the registry contents from the snapshotter, if one is
// configured. Called once at boot before the server accepts traffic.
func (r *Registry) Restore(ctx context.Context) error {
	if r.snapshotter == nil {
		return nil
	}
	parties, err := r.snapshotter.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore registry snapshot: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parties = make(map[ocpi.PartyRef]*RemoteParty, len(parties))
	r.byLocal = make(map[ocpi.AccessToken]ocpi.PartyRef)
	r.byRemote = make(map[ocpi.AccessToken]ocpi.PartyRef)
	for _, p := range parties {
		if p == nil || p.Ref.IsZero() {
			continue
		}
		r.parties[p.Ref] = p.Clone()
		r.indexTokens(p.Ref)
	}
	return nil
}

func (r *Registry) identityLock(ref ocpi.PartyRef) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.identityLocks[ref]
	if !ok {
		lock = &sync.Mutex{}
		r.identityLocks[ref] = lock
	}
	return lock
}

// indexTokens rebuilds the token index entries for one party.
// Caller must hold the write lock.
func (r *Registry) indexTokens(ref ocpi.PartyRef) {
	p := r.parties[ref]
	for _, info := range p.LocalAccessInfos {
		r.byLocal[info.Token] = ref
	}
	for _, info := range p.RemoteAccessInfos {
		if !info.Token.IsZero() {
			r.byRemote[info.Token] = ref
		}
	}
}

// dropTokenIndex removes a party's entries from the token indexes.
// Caller must hold the write lock.
func (r *Registry) dropTokenIndex(p *RemoteParty) {
	for _, info := range p.LocalAccessInfos {
		if ref, ok := r.byLocal[info.Token]; ok && ref == p.Ref {
			delete(r.byLocal, info.Token)
		}
	}
	for _, info := range p.RemoteAccessInfos {
		if ref, ok := r.byRemote[info.Token]; ok && ref == p.Ref {
			delete(r.byRemote, info.Token)
		}
	}
}

// checkTokenCollisions rejects a mutation whose tokens already belong to
// another party; a shared token would make FindByLocalToken and
// FindByRemoteToken ambiguous and let its holder shadow the other party's
// index entries. The remote direction matters just as much as the local one:
// inbound registrations store the token the peer submitted.
// Caller must hold the write lock.
func (r *Registry) checkTokenCollisions(p *RemoteParty) error {
	for _, info := range p.LocalAccessInfos {
		if ref, ok := r.byLocal[info.Token]; ok && ref != p.Ref {
			return fmt.Errorf("local token already registered to %s: %w", ref, sentinel.ErrConflict)
		}
	}
	for _, info := range p.RemoteAccessInfos {
		if info.Token.IsZero() {
			continue
		}
		if ref, ok := r.byRemote[info.Token]; ok && ref != p.Ref {
			return fmt.Errorf("remote token already registered to %s: %w", ref, sentinel.ErrConflict)
		}
	}
	return nil
}

func (r *Registry) persist(ctx context.Context) {
	if r.snapshotter == nil {
		return
	}
	if err := r.snapshotter.Save(ctx, r.List()); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "registry snapshot failed", "error", err)
	}
}
