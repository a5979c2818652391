// Package party holds this node's records of its federation peers: one
// RemoteParty per (country, party id, role) triple, carrying both directions
// of trust — the tokens peers use against us and the tokens we use against
// them.
package party

import (
	"time"

	"ocpigw/pkg/ocpi"
)

// TokenStatus gates a local access token.
type TokenStatus string

const (
	TokenAllowed TokenStatus = "ALLOWED"
	TokenBlocked TokenStatus = "BLOCKED"
)

// Status enables or disables a party administratively.
type Status string

const (
	StatusEnabled  Status = "ENABLED"
	StatusDisabled Status = "DISABLED"
)

// ConnectionStatus tracks the last known reachability of a peer.
type ConnectionStatus string

const (
	ConnectionOnline  ConnectionStatus = "ONLINE"
	ConnectionOffline ConnectionStatus = "OFFLINE"
	ConnectionUnknown ConnectionStatus = "UNKNOWN"
)

// LocalAccessInfo is a credential a peer presents to call us.
type LocalAccessInfo struct {
	Token       ocpi.AccessToken `json:"token"`
	Status      TokenStatus      `json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
}

// RemoteAccessInfo is the credential we present to a peer, together with the
// discovery state cached for it. SelectedVersionID is only set once a
// registration handshake has completed against this info.
type RemoteAccessInfo struct {
	Token             ocpi.AccessToken         `json:"token"`
	VersionsURL       string                   `json:"versions_url"`
	VersionIDs        []ocpi.VersionID         `json:"version_ids,omitempty"`
	SelectedVersionID ocpi.VersionID           `json:"selected_version_id,omitempty"`
	Endpoints         map[ocpi.ModuleID]string `json:"endpoints,omitempty"`
	Status            ConnectionStatus         `json:"status"`
}

// Registered reports whether a handshake has completed against this info.
func (r RemoteAccessInfo) Registered() bool {
	return !r.SelectedVersionID.IsZero()
}

// RemoteParty is one federation peer. The identity triple is immutable once
// created; everything else is mutated only through Registry.Update so that
// concurrent handshake completions serialize per identity.
type RemoteParty struct {
	Ref               ocpi.PartyRef        `json:"ref"`
	BusinessDetails   ocpi.BusinessDetails `json:"business_details"`
	LocalAccessInfos  []LocalAccessInfo    `json:"local_access_infos"`
	RemoteAccessInfos []RemoteAccessInfo   `json:"remote_access_infos"`
	Status            Status               `json:"status"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Registered reports whether at least one remote access info has completed
// a handshake. This is the party's position in the registration state
// machine: false means UNREGISTERED (pre-shared token only).
func (p *RemoteParty) Registered() bool {
	for _, info := range p.RemoteAccessInfos {
		if info.Registered() {
			return true
		}
	}
	return false
}

// Enabled reports whether the party may interact with this node at all.
func (p *RemoteParty) Enabled() bool {
	return p.Status == StatusEnabled
}

// LocalInfoFor returns the local access info matching the presented token.
func (p *RemoteParty) LocalInfoFor(token ocpi.AccessToken) (LocalAccessInfo, bool) {
	for _, info := range p.LocalAccessInfos {
		if info.Token.Equal(token) {
			return info, true
		}
	}
	return LocalAccessInfo{}, false
}

// ActiveLocalToken returns the currently allowed local token, if any.
func (p *RemoteParty) ActiveLocalToken() (ocpi.AccessToken, bool) {
	for _, info := range p.LocalAccessInfos {
		if info.Status == TokenAllowed {
			return info.Token, true
		}
	}
	return "", false
}

// PrimaryRemoteInfo returns the first remote access info, the one the
// handshake engine operates on. Steady state holds exactly one entry; the
// slice form exists for graceful-rotation flows.
func (p *RemoteParty) PrimaryRemoteInfo() (RemoteAccessInfo, bool) {
	if len(p.RemoteAccessInfos) == 0 {
		return RemoteAccessInfo{}, false
	}
	return p.RemoteAccessInfos[0], true
}

// RotateLocalToken replaces the active local credential with a fresh one.
// Previous entries are dropped: OCPI rotates atomically within one exchange,
// so there is no window where the old token must stay readable.
func (p *RemoteParty) RotateLocalToken(token ocpi.AccessToken, now time.Time) {
	p.LocalAccessInfos = []LocalAccessInfo{{
		Token:       token,
		Status:      TokenAllowed,
		LastUpdated: now,
	}}
	p.UpdatedAt = now
}

// SetRemoteInfo replaces the primary remote access info.
func (p *RemoteParty) SetRemoteInfo(info RemoteAccessInfo, now time.Time) {
	p.RemoteAccessInfos = []RemoteAccessInfo{info}
	p.UpdatedAt = now
}

// Clone returns a deep copy so registry readers never observe a party that a
// concurrent Update is mutating.
func (p *RemoteParty) Clone() *RemoteParty {
	c := *p
	c.LocalAccessInfos = append([]LocalAccessInfo(nil), p.LocalAccessInfos...)
	c.RemoteAccessInfos = make([]RemoteAccessInfo, len(p.RemoteAccessInfos))
	for i, info := range p.RemoteAccessInfos {
		clone := info
		clone.VersionIDs = append([]ocpi.VersionID(nil), info.VersionIDs...)
		if info.Endpoints != nil {
			clone.Endpoints = make(map[ocpi.ModuleID]string, len(info.Endpoints))
			for k, v := range info.Endpoints {
				clone.Endpoints[k] = v
			}
		}
		c.RemoteAccessInfos[i] = clone
	}
	return &c
}
