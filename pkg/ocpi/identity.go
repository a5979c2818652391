// Package ocpi holds the OCPI domain primitives shared by every feature:
// party identity, roles, versions, module identifiers, access tokens and the
// wire envelope. These are value types that enforce validity at parse time so
// services never see a malformed identity.
package ocpi

import (
	"fmt"
	"strings"
)

// CountryCode is an ISO 3166-1 alpha-2 country code, stored upper-cased.
type CountryCode string

// ParseCountryCode validates and normalizes a country code.
func ParseCountryCode(s string) (CountryCode, error) {
	if len(s) != 2 {
		return "", fmt.Errorf("country code must be exactly 2 characters, got %q", s)
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", fmt.Errorf("country code must be alphabetic, got %q", s)
		}
	}
	return CountryCode(strings.ToUpper(s)), nil
}

func (c CountryCode) String() string {
	return string(c)
}

// PartyID is the 3-character party identifier assigned within a country.
type PartyID string

// ParsePartyID validates and normalizes a party id.
func ParsePartyID(s string) (PartyID, error) {
	if len(s) != 3 {
		return "", fmt.Errorf("party id must be exactly 3 characters, got %q", s)
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("party id must be alphanumeric, got %q", s)
		}
	}
	return PartyID(strings.ToUpper(s)), nil
}

func (p PartyID) String() string {
	return string(p)
}

// Role describes which side of the market a party operates on.
type Role string

const (
	RoleCPO   Role = "CPO"
	RoleEMSP  Role = "EMSP"
	RoleHub   Role = "HUB"
	RoleNAP   Role = "NAP"
	RoleNSP   Role = "NSP"
	RoleOther Role = "OTHER"
	RoleSCSP  Role = "SCSP"
)

var knownRoles = map[Role]struct{}{
	RoleCPO:   {},
	RoleEMSP:  {},
	RoleHub:   {},
	RoleNAP:   {},
	RoleNSP:   {},
	RoleOther: {},
	RoleSCSP:  {},
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(s))
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

func (r Role) String() string {
	return string(r)
}

// PartyRef is the immutable identity triple of a federation peer. It is the
// registry key: two parties may share country and id as long as their roles
// differ.
type PartyRef struct {
	CountryCode CountryCode `json:"country_code"`
	PartyID     PartyID     `json:"party_id"`
	Role        Role        `json:"role"`
}

// NewPartyRef parses and assembles an identity triple.
func NewPartyRef(countryCode, partyID, role string) (PartyRef, error) {
	cc, err := ParseCountryCode(countryCode)
	if err != nil {
		return PartyRef{}, err
	}
	pid, err := ParsePartyID(partyID)
	if err != nil {
		return PartyRef{}, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return PartyRef{}, err
	}
	return PartyRef{CountryCode: cc, PartyID: pid, Role: r}, nil
}

func (p PartyRef) String() string {
	return fmt.Sprintf("%s*%s/%s", p.CountryCode, p.PartyID, p.Role)
}

// IsZero reports whether the ref is unset.
func (p PartyRef) IsZero() bool {
	return p == PartyRef{}
}
