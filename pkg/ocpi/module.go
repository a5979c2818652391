package ocpi

// ModuleID names an OCPI resource group reached via a peer-advertised
// endpoint URL. The set of identifiers a peer may advertise is open;
// unrecognized identifiers are carried through untouched so a newer peer
// does not break discovery.
type ModuleID string

const (
	ModuleCredentials ModuleID = "credentials"
	ModuleLocations   ModuleID = "locations"
	ModuleTariffs     ModuleID = "tariffs"
	ModuleSessions    ModuleID = "sessions"
	ModuleCDRs        ModuleID = "cdrs"
	ModuleCommands    ModuleID = "commands"
	ModuleTokens      ModuleID = "tokens"
	ModuleVersions    ModuleID = "versions"
)

var knownModules = map[ModuleID]struct{}{
	ModuleCredentials: {},
	ModuleLocations:   {},
	ModuleTariffs:     {},
	ModuleSessions:    {},
	ModuleCDRs:        {},
	ModuleCommands:    {},
	ModuleTokens:      {},
	ModuleVersions:    {},
}

func (m ModuleID) String() string {
	return string(m)
}

// Known reports whether the identifier belongs to the closed set this node
// understands. Unknown modules still round-trip through endpoint maps.
func (m ModuleID) Known() bool {
	_, ok := knownModules[m]
	return ok
}
