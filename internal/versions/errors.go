package versions

import (
	"fmt"

	"ocpigw/pkg/ocpi"
)

// DiscoveryError means a discovery exchange with the peer was attempted and
// failed: transport error, non-2xx status, or an undecodable/unsuccessful
// envelope. HTTPStatus is zero when the failure happened before any response
// arrived.
type DiscoveryError struct {
	URL        string
	HTTPStatus int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("discovery of %s failed with HTTP %d: %v", e.URL, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("discovery of %s failed: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError is a purely local failure: the peer's advertised
// version list does not contain the version we require. No HTTP exchange is
// attempted for the version-details step, so the error deliberately carries
// no HTTP metadata — callers can tell "we never talked to the network" apart
// from "the network refused us" by the error type alone.
type UnsupportedVersionError struct {
	Wanted  ocpi.VersionID
	Offered []ocpi.VersionID
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("peer does not offer OCPI version %s (offered: %v)", e.Wanted, e.Offered)
}
