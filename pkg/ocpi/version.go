package ocpi

import "fmt"

// VersionID identifies an OCPI protocol version. Version negotiation is
// exact-match only: a peer either offers the version we want or registration
// fails locally.
type VersionID string

// Known protocol versions, oldest first.
const (
	V211 VersionID = "2.1.1"
	V22  VersionID = "2.2"
	V221 VersionID = "2.2.1"
	V230 VersionID = "2.3.0"
)

var versionOrder = map[VersionID]int{
	V211: 1,
	V22:  2,
	V221: 3,
	V230: 4,
}

// ParseVersionID validates a version string against the known set.
func ParseVersionID(s string) (VersionID, error) {
	v := VersionID(s)
	if _, ok := versionOrder[v]; !ok {
		return "", fmt.Errorf("unknown OCPI version: %q", s)
	}
	return v, nil
}

func (v VersionID) String() string {
	return string(v)
}

// IsZero reports whether the version is unset.
func (v VersionID) IsZero() bool {
	return v == ""
}

// Newer reports whether v is strictly newer than other. Unknown versions
// sort below every known one.
func (v VersionID) Newer(other VersionID) bool {
	return versionOrder[v] > versionOrder[other]
}

// SupportedVersions lists the versions this node can serve, newest first.
func SupportedVersions() []VersionID {
	return []VersionID{V221}
}
