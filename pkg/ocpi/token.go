package ocpi

// AccessToken is an opaque bearer credential. Tokens are case-sensitive and
// compared byte-wise; they carry no internal structure.
//
// Two independent namespaces exist and must never be confused:
//   - local tokens: what a peer presents to call us
//   - remote tokens: what we present to call a peer
//
// The type deliberately has no Format/MarshalText sugar: anything that wants
// a printable form for logs must go through Redacted.
type AccessToken string

// IsZero reports whether the token is empty.
func (t AccessToken) IsZero() bool {
	return t == ""
}

// Equal compares two tokens byte-wise.
func (t AccessToken) Equal(other AccessToken) bool {
	return t == other
}

// Redacted returns a display form safe for logs: the first four characters
// followed by an ellipsis. Short tokens are fully masked.
func (t AccessToken) Redacted() string {
	if len(t) <= 8 {
		return "****"
	}
	return string(t[:4]) + "…"
}

// String returns the redacted form so an AccessToken can never leak through
// a careless %v or %s.
func (t AccessToken) String() string {
	return t.Redacted()
}
