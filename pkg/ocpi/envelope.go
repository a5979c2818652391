package ocpi

import (
	"encoding/json"
	"time"
)

// Protocol-level status codes carried inside the envelope. These are
// independent of the HTTP status: a request can be refused with HTTP 403
// while the envelope says 2000, and a 200 envelope can still carry a
// server-side 3000.
const (
	StatusSuccess           = 1000
	StatusGenericClientErr  = 2000
	StatusInvalidParameters = 2001
	StatusGenericServerErr  = 3000
)

// Envelope is the uniform OCPI response wrapper. Data is left as raw JSON so
// callers decode into the shape they expect; exact field names are part of
// interoperability and must not change.
type Envelope struct {
	Data          json.RawMessage `json:"data,omitempty"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message,omitempty"`
	Timestamp     Timestamp       `json:"timestamp"`
}

// Timestamp marshals as RFC3339 UTC, the format every OCPI peer expects.
type Timestamp struct {
	time.Time
}

// Now returns the current time as an envelope timestamp.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

// At wraps a concrete time, used by handlers that take the request time from
// context so tests can inject a fixed clock.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// VersionEntry is one row of a GET versions response.
type VersionEntry struct {
	Version VersionID `json:"version"`
	URL     string    `json:"url"`
}

// EndpointEntry is one row of a version-details response.
type EndpointEntry struct {
	Identifier ModuleID `json:"identifier"`
	URL        string   `json:"url"`
}

// VersionDetails is the payload of a GET version-details response.
type VersionDetails struct {
	Version   VersionID       `json:"version"`
	Endpoints []EndpointEntry `json:"endpoints"`
}
