package ocpi

import "fmt"

// Credentials is the flat payload exchanged during the registration
// handshake. The token field is the credential the *recipient* must use to
// call the *sender* from now on; url is the sender's versions endpoint.
// It is a wire DTO only and is never persisted as-is.
type Credentials struct {
	Token           AccessToken     `json:"token"`
	URL             string          `json:"url"`
	BusinessDetails BusinessDetails `json:"business_details"`
	CountryCode     CountryCode     `json:"country_code"`
	PartyID         PartyID         `json:"party_id"`
}

// Validate checks the fields a handshake cannot proceed without.
func (c Credentials) Validate() error {
	if c.Token.IsZero() {
		return fmt.Errorf("credentials token is required")
	}
	if c.URL == "" {
		return fmt.Errorf("credentials url is required")
	}
	if _, err := ParseCountryCode(string(c.CountryCode)); err != nil {
		return err
	}
	if _, err := ParsePartyID(string(c.PartyID)); err != nil {
		return err
	}
	return nil
}
