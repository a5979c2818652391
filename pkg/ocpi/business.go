package ocpi

// BusinessDetails is the human-facing description of a party exchanged
// during registration. Logo support is omitted: nothing in this node renders
// images and the field is optional on the wire.
type BusinessDetails struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
}
