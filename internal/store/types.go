package store

import (
	"encoding/json"
	"time"
)

// Bundle is the parsed content of a certificate store.
// Records keep the order in which they appear in the store, with Traefik
// resolvers visited in name order.
type Bundle struct {
	Source  string
	Records []Record
}

// Record is a single certificate entry.
type Record struct {
	// Resolver is the Traefik certificate resolver the record belongs to.
	// Empty for Traefik v1 stores and flat record lists.
	Resolver string
	Domain   Domain

	// Certificate and Key are kept exactly as stored. Traefik stores them as
	// base64-encoded PEM.
	Certificate string
	Key         string
	Store       string

	// Index is the position of the record in the bundle.
	Index int
}

// Domain is the domain a certificate was issued for.
type Domain struct {
	Main string   `json:"main"`
	SANs []string `json:"sans,omitempty"`
}

// UnmarshalJSON accepts either a plain string or a {"main", "sans"} object.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*d = Domain{Main: name}
		return nil
	}

	type plain Domain
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Domain(p)
	return nil
}

// Material is the certificate and key resolved for one domain.
type Material struct {
	Domain   string
	Resolver string

	// Certificate and Key are byte-exact copies of the stored values.
	Certificate []byte
	Key         []byte
}

// Entry summarises a record for listings.
type Entry struct {
	Resolver  string    `json:"resolver,omitempty"`
	Domain    string    `json:"domain"`
	SANs      []string  `json:"sans,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	NotBefore time.Time `json:"notBefore,omitzero"`
	NotAfter  time.Time `json:"notAfter,omitzero"`
}

// rawRecord is the JSON shape shared by all supported layouts. Field matching
// in encoding/json is case-insensitive, so Traefik v1 ("Domain", "Main",
// "SANs") and v2 ("domain", "main", "sans") both decode into it.
type rawRecord struct {
	Domain      Domain `json:"domain"`
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
	Store       string `json:"store"`
}

// rawResolver is one certificate resolver in a Traefik acme.json.
type rawResolver struct {
	Certificates json.RawMessage `json:"Certificates"`
}
