// Package store reads ACME certificate stores and resolves the certificate
// and private key for a single domain.
//
// Three layouts are understood: the Traefik v2+ acme.json (one object per
// certificate resolver), the Traefik v1 acme.json (a single top-level
// Certificates collection) and a flat JSON list of records. Lookups are an
// exact match on the main domain. When several records share a domain, the
// most recently issued certificate wins and ties go to the record that
// appears last in the bundle.
//
// Stores can be read from the local filesystem with [Load] or from object
// storage with [LoadSource].
package store
