package store

import (
	"fmt"
)

// Resolve returns the certificate and key stored for domain.
//
// The match is exact on the record's main domain. When several records
// match, the one with the latest certificate NotBefore wins; records whose
// certificate cannot be parsed rank as issued at the zero time, and ties go
// to the record that appears last in the bundle.
func (b *Bundle) Resolve(domain string) (*Material, error) {
	return b.resolve("", false, domain)
}

// ResolveIn is like Resolve but only considers records of one resolver.
func (b *Bundle) ResolveIn(resolver, domain string) (*Material, error) {
	return b.resolve(resolver, true, domain)
}

func (b *Bundle) resolve(resolver string, filter bool, domain string) (*Material, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain cannot be empty", ErrDomainNotFound)
	}

	var best *Record
	for i := range b.Records {
		r := &b.Records[i]
		if r.Domain.Main != domain {
			continue
		}
		if filter && r.Resolver != resolver {
			continue
		}
		if best == nil || !r.IssuedAt().Before(best.IssuedAt()) {
			best = r
		}
	}

	if best == nil {
		if filter {
			return nil, fmt.Errorf("%w: %s (resolver %q)", ErrDomainNotFound, domain, resolver)
		}
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}

	return &Material{
		Domain:      best.Domain.Main,
		Resolver:    best.Resolver,
		Certificate: []byte(best.Certificate),
		Key:         []byte(best.Key),
	}, nil
}

// Entries summarises every record in bundle order.
func (b *Bundle) Entries() []Entry {
	entries := make([]Entry, 0, len(b.Records))
	for _, r := range b.Records {
		e := Entry{
			Resolver: r.Resolver,
			Domain:   r.Domain.Main,
			SANs:     r.Domain.SANs,
		}
		if cert, err := r.parseCertificate(); err == nil {
			e.Issuer = cert.Issuer.CommonName
			e.NotBefore = cert.NotBefore
			e.NotAfter = cert.NotAfter
		}
		entries = append(entries, e)
	}
	return entries
}

// Resolvers returns the distinct resolver names in bundle order.
func (b *Bundle) Resolvers() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range b.Records {
		if seen[r.Resolver] {
			continue
		}
		seen[r.Resolver] = true
		names = append(names, r.Resolver)
	}
	return names
}
