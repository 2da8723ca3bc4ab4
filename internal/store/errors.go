package store

import "errors"

var (
	// ErrStoreNotFound is returned when the store file or object does not exist.
	ErrStoreNotFound = errors.New("certificate store not found")

	// ErrStoreParse is returned when the store content is not valid JSON or
	// has no recognisable certificate collection.
	ErrStoreParse = errors.New("certificate store is not valid")

	// ErrDomainNotFound is returned when no record matches the requested domain.
	ErrDomainNotFound = errors.New("domain not found in certificate store")

	// ErrResolverNotFound is returned when a resolver name matches no record.
	ErrResolverNotFound = errors.New("resolver not found in certificate store")
)
