package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// certificatesKey is the collection name used by Traefik.
const certificatesKey = "Certificates"

// Load reads and parses the store file at path.
func Load(path string) (*Bundle, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("failed to read certificate store %s: %w", path, err)
	}

	bundle, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bundle.Source = path
	return bundle, nil
}

// Parse decodes store content into a Bundle.
func Parse(data []byte) (*Bundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrStoreParse)
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: content is not valid JSON", ErrStoreParse)
	}

	bundle := &Bundle{}

	switch trimmed[0] {
	case '[':
		var records []rawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreParse, err)
		}
		bundle.add("", records)

	case '{':
		var top map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &top); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreParse, err)
		}
		if err := bundle.addObject(top); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", ErrStoreParse)
	}

	return bundle, nil
}

// addObject handles the Traefik layouts. A top-level Certificates key means a
// v1 store; otherwise every key is a resolver name.
func (b *Bundle) addObject(top map[string]json.RawMessage) error {
	if raw, ok := top[certificatesKey]; ok {
		records, err := decodeRecords(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreParse, err)
		}
		b.add("", records)
		return nil
	}

	names := make([]string, 0, len(top))
	for name := range top {
		names = append(names, name)
	}
	sort.Strings(names)

	found := false
	for _, name := range names {
		var resolver rawResolver
		if err := json.Unmarshal(top[name], &resolver); err != nil {
			return fmt.Errorf("%w: resolver %q: %v", ErrStoreParse, name, err)
		}
		if resolver.Certificates == nil {
			continue
		}
		records, err := decodeRecords(resolver.Certificates)
		if err != nil {
			return fmt.Errorf("%w: resolver %q: %v", ErrStoreParse, name, err)
		}
		found = true
		b.add(name, records)
	}

	if !found {
		return fmt.Errorf("%w: no %s collection found", ErrStoreParse, certificatesKey)
	}
	return nil
}

func decodeRecords(raw json.RawMessage) ([]rawRecord, error) {
	var records []rawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (b *Bundle) add(resolver string, records []rawRecord) {
	for _, r := range records {
		b.Records = append(b.Records, Record{
			Resolver:    resolver,
			Domain:      r.Domain,
			Certificate: r.Certificate,
			Key:         r.Key,
			Store:       r.Store,
			Index:       len(b.Records),
		})
	}
}
