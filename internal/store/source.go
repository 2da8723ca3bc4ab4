package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

const s3Scheme = "s3://"

// ObjectGetter downloads an object from S3-compatible storage. Missing
// buckets or keys must be reported with an error wrapping fs.ErrNotExist.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// IsObjectRef reports whether ref points at object storage (s3://bucket/key).
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(ref, s3Scheme)
}

// ParseObjectRef splits an s3://bucket/key reference.
func ParseObjectRef(ref string) (bucket, key string, err error) {
	if !IsObjectRef(ref) {
		return "", "", fmt.Errorf("invalid object reference %q: missing %s prefix", ref, s3Scheme)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object reference %q: expected %sbucket/key", ref, s3Scheme)
	}
	return bucket, key, nil
}

// LoadSource loads a bundle from a local path or, for s3:// references, from
// object storage through objects. objects may be nil for local paths.
func LoadSource(ctx context.Context, ref string, objects ObjectGetter) (*Bundle, error) {
	if !IsObjectRef(ref) {
		return Load(ref)
	}

	bucket, key, err := ParseObjectRef(ref)
	if err != nil {
		return nil, err
	}
	if objects == nil {
		return nil, fmt.Errorf("no object storage client configured for %s", ref)
	}

	data, err := objects.GetObject(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, ref)
		}
		return nil, fmt.Errorf("failed to download certificate store %s: %w", ref, err)
	}

	bundle, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	bundle.Source = ref
	return bundle, nil
}
