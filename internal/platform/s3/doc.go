// Package s3 provides a client for S3-compatible object storage.
//
// It downloads certificate stores referenced as s3://bucket/key, for example
// an acme.json that Traefik syncs to Hetzner Object Storage. Missing buckets
// and keys are reported as fs.ErrNotExist so callers can treat them like a
// missing local file.
package s3
