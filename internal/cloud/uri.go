// Package cloud implements the Object Store Client (C3): upload/download of
// a single blob to/from an S3-compatible endpoint with custom
// credentials/region/endpoint. Grounded on internal/cloud/s3.go from the
// teacher, narrowed to the single S3-compatible backend spec.md specifies.
package cloud

import (
	"fmt"
	"path"
	"strings"
)

// ObjectURI is the parsed form of "s3://<bucket>/<key>".
type ObjectURI struct {
	Bucket string
	Key    string
}

// ParseObjectURI parses an s3:// URI per §4.3. An empty key is an error.
func ParseObjectURI(uri string) (*ObjectURI, error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("not an s3:// URI: %s", uri)
	}
	rest := strings.TrimPrefix(uri, scheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" {
		return nil, fmt.Errorf("s3 URI missing bucket: %s", uri)
	}
	if parts[1] == "" {
		return nil, fmt.Errorf("s3 URI missing key: %s", uri)
	}
	return &ObjectURI{Bucket: parts[0], Key: parts[1]}, nil
}

// IsObjectURI reports whether s looks like an s3:// URI.
func IsObjectURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// BuildKey joins an optional prefix with an archive basename, per spec.md
// §3 S3Location: "<optional_prefix>/<archive_basename>".
func BuildKey(prefix, basename string) string {
	if prefix == "" {
		return basename
	}
	return path.Join(prefix, basename)
}
