package source

import (
	"os"
	"strings"
)

// Kind identifies where an image reference resolves to.
type Kind int

const (
	// KindHTTP is an http(s) URL fetched with the shared HTTP client.
	KindHTTP Kind = iota
	// KindLocal is a file:// URI or a path on the local filesystem.
	KindLocal
	// KindS3 is an s3://bucket/key object reference.
	KindS3
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindS3:
		return "s3"
	default:
		return "http"
	}
}

// Source is an image reference resolved to its kind once at the boundary.
// Exactly one of Path, Bucket/Key, or URL is meaningful depending on Kind.
type Source struct {
	Kind   Kind
	Raw    string
	Path   string
	Bucket string
	Key    string
	URL    string
}

// Parse classifies a raw reference string. Priority order: local path
// (file:// prefix or an existing filesystem entry), then s3://bucket/key,
// then anything else as an HTTP(S) URL.
func Parse(raw string) Source {
	if strings.HasPrefix(raw, "file://") {
		return Source{Kind: KindLocal, Raw: raw, Path: strings.TrimPrefix(raw, "file://")}
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "s3://") {
		if _, err := os.Stat(raw); err == nil {
			return Source{Kind: KindLocal, Raw: raw, Path: raw}
		}
	}
	if strings.HasPrefix(raw, "s3://") {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(raw, "s3://"), "/")
		return Source{Kind: KindS3, Raw: raw, Bucket: bucket, Key: key}
	}
	return Source{Kind: KindHTTP, Raw: raw, URL: raw}
}
