package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFileScheme(t *testing.T) {
	src := Parse("file:///tmp/images/cat.jpg")
	if src.Kind != KindLocal {
		t.Fatalf("expected local kind, got %s", src.Kind)
	}
	if src.Path != "/tmp/images/cat.jpg" {
		t.Fatalf("unexpected path: %s", src.Path)
	}
}

func TestParseExistingLocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	src := Parse(path)
	if src.Kind != KindLocal {
		t.Fatalf("expected local kind for existing path, got %s", src.Kind)
	}
	if src.Path != path {
		t.Fatalf("unexpected path: %s", src.Path)
	}
}

func TestParseS3(t *testing.T) {
	src := Parse("s3://my-bucket/photos/2024/cat.jpg")
	if src.Kind != KindS3 {
		t.Fatalf("expected s3 kind, got %s", src.Kind)
	}
	if src.Bucket != "my-bucket" {
		t.Fatalf("unexpected bucket: %s", src.Bucket)
	}
	if src.Key != "photos/2024/cat.jpg" {
		t.Fatalf("unexpected key: %s", src.Key)
	}
}

func TestParseHTTPFallback(t *testing.T) {
	for _, raw := range []string{
		"https://cdn.example.com/cat.jpg",
		"http://cdn.example.com/cat.jpg",
	} {
		src := Parse(raw)
		if src.Kind != KindHTTP {
			t.Fatalf("expected http kind for %q, got %s", raw, src.Kind)
		}
		if src.URL != raw {
			t.Fatalf("unexpected url: %s", src.URL)
		}
	}
}

func TestParseMissingLocalPathFallsThroughToHTTP(t *testing.T) {
	src := Parse("/nonexistent/path/image.jpg")
	if src.Kind != KindHTTP {
		t.Fatalf("expected http fallback for missing path, got %s", src.Kind)
	}
}
