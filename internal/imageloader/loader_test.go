package imageloader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/vision-infer/internal/source"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(path, encodeTestPNG(t, 8, 6), 0o600); err != nil {
		t.Fatalf("write temp image: %v", err)
	}

	loader := New(http.DefaultClient, nil)
	img, err := loader.Load(context.Background(), source.Parse(path))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}
}

func TestLoadHTTP(t *testing.T) {
	data := encodeTestPNG(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	loader := New(server.Client(), nil)
	img, err := loader.Load(context.Background(), source.Parse(server.URL+"/img.png"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("unexpected width: %d", img.Bounds().Dx())
	}
}

func TestLoadHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	loader := New(server.Client(), nil)
	if _, err := loader.Load(context.Background(), source.Parse(server.URL+"/missing.png")); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

type stubFetcher struct {
	body   []byte
	err    error
	bucket string
	key    string
}

func (s *stubFetcher) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.bucket = *params.Bucket
	s.key = *params.Key
	if s.err != nil {
		return nil, s.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(s.body))}, nil
}

func TestLoadS3(t *testing.T) {
	fetcher := &stubFetcher{body: encodeTestPNG(t, 3, 3)}
	loader := New(http.DefaultClient, fetcher)

	img, err := loader.Load(context.Background(), source.Parse("s3://bucket/dir/key.png"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if img.Bounds().Dx() != 3 {
		t.Fatalf("unexpected width: %d", img.Bounds().Dx())
	}
	if fetcher.bucket != "bucket" || fetcher.key != "dir/key.png" {
		t.Fatalf("unexpected object reference: %s/%s", fetcher.bucket, fetcher.key)
	}
}

func TestLoadS3Disabled(t *testing.T) {
	loader := New(http.DefaultClient, nil)
	_, err := loader.Load(context.Background(), source.Parse("s3://bucket/key.png"))
	if !errors.Is(err, ErrS3Disabled) {
		t.Fatalf("expected ErrS3Disabled, got %v", err)
	}
}

func TestLoadUndecodableBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	loader := New(http.DefaultClient, nil)
	if _, err := loader.Load(context.Background(), source.Parse(path)); err == nil {
		t.Fatal("expected decode error")
	}
}
