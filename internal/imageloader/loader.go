package imageloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"

	"github.com/example/vision-infer/internal/source"
)

// ErrS3Disabled is returned for s3:// sources when no object storage client
// was configured at startup.
var ErrS3Disabled = errors.New("s3 source requested but object storage is not configured")

// ObjectFetcher is the subset of the S3 API the loader needs.
type ObjectFetcher interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader resolves image references into decoded RGB images. The HTTP client
// is shared process-wide; its timeout bounds every remote fetch.
type Loader struct {
	httpClient *http.Client
	s3Client   ObjectFetcher
}

// New builds a loader. s3Client may be nil, in which case s3:// sources fail
// with ErrS3Disabled.
func New(httpClient *http.Client, s3Client ObjectFetcher) *Loader {
	return &Loader{httpClient: httpClient, s3Client: s3Client}
}

// Load fetches and decodes one source into a 3-channel RGB image. Failures
// are fatal for the item only, never for the batch.
func (l *Loader) Load(ctx context.Context, src source.Source) (*image.NRGBA, error) {
	var (
		data []byte
		err  error
	)
	switch src.Kind {
	case source.KindLocal:
		data, err = os.ReadFile(src.Path)
	case source.KindS3:
		data, err = l.fetchS3(ctx, src.Bucket, src.Key)
	default:
		data, err = l.fetchHTTP(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", src.Raw, err)
	}
	return imaging.Clone(img), nil
}

func (l *Loader) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if l.s3Client == nil {
		return nil, ErrS3Disabled
	}
	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
