package callback

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/vision-infer/internal/logging"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// Dispatcher posts result payloads to caller-supplied URLs, signing them
// with a shared secret when one is configured and retrying with linear
// backoff on any failure.
type Dispatcher struct {
	client      *http.Client
	secret      []byte
	maxRetry    int
	backoffBase time.Duration
	logger      *zap.Logger
}

// New builds a dispatcher. secret may be empty, disabling signing. maxRetry
// below 1 is treated as a single attempt.
func New(client *http.Client, secret string, maxRetry int, logger *zap.Logger) *Dispatcher {
	if maxRetry < 1 {
		maxRetry = 1
	}
	d := &Dispatcher{
		client:      client,
		maxRetry:    maxRetry,
		backoffBase: 1500 * time.Millisecond,
		logger:      logger.Named("callback"),
	}
	if secret != "" {
		d.secret = []byte(secret)
	}
	return d
}

// Sign computes the hex HMAC-SHA256 of body with secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a "sha256=<hex>" signature header value against body.
func Verify(secret, body []byte, header string) bool {
	expected := "sha256=" + Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}

// Send serializes payload once, signs the exact bytes, and POSTs them to
// url. Each failed attempt (transport error or non-2xx status) waits
// backoffBase multiplied by the attempt number before trying again; the last
// error is returned after maxRetry attempts.
func (d *Dispatcher) Send(ctx context.Context, requestID, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return logging.NewOperationError("callback.marshal", requestID, err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if d.secret != nil {
		headers.Set(SignatureHeader, "sha256="+Sign(d.secret, body))
	}

	opLogger := logging.WithOperation(d.logger, "callback.send", requestID)
	var lastErr error
	for attempt := 1; attempt <= d.maxRetry; attempt++ {
		lastErr = d.post(ctx, url, body, headers)
		if lastErr == nil {
			if attempt > 1 {
				opLogger.Info("callback delivered after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if attempt == d.maxRetry {
			break
		}

		opLogger.Warn("callback attempt failed",
			zap.Int("attempt", attempt),
			zap.String("url", url),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return logging.NewOperationError("callback.send", requestID, ctx.Err())
		case <-time.After(time.Duration(attempt) * d.backoffBase):
		}
	}

	opLogger.Error("callback delivery exhausted retries",
		zap.Int("attempts", d.maxRetry),
		zap.String("url", url),
		zap.Error(lastErr))
	return logging.NewOperationError("callback.send", requestID, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte, headers http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header = headers.Clone()

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
