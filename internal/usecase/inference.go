package usecase

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/example/vision-infer/internal/logging"
	"github.com/example/vision-infer/internal/model"
	"github.com/example/vision-infer/internal/normalize"
	"github.com/example/vision-infer/internal/repository"
	"github.com/example/vision-infer/internal/source"
)

// ImageLoader resolves one parsed source into a decoded RGB image.
type ImageLoader interface {
	Load(ctx context.Context, src source.Source) (*image.NRGBA, error)
}

// Dispatcher delivers a result payload to a callback URL.
type Dispatcher interface {
	Send(ctx context.Context, requestID, url string, payload any) error
}

// LogRepository persists batch audit entries. A nil repository disables
// persistence.
type LogRepository interface {
	SaveLog(ctx context.Context, log *repository.InferenceLog) error
}

// Request is one accepted batch submission. Immutable once accepted.
type Request struct {
	RequestID   string
	CallbackURL string
	URLs        []string
	Conf        float64
	IoU         float64
	ImageSize   int
}

// ItemResult is the outcome for one input URL: a normalized result or a
// per-item error message, never both.
type ItemResult struct {
	Source string            `json:"source"`
	Result *normalize.Output `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Payload is the body delivered to the callback URL.
type Payload struct {
	RequestID string       `json:"request_id"`
	Results   []ItemResult `json:"results"`
}

// Service orchestrates the load, infer, normalize, callback pipeline. A
// weighted semaphore bounds how many per-item pipelines run at once; the
// single predictor and loader are shared across all requests.
type Service struct {
	loader     ImageLoader
	predictor  model.Predictor
	dispatcher Dispatcher
	repo       LogRepository
	logger     *zap.Logger
	inflight   *semaphore.Weighted
}

// NewService constructs the orchestration service. maxInflight below 1 is
// clamped to 1. repo may be nil.
func NewService(loader ImageLoader, predictor model.Predictor, dispatcher Dispatcher, repo LogRepository, logger *zap.Logger, maxInflight int64) *Service {
	if maxInflight < 1 {
		maxInflight = 1
	}
	return &Service{
		loader:     loader,
		predictor:  predictor,
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger.Named("inference_service"),
		inflight:   semaphore.NewWeighted(maxInflight),
	}
}

// InferBatch runs every URL of the request through the pipeline and returns
// one ItemResult per input. Results arrive in completion order, not input
// order; callers match on the Source field. Per-item failures never abort
// the batch.
func (s *Service) InferBatch(ctx context.Context, req Request) []ItemResult {
	resultCh := make(chan ItemResult, len(req.URLs))
	for _, url := range req.URLs {
		go func(raw string) {
			output, err := s.inferOne(ctx, req, raw)
			if err != nil {
				logging.WithSource(s.logger, "usecase.infer_one", req.RequestID, raw).
					Warn("item failed", zap.Error(err))
				resultCh <- ItemResult{Source: raw, Error: err.Error()}
				return
			}
			resultCh <- ItemResult{Source: raw, Result: output}
		}(url)
	}

	results := make([]ItemResult, 0, len(req.URLs))
	for range req.URLs {
		results = append(results, <-resultCh)
	}
	return results
}

// inferOne holds a semaphore slot for the full load + infer + normalize
// pipeline of a single item.
func (s *Service) inferOne(ctx context.Context, req Request, raw string) (*normalize.Output, error) {
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.inflight.Release(1)

	src := source.Parse(raw)
	img, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, logging.NewSourceError("imageloader.load", req.RequestID, raw, err)
	}

	rawResult, err := s.predictor.Predict(ctx, img, model.Options{
		Conf:      req.Conf,
		IoU:       req.IoU,
		ImageSize: req.ImageSize,
	})
	if err != nil {
		return nil, logging.NewSourceError("model.predict", req.RequestID, raw, err)
	}

	return normalize.Normalize(rawResult, s.predictor.Labels()), nil
}

// Process runs the batch and delivers the aggregated payload to the
// request's callback URL, then records an audit entry when a repository is
// configured. The callback delivery error, if any, is returned so the
// background runner can log it; the batch itself is never retried.
func (s *Service) Process(ctx context.Context, req Request) error {
	start := time.Now()
	results := s.InferBatch(ctx, req)

	var sendErr error
	if req.CallbackURL != "" {
		sendErr = s.dispatcher.Send(ctx, req.RequestID, req.CallbackURL, Payload{
			RequestID: req.RequestID,
			Results:   results,
		})
	}

	s.recordLog(ctx, req, results, sendErr == nil, time.Since(start))
	return sendErr
}

func (s *Service) recordLog(ctx context.Context, req Request, results []ItemResult, delivered bool, elapsed time.Duration) {
	if s.repo == nil {
		return
	}

	succeeded := 0
	for _, item := range results {
		if item.Error == "" {
			succeeded++
		}
	}
	entry := &repository.InferenceLog{
		RequestID:         req.RequestID,
		Sources:           len(req.URLs),
		Succeeded:         succeeded,
		Failed:            len(results) - succeeded,
		CallbackURL:       req.CallbackURL,
		CallbackDelivered: req.CallbackURL != "" && delivered,
		DurationMS:        elapsed.Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.SaveLog(ctx, entry); err != nil {
		logging.WithOperation(s.logger, "usecase.save_log", req.RequestID).
			Warn("failed to persist inference log", zap.Error(err))
	}
}
