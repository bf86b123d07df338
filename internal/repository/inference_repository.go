package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InferenceLog records one processed batch request.
type InferenceLog struct {
	ID                uint      `gorm:"primaryKey"`
	RequestID         string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Sources           int       `gorm:"column:sources"`
	Succeeded         int       `gorm:"column:succeeded"`
	Failed            int       `gorm:"column:failed"`
	CallbackURL       string    `gorm:"column:callback_url;size:2048"`
	CallbackDelivered bool      `gorm:"column:callback_delivered"`
	DurationMS        int64     `gorm:"column:duration_ms"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (InferenceLog) TableName() string {
	return "inference_logs"
}

// InferenceRepository provides persistence APIs for inference logs.
type InferenceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewInferenceRepository creates a new repository instance.
func NewInferenceRepository(db *gorm.DB, logger *zap.Logger) *InferenceRepository {
	return &InferenceRepository{db: db, logger: logger.Named("inference_repository")}
}

// AutoMigrate ensures the schema is available.
func (r *InferenceRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&InferenceLog{})
}

// SaveLog persists an inference log entry.
func (r *InferenceRepository) SaveLog(ctx context.Context, log *InferenceLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByRequestID retrieves the log for one batch request.
func (r *InferenceRepository) FindByRequestID(ctx context.Context, requestID string) (*InferenceLog, error) {
	var log InferenceLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}
