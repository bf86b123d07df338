package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/vision-infer/internal/callback"
	"github.com/example/vision-infer/internal/store"
	"github.com/example/vision-infer/internal/usecase"
)

type inferRequest struct {
	CallbackURL string   `json:"callback_url"`
	URLs        []string `json:"urls" binding:"required,min=1"`
	RequestID   string   `json:"request_id"`
	Conf        float64  `json:"conf"`
	IoU         float64  `json:"iou"`
	ImageSize   int      `json:"imgsz"`
}

func (r *inferRequest) toUsecase() usecase.Request {
	requestID := r.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return usecase.Request{
		RequestID:   requestID,
		CallbackURL: r.CallbackURL,
		URLs:        r.URLs,
		Conf:        r.Conf,
		IoU:         r.IoU,
		ImageSize:   r.ImageSize,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router. secret is the
// shared HMAC secret used by the local callback receiver; it may be empty.
func RegisterRoutes(router *gin.Engine, svc *usecase.Service, runner *usecase.Runner, callbackStore store.Store, secret string, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.POST("/infer", authMiddleware, func(c *gin.Context) {
		var req inferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.CallbackURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "callback_url is required"})
			return
		}

		job := req.toUsecase()
		runner.Go("handlers.infer", job.RequestID, func() error {
			// Detached from the request context: the task outlives the
			// 202 response.
			return svc.Process(context.Background(), job)
		})

		c.JSON(http.StatusAccepted, gin.H{
			"request_id": job.RequestID,
			"status":     "accepted",
		})
	})

	router.POST("/infer_sync", authMiddleware, func(c *gin.Context) {
		var req inferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		job := req.toUsecase()
		results := svc.InferBatch(c.Request.Context(), job)
		c.JSON(http.StatusOK, gin.H{
			"request_id": job.RequestID,
			"results":    results,
		})
	})

	// Local round-trip testing of the callback mechanism. Not meant for
	// production traffic.
	router.POST("/callback", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
			return
		}

		signature := c.GetHeader(callback.SignatureHeader)
		if secret != "" && signature != "" {
			if !callback.Verify([]byte(secret), body, signature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad signature"})
				return
			}
		}

		var payload struct {
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}

		if err := callbackStore.Save(c.Request.Context(), payload.RequestID, body); err != nil {
			logger.Error("failed to store callback payload",
				zap.String("request_id", payload.RequestID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store payload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.GET("/last/:request_id", func(c *gin.Context) {
		body, ok, err := callbackStore.Last(c.Request.Context(), c.Param("request_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusOK, gin.H{"error": "not found"})
			return
		}
		c.Data(http.StatusOK, "application/json", body)
	})
}
