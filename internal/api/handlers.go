// Package api exposes the triage service over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rakhimov-me/smax-ai/internal/database"
	"github.com/rakhimov-me/smax-ai/internal/ingest"
	"github.com/rakhimov-me/smax-ai/internal/logger"
	"github.com/rakhimov-me/smax-ai/internal/model"
	"github.com/rakhimov-me/smax-ai/internal/store"
	"github.com/rakhimov-me/smax-ai/internal/triage"
)

// Handler handles HTTP requests for the triage API
type Handler struct {
	service *triage.Service
	history *database.HistoryRepository
	log     logger.Logger

	serviceName    string
	serviceVersion string
}

// NewHandler creates a new API handler. The history repository may be nil
// when the embedded database is disabled.
func NewHandler(service *triage.Service, history *database.HistoryRepository, name, version string, log logger.Logger) *Handler {
	return &Handler{
		service:        service,
		history:        history,
		log:            log,
		serviceName:    name,
		serviceVersion: version,
	}
}

// PredictRequest represents a single prediction request
type PredictRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// ReloadRequest names one source file to reload; empty means all.
type ReloadRequest struct {
	File string `json:"file"`
}

// ThresholdRequest carries a new confidence threshold.
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold" binding:"required"`
}

// Predict handles POST /api/v1/predict
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("invalid prediction request", logger.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse("Поле title обязательно"))
		return
	}

	pred := h.service.Predict(c.Request.Context(), req.Title, req.Description)

	c.JSON(http.StatusOK, PredictResponse{
		Prediction:   pred,
		Status:       statusSuccess,
		ModelTrained: h.service.IsTrained(),
		Timestamp:    time.Now(),
	})
}

// Ingest handles POST /api/v1/ingest
func (h *Handler) Ingest(c *gin.Context) {
	added, err := h.service.IngestAndTrain(c.Request.Context())
	if err != nil {
		h.ingestError(c, err)
		return
	}

	stats, _ := h.service.Stats()
	c.JSON(http.StatusOK, IngestResponse{
		Status:        statusSuccess,
		RecordsLoaded: added,
		TotalRecords:  stats.TotalRecords,
		ModelTrained:  h.service.IsTrained(),
	})
}

// Reload handles POST /api/v1/ingest/reload
func (h *Handler) Reload(c *gin.Context) {
	var req ReloadRequest
	// Body is optional: no body means reload everything.
	_ = c.ShouldBindJSON(&req)

	added, err := h.service.ForceReloadAndRetrain(c.Request.Context(), req.File)
	if err != nil {
		h.ingestError(c, err)
		return
	}

	stats, _ := h.service.Stats()
	c.JSON(http.StatusOK, IngestResponse{
		Status:        statusSuccess,
		RecordsLoaded: added,
		TotalRecords:  stats.TotalRecords,
		ModelTrained:  h.service.IsTrained(),
	})
}

func (h *Handler) ingestError(c *gin.Context, err error) {
	h.log.Error("ingestion failed", logger.Error(err))
	switch {
	case errors.Is(err, ingest.ErrNoSources):
		c.JSON(http.StatusNotFound, errorResponse("Файлы с данными не найдены"))
	case errors.Is(err, ingest.ErrNoRecords):
		c.JSON(http.StatusBadRequest, errorResponse("В новых файлах нет корректных записей"))
	case errors.Is(err, model.ErrInsufficientData):
		c.JSON(http.StatusBadRequest, errorResponse("Недостаточно данных для обучения модели"))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
	}
}

// SaveModel handles POST /api/v1/model/save
func (h *Handler) SaveModel(c *gin.Context) {
	if err := h.service.Save(c.Request.Context()); err != nil {
		if errors.Is(err, triage.ErrNotTrained) {
			c.JSON(http.StatusBadRequest, errorResponse("Модель не обучена - нечего сохранять"))
			return
		}
		h.log.Error("failed to save model", logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Модель сохранена"))
}

// LoadModel handles POST /api/v1/model/load
func (h *Handler) LoadModel(c *gin.Context) {
	if err := h.service.Load(c.Request.Context()); err != nil {
		if errors.Is(err, store.ErrNoBundle) {
			c.JSON(http.StatusNotFound, errorResponse("Сохранённая модель не найдена"))
			return
		}
		h.log.Error("failed to load model", logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Модель загружена"))
}

// ClearModel handles POST /api/v1/model/clear
func (h *Handler) ClearModel(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		h.log.Error("failed to clear model", logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Модель и данные очищены"))
}

// SetThreshold handles PUT /api/v1/model/threshold
func (h *Handler) SetThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Поле threshold обязательно"))
		return
	}
	if err := h.service.SetConfidenceThreshold(*req.Threshold); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Порог должен быть в диапазоне от 0 до 1"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Порог уверенности обновлён"))
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, info := h.service.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": statusSuccess,
		"data":   stats,
		"model":  info,
	})
}

// GetPredictionStats handles GET /api/v1/stats/predictions
func (h *Handler) GetPredictionStats(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, errorResponse("История предсказаний отключена"))
		return
	}
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("failed to get prediction stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	recent, err := h.history.Recent(c.Request.Context(), 20)
	if err != nil {
		h.log.Error("failed to get recent predictions", logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": statusSuccess,
		"stats":  stats,
		"recent": recent,
	})
}

// GetData handles GET /api/v1/data
func (h *Handler) GetData(c *gin.Context) {
	c.JSON(http.StatusOK, DataResponse{
		Groups:  h.service.Groups(),
		Experts: h.service.Experts(),
		Labels:  h.service.Labels(),
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.serviceVersion,
	})
}

// ReadyCheck handles GET /ready. The service is ready once it can serve
// predictions, which it always can: an untrained model degrades to the
// fallback result rather than failing.
func (h *Handler) ReadyCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"model_trained": h.service.IsTrained(),
	})
}
