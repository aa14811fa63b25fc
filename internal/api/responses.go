package api

import (
	"time"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// Response statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// PredictResponse is the envelope for a served prediction.
type PredictResponse struct {
	Prediction   domain.Prediction `json:"prediction"`
	Status       string            `json:"status"`
	ModelTrained bool              `json:"model_trained"`
	Timestamp    time.Time         `json:"timestamp"`
}

// IngestResponse reports one ingestion pass.
type IngestResponse struct {
	Status        string `json:"status"`
	RecordsLoaded int    `json:"records_loaded"`
	TotalRecords  int    `json:"total_records"`
	ModelTrained  bool   `json:"model_trained"`
}

// StatusResponse is the generic success/error envelope.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DataResponse lists the known routing targets.
type DataResponse struct {
	Groups  []string `json:"groups"`
	Experts []string `json:"experts"`
	Labels  []string `json:"labels"`
}

func errorResponse(msg string) StatusResponse {
	return StatusResponse{Status: statusError, Message: msg}
}

func successResponse(msg string) StatusResponse {
	return StatusResponse{Status: statusSuccess, Message: msg}
}
