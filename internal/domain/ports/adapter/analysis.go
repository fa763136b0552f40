package adapter

import (
	"context"
	"fmt"
	"io"
)

// Analysis error codes surfaced to API callers.
const (
	AnalysisCodeFailed          = "ANALYSIS_FAILED"
	AnalysisCodeWorkflowStarted = "WORKFLOW_STARTED"
	AnalysisCodeTimeout         = "TIMEOUT"
	AnalysisCodeWebhookError    = "WEBHOOK_ERROR"
	AnalysisCodeNetworkError    = "NETWORK_ERROR"
	AnalysisCodeInvalidResponse = "INVALID_RESPONSE"
)

// AnalysisError classifies a failed analysis call so the handler can pick
// the matching HTTP status. Timeout is deliberately distinct from generic
// network failure; the caller may retry a timeout.
type AnalysisError struct {
	Code    string
	Message string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis: %s (%s)", e.Message, e.Code)
}

// AnalysisService is the hex port for the external nutrition-analysis
// workflow. The implementation owns the request deadline.
type AnalysisService interface {
	// Analyze forwards the image and returns the workflow's structured
	// nutrition data. Failures are *AnalysisError.
	Analyze(ctx context.Context, image io.Reader, filename, contentType, userID string) (map[string]interface{}, error)
}
