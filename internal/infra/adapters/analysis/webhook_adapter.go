package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/infra/metrics"
)

var _ adapter.AnalysisService = (*WebhookAnalyzer)(nil)

// WebhookAnalyzer forwards the meal image to the workflow engine's webhook
// and reshapes the response. Analysis is slow; the adapter owns the upper
// bound on the call (120s by default) and reports a timeout as its own
// error code so callers can tell it apart from a dead endpoint.
type WebhookAnalyzer struct {
	webhookURL string
	timeout    time.Duration
	client     *http.Client
}

func NewWebhookAnalyzer(webhookURL string, timeout time.Duration) (*WebhookAnalyzer, error) {
	if webhookURL == "" {
		return nil, errors.New("analysis webhook url empty")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &WebhookAnalyzer{
		webhookURL: webhookURL,
		timeout:    timeout,
		client:     &http.Client{},
	}, nil
}

func (a *WebhookAnalyzer) Analyze(ctx context.Context, image io.Reader, filename, contentType, userID string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = "anonymous"
	}
	if err := mw.WriteField("userId", userID); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := a.client.Do(req)
	elapsed := time.Since(start)
	metrics.ObserveAnalysisLatency(float64(elapsed.Milliseconds()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &adapter.AnalysisError{
				Code:    adapter.AnalysisCodeTimeout,
				Message: "analysis timed out, try again",
			}
		}
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeNetworkError,
			Message: "could not reach the analysis service",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeWebhookError,
			Message: fmt.Sprintf("analysis service unavailable (%d)", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeNetworkError,
			Message: "failed reading analysis response",
		}
	}

	return reshape(body)
}

// reshape normalizes the workflow's response envelope. The engine answers
// in one of three forms: {success:false, error:{...}}, a bare
// "Workflow was started" receipt when the run is async, or the analysis
// payload (optionally wrapped in {data:...}).
func reshape(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeInvalidResponse,
			Message: "empty response from analysis service",
		}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeInvalidResponse,
			Message: "malformed response from analysis service",
		}
	}

	if ok, present := result["success"].(bool); present && !ok {
		code := adapter.AnalysisCodeFailed
		message := "food analysis failed"
		if e, ok := result["error"].(map[string]interface{}); ok {
			if v, ok := e["code"].(string); ok && v != "" {
				code = v
			}
			if v, ok := e["message"].(string); ok && v != "" {
				message = v
			}
		}
		return nil, &adapter.AnalysisError{Code: code, Message: message}
	}

	if msg, _ := result["message"].(string); msg == "Workflow was started" && result["data"] == nil {
		return nil, &adapter.AnalysisError{
			Code:    adapter.AnalysisCodeWorkflowStarted,
			Message: "workflow started but no analysis result was returned yet",
		}
	}

	if data, ok := result["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return result, nil
}
