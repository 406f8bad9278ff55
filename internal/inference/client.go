package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"partscope/internal/acquisition"
	"partscope/internal/logger"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Client talks to the remote spare-part inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for baseURL. A nil httpClient gets a plain
// http.Client with no request timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes GET /health and returns nil only for a healthy backend with
// its model loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &ConnectivityError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConnectivityError{Err: fmt.Errorf("health check returned status %d", resp.StatusCode)}
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return &ConnectivityError{Err: fmt.Errorf("malformed health response: %w", err)}
	}

	if health.Status != "healthy" || !health.ModelLoaded {
		return &ModelUnavailableError{Status: health.Status, ModelLoaded: health.ModelLoaded}
	}
	return nil
}

// CheckHealth runs Health and folds the outcome into a Readiness.
func (c *Client) CheckHealth(ctx context.Context) Readiness {
	if err := c.Health(ctx); err != nil {
		if cause := unwrapCause(err); cause != nil {
			c.logger.Error("Failed to connect to API at %s: %v", c.baseURL, cause)
		} else {
			c.logger.Warning("API at %s is not ready: %v", c.baseURL, err)
		}
		return Readiness{State: StateError, Message: err.Error()}
	}

	c.logger.Info("API at %s is ready", c.baseURL)
	return Readiness{State: StateReady}
}

// Predict uploads the payload blob as multipart field "file" and decodes
// the prediction. Every failure is a *PredictionError.
func (c *Client) Predict(ctx context.Context, payload *acquisition.ImagePayload) (*PredictionResult, error) {
	body, contentType, err := multipartBody(payload.Blob)
	if err != nil {
		return nil, &PredictionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", body)
	if err != nil {
		return nil, &PredictionError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Prediction request for %s failed: %v", payload.Blob.Name, err)
		return nil, &PredictionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		predErr := &PredictionError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
		c.logger.Error("Prediction for %s returned status %d: %s", payload.Blob.Name, resp.StatusCode, strings.TrimSpace(string(data)))
		return nil, predErr
	}

	var result PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("Failed to decode prediction response: %v", err)
		return nil, &PredictionError{StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Info("Predicted %q (%.4f) for %s in %.3fs", result.PredictedClass, result.Confidence, payload.Blob.Name, result.ProcessingTime)
	return &result, nil
}

func multipartBody(blob acquisition.Blob) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(blob.Name)))
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// errorDetail extracts a string "detail" from an error body. Structured
// details (e.g. validation error lists) are ignored.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(parsed.Detail, &detail); err != nil {
		return ""
	}
	return detail
}

func unwrapCause(err error) error {
	if ce, ok := err.(*ConnectivityError); ok {
		return ce.Err
	}
	return nil
}
