// Package fal is a client for the fal.ai queue API: submit a generation or
// training job, poll its status, fetch the result. Covers the three
// applications the pipeline uses (flux dev, flux-lora, flux-lora-fast-training)
// plus file upload for training archives.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vincent-petithory/dataurl"
	"golang.org/x/time/rate"

	"github.com/awender/fableforge/constants"
	"github.com/awender/fableforge/util"
)

const (
	QUEUE_URL   = "https://queue.fal.run"
	STORAGE_URL = "https://rest.alpha.fal.ai/storage/upload/initiate?storage_type=fal-cdn-v3"

	// Poll pacing against the queue status endpoint
	statusPollRate  = rate.Limit(1) // 1 req/s
	statusPollBurst = 1
)

// error returned by the fal.ai queue
type ApiError struct {
	Message   string
	Body      string
	Status    int
	Err       error
	Retryable bool
}

func (a *ApiError) Error() string {
	return fmt.Sprintf("status=%d: %s", a.Status, a.Message)
}

func (a *ApiError) Temporary() bool {
	return a.Retryable || a.Status == http.StatusTooManyRequests || a.Status >= 500 ||
		(a.Err != nil && util.IsTemporaryError(a.Err))
}

func (a *ApiError) Unwrap() error {
	return a.Err
}

// LoraWeight references one trained adapter in a generation request.
type LoraWeight struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

// GenerateInput is the request body for the flux applications.
type GenerateInput struct {
	Prompt            string       `json:"prompt"`
	NegativePrompt    string       `json:"negative_prompt,omitempty"`
	Loras             []LoraWeight `json:"loras,omitempty"`
	ImageSize         string       `json:"image_size,omitempty"` // "landscape_4_3", "square_hd", ...
	NumInferenceSteps int          `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64      `json:"guidance_scale,omitempty"`
	NumImages         int          `json:"num_images,omitempty"`
	Seed              *uint64      `json:"seed,omitempty"`
}

type Image struct {
	Url         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

type GenerateOutput struct {
	Images []Image `json:"images"`
	Seed   uint64  `json:"seed"`
}

// TrainInput is the request body for flux-lora-fast-training.
type TrainInput struct {
	ImagesDataUrl string `json:"images_data_url"`
	TriggerWord   string `json:"trigger_word"`
	IsStyle       bool   `json:"is_style"`
	Steps         int    `json:"steps,omitempty"`
}

type File struct {
	Url      string `json:"url"`
	FileName string `json:"file_name"`
}

type TrainOutput struct {
	DiffusersLoraFile File `json:"diffusers_lora_file"`
	ConfigFile        File `json:"config_file"`
}

type queueStatus struct {
	Status      string `json:"status"` // IN_QUEUE / IN_PROGRESS / COMPLETED
	RequestId   string `json:"request_id"`
	StatusUrl   string `json:"status_url"`
	ResponseUrl string `json:"response_url"`
	QueuePos    int    `json:"queue_position"`
}

// Client talks to one fal.ai account. Safe for concurrent use; status polls
// are rate limited across goroutines.
type Client struct {
	apiKey   string
	queueUrl string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient builds a client, falling back to the FAL_API_KEY env when the
// key argument is empty.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(constants.ENV_FAL_API_KEY)
		if apiKey == "" {
			return nil, fmt.Errorf("fal api key or %s env not set", constants.ENV_FAL_API_KEY)
		}
	}
	return &Client{
		apiKey:   apiKey,
		queueUrl: QUEUE_URL,
		http:     &http.Client{Timeout: 5 * time.Minute},
		limiter:  rate.NewLimiter(statusPollRate, statusPollBurst),
	}, nil
}

// Generate runs one image generation job to completion.
func (c *Client) Generate(ctx context.Context, app string, input *GenerateInput) (*GenerateOutput, error) {
	return Subscribe[GenerateOutput](ctx, c, app, input)
}

// Train runs one LoRA training job to completion. Training jobs routinely
// take several minutes; the context bounds the total wait.
func (c *Client) Train(ctx context.Context, input *TrainInput) (*TrainOutput, error) {
	return Subscribe[TrainOutput](ctx, c, constants.FAL_APP_LORA_TRAINING, input)
}

// Subscribe submits a job to the queue, polls until it completes, and
// decodes the result into T.
func Subscribe[T any](ctx context.Context, c *Client, app string, input any) (*T, error) {
	status, err := c.submit(ctx, app, input)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"app": app, "request_id": status.RequestId}).Debug("fal job queued")

	if err := c.waitDone(ctx, status); err != nil {
		return nil, err
	}

	var body []byte
	if body, err = c.get(ctx, status.ResponseUrl); err != nil {
		return nil, err
	}
	result, err := util.UnmarshalJson[T](body)
	if err != nil {
		return nil, &ApiError{Message: "failed to decode job result", Err: err}
	}
	return &result, nil
}

// UploadFile uploads a local file to fal storage and returns its URL, for
// use as images_data_url in training requests.
func (c *Client) UploadFile(ctx context.Context, path string, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	initBody, err := json.Marshal(map[string]string{
		"file_name":    fileBaseName(path),
		"content_type": contentType,
	})
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, "POST", STORAGE_URL, bytes.NewReader(initBody), "application/json")
	if err != nil {
		return "", err
	}
	var initResp struct {
		FileUrl   string `json:"file_url"`
		UploadUrl string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &initResp); err != nil {
		return "", &ApiError{Message: "failed to decode upload initiation", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", initResp.UploadUrl, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ApiError{Message: "upload failed", Err: err, Retryable: true}
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &ApiError{Status: resp.StatusCode, Body: string(respBody), Message: "upload rejected"}
	}
	return initResp.FileUrl, nil
}

// FetchImage downloads a result image. Handles both https and inline data:
// URLs, which the queue returns for small results.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		du, err := dataurl.DecodeString(url)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data url: %w", err)
		}
		return du.Data, nil
	}
	return c.get(ctx, url)
}

func (c *Client) submit(ctx context.Context, app string, input any) (*queueStatus, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := c.do(ctx, "POST", fmt.Sprintf("%s/%s", c.queueUrl, app), bytes.NewReader(jsonData), "application/json")
	if err != nil {
		return nil, err
	}
	var status queueStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &ApiError{Message: "failed to decode queue response", Err: err, Retryable: true}
	}
	if status.StatusUrl == "" || status.ResponseUrl == "" {
		return nil, &ApiError{Message: "queue response missing status/response urls", Body: string(body)}
	}
	return &status, nil
}

func (c *Client) waitDone(ctx context.Context, status *queueStatus) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		body, err := c.get(ctx, status.StatusUrl)
		if err != nil {
			return err
		}
		var s queueStatus
		if err := json.Unmarshal(body, &s); err != nil {
			return &ApiError{Message: "failed to decode status", Err: err, Retryable: true}
		}
		switch s.Status {
		case "COMPLETED":
			return nil
		case "IN_QUEUE":
			log.WithFields(log.Fields{"request_id": status.RequestId, "position": s.QueuePos}).Debug("fal job in queue")
		case "IN_PROGRESS":
			log.WithField("request_id", status.RequestId).Debug("fal job in progress")
		default:
			return &ApiError{Message: fmt.Sprintf("unexpected job status %q", s.Status), Body: string(body)}
		}
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, "GET", url, nil, "")
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ApiError{Message: "request failed", Err: err, Retryable: true}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ApiError{Message: "failed to read response body", Err: err, Retryable: true}
	}
	if resp.StatusCode != 200 && resp.StatusCode != 202 {
		return nil, &ApiError{
			Status:    resp.StatusCode,
			Body:      string(respBody),
			Message:   fmt.Sprintf("fal API returned status %d", resp.StatusCode),
			Retryable: resp.StatusCode == 429 || resp.StatusCode >= 500,
		}
	}
	return respBody, nil
}

func fileBaseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
