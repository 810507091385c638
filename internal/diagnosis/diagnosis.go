package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
)

// Kind classifies a diagnosis failure.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "notfound"
	KindBadRequest Kind = "badrequest"
	KindRateLimit  Kind = "ratelimit"
	KindOther      Kind = "other"
	KindNetwork    Kind = "network"
	KindDecode     Kind = "decode"
)

// APIError is a failed diagnosis request.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("diagnosis request failed (%s, status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("diagnosis request failed (%s): %s", e.Kind, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

func kindFromStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindPermission
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusTooManyRequests:
		return KindRateLimit
	}
	return KindOther
}

// Message returns the text shown to the user for a diagnosis failure.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, model.ErrNotValid) {
			return fmt.Sprintf("Diagnosis is not configured: %v", err)
		}
		return fmt.Sprintf("Diagnosis failed: %v", err)
	}

	switch apiErr.Kind {
	case KindAuth:
		return "Diagnosis failed: the API key was rejected, check it in the settings."
	case KindPermission:
		return "Diagnosis failed: the API key has no permission to use this model."
	case KindNotFound:
		return "Diagnosis failed: the model or endpoint was not found, check the settings."
	case KindBadRequest:
		return fmt.Sprintf("Diagnosis failed: the request was rejected: %s", apiErr.Message)
	case KindRateLimit:
		return "Diagnosis failed: rate limit reached, try again later."
	case KindNetwork:
		return fmt.Sprintf("Diagnosis failed: could not reach the service: %v", apiErr.Err)
	case KindDecode:
		return "Diagnosis failed: the service returned an unexpected response."
	}
	return fmt.Sprintf("Diagnosis failed: %s", apiErr.Error())
}

// Request is a single diagnosis call.
type Request struct {
	Endpoint string
	APIKey   string
	Model    string
	Prompt   string
}

func (r Request) validate() error {
	if strings.TrimSpace(r.APIKey) == "" {
		return fmt.Errorf("api key is required: %w", model.ErrNotValid)
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("model is required: %w", model.ErrNotValid)
	}
	if strings.TrimSpace(r.Endpoint) == "" {
		return fmt.Errorf("endpoint is required: %w", model.ErrNotValid)
	}
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required: %w", model.ErrNotValid)
	}
	return nil
}

// ClientConfig is the configuration for the diagnosis client.
type ClientConfig struct {
	Timeout time.Duration
	Logger  log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "diagnosis.Client"})
	return nil
}

// Client calls the remote generative model API.
type Client struct {
	http   *resty.Client
	logger log.Logger
}

// NewClient creates a new diagnosis client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		logger: cfg.Logger,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Diagnose sends the prompt and returns the generated text.
func (c *Client) Diagnose(ctx context.Context, r Request) (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(r.Endpoint, "/"), r.Model)
	body := generateRequest{Contents: []content{{Parts: []part{{Text: r.Prompt}}}}}

	c.logger.Debugf("Requesting diagnosis to model %q (%d prompt bytes)", r.Model, len(r.Prompt))
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", r.APIKey).
		SetBody(body).
		Post(url)
	if err != nil {
		return "", &APIError{Kind: KindNetwork, Err: err}
	}

	if resp.IsError() {
		apiErr := &APIError{Kind: kindFromStatus(resp.StatusCode()), StatusCode: resp.StatusCode()}
		var er errorResponse
		if err := json.Unmarshal(resp.Body(), &er); err == nil && er.Error.Message != "" {
			apiErr.Message = er.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(resp.Status())
		}
		return "", apiErr
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		return "", &APIError{Kind: KindDecode, StatusCode: resp.StatusCode(), Err: err}
	}

	if len(gr.Candidates) > 0 && len(gr.Candidates[0].Content.Parts) > 0 {
		return gr.Candidates[0].Content.Parts[0].Text, nil
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("The prompt was blocked: %s", gr.PromptFeedback.BlockReason), nil
	}

	return "", &APIError{Kind: KindDecode, StatusCode: resp.StatusCode(), Message: "response has no candidates"}
}
