package diagnosis_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/diagnosis"
	"github.com/slok/comfylaunch/internal/model"
)

func TestClientDiagnose(t *testing.T) {
	tests := map[string]struct {
		status  int
		body    string
		expText string
		expKind diagnosis.Kind
	}{
		"a candidate should return its text": {
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"text":"Install the missing module."}]}}]}`,
			expText: "Install the missing module.",
		},
		"a blocked prompt should return the block reason": {
			status:  http.StatusOK,
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			expText: "The prompt was blocked: SAFETY",
		},
		"a response without candidates should be a decode error": {
			status:  http.StatusOK,
			body:    `{}`,
			expKind: diagnosis.KindDecode,
		},
		"a malformed response should be a decode error": {
			status:  http.StatusOK,
			body:    `{"candidates":`,
			expKind: diagnosis.KindDecode,
		},
		"401 should be an auth error": {
			status:  http.StatusUnauthorized,
			body:    `{"error":{"code":401,"message":"bad key","status":"UNAUTHENTICATED"}}`,
			expKind: diagnosis.KindAuth,
		},
		"403 should be a permission error": {
			status:  http.StatusForbidden,
			expKind: diagnosis.KindPermission,
		},
		"404 should be a not found error": {
			status:  http.StatusNotFound,
			expKind: diagnosis.KindNotFound,
		},
		"400 should be a bad request error": {
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			expKind: diagnosis.KindBadRequest,
		},
		"429 should be a rate limit error": {
			status:  http.StatusTooManyRequests,
			expKind: diagnosis.KindRateLimit,
		},
		"500 should be an other error": {
			status:  http.StatusInternalServerError,
			expKind: diagnosis.KindOther,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var gotPath, gotKey, gotPrompt string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.URL.Query().Get("key")
				var req struct {
					Contents []struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"contents"`
				}
				b, _ := io.ReadAll(r.Body)
				if err := json.Unmarshal(b, &req); err == nil && len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
					gotPrompt = req.Contents[0].Parts[0].Text
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}))
			defer srv.Close()

			c, err := diagnosis.NewClient(diagnosis.ClientConfig{})
			require.NoError(err)

			text, err := c.Diagnose(context.Background(), diagnosis.Request{
				Endpoint: srv.URL + "/v1beta/",
				APIKey:   "secret",
				Model:    "gemini-test",
				Prompt:   "why did it crash?",
			})

			assert.Equal("/v1beta/models/gemini-test:generateContent", gotPath)
			assert.Equal("secret", gotKey)
			assert.Equal("why did it crash?", gotPrompt)

			if test.expKind != "" {
				var apiErr *diagnosis.APIError
				require.ErrorAs(err, &apiErr)
				assert.Equal(test.expKind, apiErr.Kind)
				assert.NotEmpty(diagnosis.Message(err))
			} else {
				require.NoError(err)
				assert.Equal(test.expText, text)
			}
		})
	}
}

func TestClientDiagnoseNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := diagnosis.NewClient(diagnosis.ClientConfig{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Diagnose(context.Background(), diagnosis.Request{Endpoint: srv.URL, APIKey: "k", Model: "m", Prompt: "p"})

	var apiErr *diagnosis.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, diagnosis.KindNetwork, apiErr.Kind)
}

func TestClientDiagnoseInvalidRequest(t *testing.T) {
	c, err := diagnosis.NewClient(diagnosis.ClientConfig{})
	require.NoError(t, err)

	tests := map[string]diagnosis.Request{
		"missing api key":  {Endpoint: "http://x", Model: "m", Prompt: "p"},
		"missing model":    {Endpoint: "http://x", APIKey: "k", Prompt: "p"},
		"missing endpoint": {APIKey: "k", Model: "m", Prompt: "p"},
		"missing prompt":   {Endpoint: "http://x", APIKey: "k", Model: "m"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Diagnose(context.Background(), req)
			assert.ErrorIs(t, err, model.ErrNotValid)
		})
	}
}

func TestMessage(t *testing.T) {
	tests := map[string]struct {
		err error
		exp string
	}{
		"no error": {},
		"auth": {
			err: &diagnosis.APIError{Kind: diagnosis.KindAuth, StatusCode: 401},
			exp: "Diagnosis failed: the API key was rejected, check it in the settings.",
		},
		"rate limit wrapped": {
			err: fmt.Errorf("task: %w", &diagnosis.APIError{Kind: diagnosis.KindRateLimit, StatusCode: 429}),
			exp: "Diagnosis failed: rate limit reached, try again later.",
		},
		"bad request": {
			err: &diagnosis.APIError{Kind: diagnosis.KindBadRequest, StatusCode: 400, Message: "API key not valid"},
			exp: "Diagnosis failed: the request was rejected: API key not valid",
		},
		"not configured": {
			err: fmt.Errorf("api key is required: %w", model.ErrNotValid),
			exp: "Diagnosis is not configured: api key is required: not valid",
		},
		"unknown": {
			err: errors.New("boom"),
			exp: "Diagnosis failed: boom",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, diagnosis.Message(test.err))
		})
	}
}
