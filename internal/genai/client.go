// Package genai is a minimal client for the Gemini generateContent REST
// endpoint. One POST per visitor message, no retries: failures are mapped to
// user-visible fallbacks by the chat selector, so the client fails fast.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 30 * time.Second
)

// ErrInvalidCredential is returned when the backend rejects the API key.
var ErrInvalidCredential = errors.New("invalid API credential")

// ErrEmptyResponse is returned when the backend answers successfully but the
// expected text fragment is missing.
var ErrEmptyResponse = errors.New("response contained no generated text")

// Client communicates with the Gemini API. The API key is passed per call
// because it lives in the profile record and can change at runtime.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a Client for the given model. If model is empty the default is
// used; if timeout <= 0 the default (30s) is used.
func New(model string, timeout time.Duration) *Client {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    defaultBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewWithBaseURL(model string, timeout time.Duration, baseURL string) *Client {
	c := New(model, timeout)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type generateRequest struct {
	Contents []reqContent `json:"contents"`
}

type reqContent struct {
	Parts []reqPart `json:"parts"`
}

type reqPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate submits one prompt and returns the first generated text fragment.
// A non-success status, an error body, or a response without the expected
// fragment is a failure. The key must be non-empty; the caller is
// responsible for never reaching here without a credential.
func (c *Client) Generate(ctx context.Context, prompt, apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrInvalidCredential
	}

	body, err := json.Marshal(generateRequest{
		Contents: []reqContent{{Parts: []reqPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if isCredentialRejection(resp.StatusCode, string(respBody)) {
			return "", fmt.Errorf("%w (HTTP %d)", ErrInvalidCredential, resp.StatusCode)
		}
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		if isCredentialRejection(parsed.Error.Code, parsed.Error.Message) {
			return "", fmt.Errorf("%w: %s", ErrInvalidCredential, parsed.Error.Message)
		}
		return "", fmt.Errorf("backend error %s: %s", parsed.Error.Status, parsed.Error.Message)
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", ErrEmptyResponse
}

// isCredentialRejection covers the statuses Gemini uses for key problems:
// 401/403 always, and 400 only when the body names the API key
// (API_KEY_INVALID arrives as a 400 INVALID_ARGUMENT).
func isCredentialRejection(code int, detail string) bool {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	if code == http.StatusBadRequest {
		lower := strings.ToLower(detail)
		return strings.Contains(lower, "api key") || strings.Contains(lower, "api_key")
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
