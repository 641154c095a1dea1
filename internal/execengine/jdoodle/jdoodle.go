// Package jdoodle implements execengine.Engine against the JDoodle
// execute API.
package jdoodle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultURL = "https://api.jdoodle.com/v1/execute"

// versionIndex per supported language, as required by the execute API.
var versionIndex = map[string]string{
	"python3": "3",
	"java":    "3",
	"cpp":     "4",
	"nodejs":  "3",
	"c":       "4",
	"ruby":    "3",
	"go":      "3",
	"scala":   "3",
	"bash":    "3",
	"sql":     "3",
	"pascal":  "2",
	"csharp":  "3",
	"php":     "3",
	"swift":   "3",
	"rust":    "3",
	"r":       "3",
}

// Engine calls the JDoodle execute endpoint.
type Engine struct {
	url          string
	clientID     string
	clientSecret string
	http         *http.Client
}

// Option overrides Engine defaults.
type Option func(*Engine)

// WithURL points the engine at a different execute endpoint. Used by tests
// and self-hosted compatible backends.
func WithURL(url string) Option {
	return func(e *Engine) {
		e.url = url
	}
}

// WithTimeout bounds a single execute call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.http.Timeout = d
	}
}

// New creates an engine with the given API credentials.
func New(clientID, clientSecret string, opts ...Option) *Engine {
	e := &Engine{
		url:          defaultURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type executeRequest struct {
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type executeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Run submits the source to the execute API and returns its output.
func (e *Engine) Run(ctx context.Context, code, language string) (string, error) {
	index, ok := versionIndex[language]
	if !ok {
		return "", fmt.Errorf("unsupported language %q", language)
	}
	if e.clientID == "" || e.clientSecret == "" {
		return "", fmt.Errorf("execution backend credentials are not configured")
	}

	body, err := json.Marshal(executeRequest{
		Script:       code,
		Language:     language,
		VersionIndex: index,
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call execution backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read execute response: %w", err)
	}

	var out executeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode execute response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("execution backend: %s", out.Error)
		}
		return "", fmt.Errorf("execution backend returned status %d", resp.StatusCode)
	}
	return out.Output, nil
}

// Supported reports whether the engine knows the language.
func Supported(language string) bool {
	_, ok := versionIndex[language]
	return ok
}
