// Package genai is a Gemini REST client for structured query derivation and
// streamed answer generation.
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel    = "gemini-1.5-flash"
	maxSSELineBytes = 1 << 20
)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	BreakerFailures uint32
	BreakerOpenTime time.Duration
}

// Client calls generateContent and streamGenerateContent. Both go through a
// single circuit breaker; a stream counts as successful once headers arrive.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     Logger
}

func NewClient(cfg Config, httpClient *http.Client, log Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTime == 0 {
		cfg.BreakerOpenTime = 30 * time.Second
	}
	if httpClient == nil {
		// No client-level timeout: it would cut long streams. Calls are
		// bounded by context deadlines instead.
		httpClient = &http.Client{}
	}

	c := &Client{config: cfg, httpClient: httpClient, logger: log}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "genai:" + cfg.Model,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// GenerateQueries runs a non-streaming call in JSON mode constrained by
// schema and returns the raw JSON text of the first candidate.
func (c *Client) GenerateQueries(ctx context.Context, prompt string, schema map[string]interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqBody := request{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	resp, err := c.post(ctx, c.endpoint("generateContent", false), reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generateContent response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("generateContent error %d: %s", out.Error.Code, out.Error.Message)
	}
	return []byte(out.text()), nil
}

// GenerateStream starts a streamed generation. The returned channel is closed
// when the stream ends; a mid-stream failure is delivered as a delta with Err
// set and is the last value sent.
func (c *Client) GenerateStream(parent context.Context, prompt string) (<-chan models.AnswerDelta, error) {
	ctx, cancel := context.WithTimeout(parent, c.config.Timeout)

	reqBody := request{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}

	resp, err := c.post(ctx, c.endpoint("streamGenerateContent", true), reqBody)
	if err != nil {
		cancel()
		return nil, err
	}

	ch := make(chan models.AnswerDelta, 16)
	go func() {
		defer close(ch)
		defer cancel()
		defer resp.Body.Close()

		// Sends only give up when the consumer's context is gone, so a
		// timeout error is still delivered.
		send := func(d models.AnswerDelta) bool {
			select {
			case ch <- d:
				return true
			case <-parent.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.HasPrefix(line, []byte("data:")) {
				continue
			}
			data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
			if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
				continue
			}

			var chunk response
			if err := json.Unmarshal(data, &chunk); err != nil {
				send(models.AnswerDelta{Err: fmt.Errorf("decode stream chunk: %w", err)})
				return
			}
			if chunk.Error != nil {
				send(models.AnswerDelta{Err: fmt.Errorf("stream error %d: %s", chunk.Error.Code, chunk.Error.Message)})
				return
			}
			if text := chunk.text(); text != "" {
				if !send(models.AnswerDelta{Text: text}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			send(models.AnswerDelta{Err: fmt.Errorf("read stream: %w", err)})
			return
		}
		if err := ctx.Err(); err != nil {
			send(models.AnswerDelta{Err: err})
		}
	}()

	return ch, nil
}

func (c *Client) endpoint(method string, sse bool) string {
	url := fmt.Sprintf("%s/models/%s:%s?key=%s", c.config.BaseURL, c.config.Model, method, c.config.APIKey)
	if sse {
		url += "&alt=sse"
	}
	return url
}

// post sends body through the breaker and returns a 2xx response with an open body.
func (c *Client) post(ctx context.Context, url string, body request) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("genai returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewCircuitOpenError("genai", err)
		}
		return nil, err
	}
	return resp, nil
}

// State reports the breaker state for readiness checks.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
