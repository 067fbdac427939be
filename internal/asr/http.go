package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/tboby/wyoming-onnx-asr/internal/audio"
	"github.com/tboby/wyoming-onnx-asr/internal/config"
)

// HTTPClient sends utterances to a remote transcription API. The waveform
// is posted as a WAV file in a multipart form along with the language and
// sample rate; the response is JSON carrying the transcript text.
type HTTPClient struct {
	log        *slog.Logger
	endpoint   string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
}

// transcriptionResponse is the expected response body of the remote API.
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// NewHTTPClient builds the remote API backend.
func NewHTTPClient(cfg config.ModelConfig, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("asr: http backend %q requires an endpoint", cfg.Tag)
	}

	return &HTTPClient{
		log:        logger,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Name,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{},
	}, nil
}

// Recognize implements the Recognizer interface. Transient failures are
// retried with exponential backoff up to the configured limit; the
// caller's context bounds the whole attempt sequence.
func (c *HTTPClient) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	wav, err := audio.EncodeWAVFloat32(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("asr: failed to encode utterance: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.log.Debug("retrying transcription request",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("asr: transcription interrupted: %w", ctx.Err())
			}
		}

		text, err := c.doRequest(ctx, wav, sampleRate, language)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("asr: transcription interrupted: %w", ctx.Err())
		}
		lastErr = err
	}

	return "", fmt.Errorf("asr: transcription failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doRequest performs a single multipart POST to the transcription API.
func (c *HTTPClient) doRequest(ctx context.Context, wav []byte, sampleRate int, language string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("language", language); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := form.WriteField("sample_rate", strconv.Itoa(sampleRate)); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}

	part, err := form.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Text, nil
}
