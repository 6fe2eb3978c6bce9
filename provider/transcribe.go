package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultSpeechBaseURL = "https://api.groq.com/openai/v1"
	defaultSpeechModel   = "whisper-large-v3-turbo"
)

// TranscriberConfig configures an OpenAI-compatible audio transcription API.
type TranscriberConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Transcription is the verbose_json result of a transcription request.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments,omitempty"`
}

// Segment is one timed span of transcribed speech.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber turns recorded speech into text via POST /audio/transcriptions.
type Transcriber struct {
	config TranscriberConfig
}

// NewTranscriber creates a transcriber, defaulting to Groq's Whisper endpoint.
func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSpeechBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultSpeechModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Transcriber{config: cfg}
}

// Transcribe uploads audio under filename and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (*Transcription, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("transcribe: copy audio: %w", err)
	}
	for k, v := range map[string]string{"model": t.config.Model, "response_format": "verbose_json"} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("transcribe: write %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcribe: API error (status %d): %s", resp.StatusCode, truncate(string(body), 512))
	}

	var out Transcription
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("transcribe: unmarshal response: %w", err)
	}
	out.Text = strings.TrimSpace(out.Text)
	return &out, nil
}
