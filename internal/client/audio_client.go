package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/config"
)

// AudioClient talks to the audio processing microservice, which handles
// mixing the dubbed voice with the original background track. The
// service downloads the inputs and uploads the output itself, so only
// references cross this boundary.
type AudioClient struct {
	httpClient *http.Client
	baseURL    string
}

// MixRequest represents the request for mixing two tracks.
type MixRequest struct {
	VoiceURL      string  `json:"voice_url"`
	BackgroundURL string  `json:"background_url"`
	VoiceGain     float64 `json:"voice_gain,omitempty"`
	BackgroundGain float64 `json:"background_gain,omitempty"`
	OutputKey     string  `json:"output_key"`
}

// MixResponse represents the response from mixing.
type MixResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration"`
}

// NewAudioClient creates a new audio processing client.
func NewAudioClient(cfg *config.AudioConfig) *AudioClient {
	return &AudioClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Mix combines the dubbed voice with the background track and returns a
// reference to the mixed audio.
func (c *AudioClient) Mix(ctx context.Context, voiceRef, backgroundRef string) (string, error) {
	const op = "mix"

	reqBody := MixRequest{
		VoiceURL:       voiceRef,
		BackgroundURL:  backgroundRef,
		VoiceGain:      0.8,
		BackgroundGain: 0.3,
		OutputKey:      fmt.Sprintf("mixed/%s.mp3", uuid.New().String()),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mix", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError("audio", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("audio", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("audio", op, resp.StatusCode, string(respBody))
	}

	var mixResp MixResponse
	if err := json.Unmarshal(respBody, &mixResp); err != nil {
		return "", &Error{Kind: KindPermanent, Provider: "audio", Op: op,
			Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if mixResp.OutputURL == "" {
		return "", &Error{Kind: KindPermanent, Provider: "audio", Op: op,
			Err: fmt.Errorf("no output URL in response")}
	}

	return mixResp.OutputURL, nil
}

// HealthCheck pings the audio service.
func (c *AudioClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration.
func (c *AudioClient) IsConfigured() bool {
	return c.baseURL != ""
}
