package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/config"
)

// DeepgramClient handles speech-to-text via the Deepgram prerecorded API.
// Audio is passed by reference: Deepgram fetches the URL itself, so no
// audio bytes flow through this service.
type DeepgramClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type deepgramURLSource struct {
	URL string `json:"url"`
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// NewDeepgramClient creates a new Deepgram API client.
func NewDeepgramClient(cfg *config.DeepgramConfig) *DeepgramClient {
	return &DeepgramClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Transcribe transcribes the audio at audioRef and returns the transcript.
func (c *DeepgramClient) Transcribe(ctx context.Context, audioRef string) (string, error) {
	const op = "transcribe"

	bodyBytes, err := json.Marshal(deepgramURLSource{URL: audioRef})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	params := url.Values{}
	params.Set("model", c.model)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	endpoint := c.baseURL + "/listen?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError("deepgram", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("deepgram", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("deepgram", op, resp.StatusCode, string(respBody))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(respBody, &dgResp); err != nil {
		return "", &Error{Kind: KindPermanent, Provider: "deepgram", Op: op,
			Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if len(dgResp.Results.Channels) == 0 || len(dgResp.Results.Channels[0].Alternatives) == 0 {
		return "", &Error{Kind: KindPermanent, Provider: "deepgram", Op: op,
			Err: fmt.Errorf("no transcript in response")}
	}

	return dgResp.Results.Channels[0].Alternatives[0].Transcript, nil
}

// IsConfigured returns true if the client has valid configuration.
func (c *DeepgramClient) IsConfigured() bool {
	return c.apiKey != ""
}
