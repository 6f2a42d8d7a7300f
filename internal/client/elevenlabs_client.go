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

// Default multilingual voices per language. A caller-supplied voice
// profile overrides these.
var defaultVoices = map[string]string{
	"en": "21m00Tcm4TlvDq8ikWAM",
	"es": "VR6AewLTigWG4xSOukaG",
	"fr": "EXAVITQu4vr4xnSDxMaL",
	"de": "ErXwobaYiN019PkySvjV",
}

const fallbackVoice = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsClient handles text-to-speech via the ElevenLabs API. The
// synthesized audio is uploaded to object storage and only its reference
// is returned, keeping the orchestrator byte-free.
type ElevenLabsClient struct {
	httpClient *http.Client
	storage    StorageClient
	baseURL    string
	apiKey     string
	model      string
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs API client.
func NewElevenLabsClient(cfg *config.ElevenLabsConfig, storage StorageClient) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		storage: storage,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Synthesize renders speech for text in the target language, stores the
// audio and returns its reference.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, targetLanguage, voiceProfile string) (string, error) {
	const op = "synthesize"

	if c.storage == nil {
		// Without storage there is nowhere to put the audio; fail the
		// task cleanly instead of retrying into the same wall.
		return "", &Error{Kind: KindPermanent, Provider: "elevenlabs", Op: op,
			Err: fmt.Errorf("object storage not configured")}
	}

	voiceID := voiceProfile
	if voiceID == "" {
		voiceID = c.voiceForLanguage(targetLanguage)
	}

	reqBody := synthesizeRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			UseSpeakerBoost: true,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError("elevenlabs", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", statusError("elevenlabs", op, resp.StatusCode, string(respBody))
	}

	key := fmt.Sprintf("synth/%s/%s.mp3", targetLanguage, uuid.New().String())
	ref, err := c.storage.Upload(ctx, key, resp.Body, "audio/mpeg")
	if err != nil {
		// Upload failures are storage-side and worth a retry.
		return "", &Error{Kind: KindTransient, Provider: "elevenlabs", Op: op,
			Err: fmt.Errorf("failed to store synthesized audio: %w", err)}
	}

	return ref, nil
}

func (c *ElevenLabsClient) voiceForLanguage(language string) string {
	if voice, ok := defaultVoices[language]; ok {
		return voice
	}
	// eleven_multilingual_v2 speaks any supported language with any voice.
	return fallbackVoice
}

// IsConfigured returns true if the client has valid configuration.
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != "" && c.storage != nil
}
