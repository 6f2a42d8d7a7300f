package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/config"
)

type fakeStorage struct{}

func (fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	return "r2://" + key, nil
}

func (fakeStorage) Delete(ctx context.Context, key string) error { return nil }

func (fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://example.com/" + key, nil
}

func (fakeStorage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return "https://example.com/upload/" + key, nil
}

func (fakeStorage) GetPublicURL(key string) string { return "https://example.com/" + key }

func TestSynthesizeWithoutStorage(t *testing.T) {
	c := NewElevenLabsClient(&config.ElevenLabsConfig{
		APIKey:  "test-key",
		BaseURL: "https://api.elevenlabs.io/v1",
		Model:   "eleven_multilingual_v2",
		Timeout: 5,
	}, nil)

	// Must fail cleanly, not dereference the missing storage client.
	ref, err := c.Synthesize(context.Background(), "hola mundo", "es", "")
	if err == nil {
		t.Fatalf("expected error, got ref %q", ref)
	}
	if !IsPermanent(err) {
		t.Errorf("err = %v, want a permanent classification", err)
	}
}

func TestElevenLabsIsConfigured(t *testing.T) {
	cfg := &config.ElevenLabsConfig{APIKey: "test-key", Timeout: 5}

	if NewElevenLabsClient(cfg, nil).IsConfigured() {
		t.Error("client without storage must report unconfigured")
	}
	if NewElevenLabsClient(&config.ElevenLabsConfig{Timeout: 5}, fakeStorage{}).IsConfigured() {
		t.Error("client without an API key must report unconfigured")
	}
	if !NewElevenLabsClient(cfg, fakeStorage{}).IsConfigured() {
		t.Error("client with key and storage must report configured")
	}
}
