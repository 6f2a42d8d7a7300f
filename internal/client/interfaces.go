package client

import (
	"context"
	"io"
	"time"
)

// Capability interfaces over the external AI providers. Every call is
// bounded by the provider's configured timeout, returns references or
// text only, and never touches job state. Implementations classify
// their failures via *Error.

// Transcriber produces a transcript from an audio reference.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
	IsConfigured() bool
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	IsConfigured() bool
}

// Synthesizer renders speech for the target language and returns a
// reference to the stored audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, targetLanguage, voiceProfile string) (string, error)
	IsConfigured() bool
}

// Mixer combines a dubbed voice track with a background track and
// returns a reference to the mixed audio.
type Mixer interface {
	Mix(ctx context.Context, voiceRef, backgroundRef string) (string, error)
	IsConfigured() bool
}

// StorageClient defines the interface for object storage operations.
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	GetPublicURL(key string) string
}
