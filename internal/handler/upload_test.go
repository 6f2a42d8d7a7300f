package handler

import (
	"net/http"
	"strings"
	"testing"
)

func TestUploadTargets_Success(t *testing.T) {
	ta := setupApp(t)

	body := `{
		"voiceTrackName": "voice.mp3",
		"backgroundTrackName": "background.mp3",
		"contentType": "audio/mpeg"
	}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/uploads", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}

	voice, ok := result["voiceTrack"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected voiceTrack object, got %v", result["voiceTrack"])
	}
	if voice["ref"] == nil || voice["uploadUrl"] == nil {
		t.Errorf("voiceTrack missing ref or uploadUrl: %v", voice)
	}
	if !strings.Contains(voice["ref"].(string), "voice-voice.mp3") {
		t.Errorf("voice ref should carry the file name, got %v", voice["ref"])
	}

	if result["backgroundTrack"] == nil {
		t.Error("expected backgroundTrack when a name was provided")
	}
}

func TestUploadTargets_VoiceOnly(t *testing.T) {
	ta := setupApp(t)

	body := `{"voiceTrackName": "voice.wav", "contentType": "audio/wav"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/uploads", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["backgroundTrack"] != nil {
		t.Errorf("expected no backgroundTrack, got %v", result["backgroundTrack"])
	}
}

func TestUploadTargets_UnsupportedContentType(t *testing.T) {
	ta := setupApp(t)

	body := `{"voiceTrackName": "voice.txt", "contentType": "text/plain"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/uploads", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	assertErrorCode(t, parseJSON(t, resp), "VALIDATION_ERROR")
}

func TestUploadTargets_MissingVoiceName(t *testing.T) {
	ta := setupApp(t)

	body := `{"contentType": "audio/mpeg"}`
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/uploads", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
