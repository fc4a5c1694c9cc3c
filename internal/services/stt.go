package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoSpeech is the distinguished "no speech detected" outcome. It is not a
// transport failure: the caller maps it to a failed assessment with a fixed
// user-facing reason.
var ErrNoSpeech = errors.New("no speech detected")

// NoSpeechMessage is the user-facing reason recorded on the assessment.
const NoSpeechMessage = "음성 내용이 없습니다."

type SpeechToTextService interface {
	Transcribe(ctx context.Context, audio []byte, filename string, declaredType string) (string, error)
}

type deepgramService struct {
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	baseURL    string
}

func NewDeepgramService(apiKey, model, language string) SpeechToTextService {
	return &deepgramService{
		apiKey:   apiKey,
		model:    model,
		language: language,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		baseURL: "https://api.deepgram.com/v1/listen",
	}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type deepgramError struct {
	ErrMsg string `json:"err_msg"`
	Reason string `json:"reason"`
}

// Transcribe implements SpeechToTextService.
func (d *deepgramService) Transcribe(ctx context.Context, audio []byte, filename string, declaredType string) (string, error) {
	endpoint := fmt.Sprintf("%s?%s", d.baseURL, url.Values{
		"model":        {d.model},
		"language":     {d.language},
		"smart_format": {"true"},
		"diarize":      {"true"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to build STT request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", ResolveAudioMIMEType(filename, declaredType))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("STT request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read STT response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var dgErr deepgramError
		if json.Unmarshal(body, &dgErr) == nil && (dgErr.ErrMsg != "" || dgErr.Reason != "") {
			reason := dgErr.ErrMsg
			if reason == "" {
				reason = dgErr.Reason
			}
			return "", fmt.Errorf("deepgram STT error: %s", reason)
		}
		return "", fmt.Errorf("deepgram STT error: HTTP %d", resp.StatusCode)
	}

	var result deepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode STT response: %w", err)
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", ErrNoSpeech
	}

	transcript := result.Results.Channels[0].Alternatives[0].Transcript
	if strings.TrimSpace(transcript) == "" {
		return "", ErrNoSpeech
	}

	return transcript, nil
}

// ResolveAudioMIMEType decides the Content-Type sent to the STT backend.
// The declared type from the uploader is often wrong, and a misreported type
// gets the whole request rejected, so the file extension wins when known.
func ResolveAudioMIMEType(filename, declaredType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	}

	if declaredType != "" {
		return declaredType
	}

	return "audio/*"
}
