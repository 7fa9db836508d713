package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// ErrTranscriberDisabled is returned when no API key is configured.
var ErrTranscriberDisabled = errors.New("speech-to-text is not configured")

// Transcriber turns recorded speech into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

const transcribePrompt = "Transcribe this audio to English text. " +
	"If the speaker uses another language, write the words phonetically in English letters. " +
	"Return only the transcription, without quotes, labels or commentary."

// nonSpeech strips everything outside word characters, whitespace and
// basic punctuation from the model output.
var nonSpeech = regexp.MustCompile(`[^\w\s.,!?-]`)

// CleanTranscript filters model output down to plain spoken text.
func CleanTranscript(s string) string {
	return strings.TrimSpace(nonSpeech.ReplaceAllString(s, ""))
}

// GeminiTranscriber calls the Generative Language API with inline audio.
type GeminiTranscriber struct {
	svc   *generativelanguage.Service
	model string
}

// NewGeminiTranscriber builds a client.  An empty key yields
// ErrTranscriberDisabled so callers can fall back to DisabledTranscriber.
func NewGeminiTranscriber(ctx context.Context, apiKey, model string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, ErrTranscriberDisabled
	}
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generative language service: %w", err)
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &GeminiTranscriber{svc: svc, model: model}, nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role: "user",
			Parts: []*generativelanguage.Part{
				{Text: transcribePrompt},
				{InlineData: &generativelanguage.Blob{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}
	resp, err := g.svc.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		break // first candidate only
	}
	return CleanTranscript(b.String()), nil
}

// DisabledTranscriber is used when no API key is configured.
type DisabledTranscriber struct{}

func (DisabledTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", ErrTranscriberDisabled
}
