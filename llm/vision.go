package llm

import (
	"context"
	"errors"
	"strings"
)

// DefaultVisionModel is a Groq model that accepts image input.
const DefaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"

const (
	visionMaxTokens   = 500
	visionTemperature = 0.2
	visionSystem      = "Eres un asistente que describe imágenes en español, de forma breve y precisa. No inventes texto que no se vea."
	defaultDescribe   = "Describe la imagen de forma breve y útil."
)

// Vision answers questions about images through a vision capable model.
type Vision struct {
	svc CompletionService
}

func NewVision(svc CompletionService) *Vision { return &Vision{svc: svc} }

// Describe returns the model's answer to prompt about the image at url.
func (v *Vision) Describe(ctx context.Context, imageURL, prompt string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("vision: empty image url")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultDescribe
	}
	return v.svc.Complete(ctx, CompletionRequest{
		System:      visionSystem,
		Messages:    []Message{{Role: "user", Content: prompt, ImageURL: imageURL}},
		Temperature: visionTemperature,
		MaxTokens:   visionMaxTokens,
		Purpose:     "vision",
	})
}
