package features

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiAssistant answers frame questions through the Gemini API.
type GeminiAssistant struct {
	client *genai.Client
}

func NewGeminiAssistant(ctx context.Context, apiKey string) (*GeminiAssistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiAssistant{client: client}, nil
}

func (a *GeminiAssistant) Name() string {
	return geminiModel
}

func (a *GeminiAssistant) DescribeFrame(ctx context.Context, frame []byte, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{Data: frame, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := a.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}

	return content, nil
}
