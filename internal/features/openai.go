package features

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const chatModel = openai.ChatModelGPT4_1Mini

// OpenAIAssistant answers frame questions through the OpenAI chat API.
type OpenAIAssistant struct {
	client *openai.Client
}

func NewOpenAIAssistant(apiKey string) *OpenAIAssistant {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAssistant{client: &client}
}

func (a *OpenAIAssistant) Name() string {
	return chatModel
}

func (a *OpenAIAssistant) DescribeFrame(ctx context.Context, frame []byte, prompt string) (string, error) {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You describe video frames for a media library index. Answer in one or two plain sentences."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart(prompt),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		MaxTokens: openai.Int(300),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
