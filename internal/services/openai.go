package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIPlanModel drafts scene plans via the OpenAI chat completion API in
// JSON mode. Selected when only an OpenAI key is configured; the output
// flows through the same tolerant parser and fallback as the Gemini model.
type OpenAIPlanModel struct {
	client *openai.Client
	model  string
}

var _ PlanModel = (*OpenAIPlanModel)(nil)

func NewOpenAIPlanModel(apiKey, model string) *OpenAIPlanModel {
	return &OpenAIPlanModel{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (m *OpenAIPlanModel) Draft(ctx context.Context, system, user string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}
