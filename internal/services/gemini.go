package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiPlanModel drafts scene plans through the Gemini generateContent
// endpoint. It goes through the resilient request client in soft-failure
// mode: when the retry budget runs out, Draft reports an error and the
// planner falls back to its deterministic plan.
type GeminiPlanModel struct {
	client  *Client
	apiKey  string
	model   string
	baseURL string
}

var _ PlanModel = (*GeminiPlanModel)(nil)

func NewGeminiPlanModel(client *Client, apiKey, model string) *GeminiPlanModel {
	return &GeminiPlanModel{
		client:  client,
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
	}
}

// Gemini API request/response structures
type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Draft sends the instruction and user prompt as a single user turn and
// returns the model's raw text, fences and all.
func (m *GeminiPlanModel) Draft(ctx context.Context, system, user string) (string, error) {
	body := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: system + "\nUSER:\n" + user}}},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", m.baseURL, m.model, m.apiKey)
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	resp := m.client.TryDo(ctx, Request{Method: "POST", URL: url, Body: jsonData, Header: header})
	if resp == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var decoded geminiGenerateContentResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}

	var texts []string
	for _, part := range decoded.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("gemini candidate has no text parts")
	}

	return strings.Join(texts, "\n"), nil
}
