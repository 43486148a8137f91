package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/snapsight/client/internal/models"
)

const maxTokens = 2048

const systemPrompt = `You are a social-media content analyst. Given an image,
respond with a single JSON object with the keys "curation" (isAppropriate,
labels, risk, notes), "caption" (text, alternatives), "songs" (title, artist,
reason), "topics" (topic, confidence), and "engagement" (estimatedScore,
drivers, suggestions). Write all text in the requested language. Respond with
JSON only.`

// OpenAIProvider generates analyses with an OpenAI vision model.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider constructs a provider using the given API key and model.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}
}

// Analyze sends the image to the model and decodes the structured response.
func (p *OpenAIProvider) Analyze(ctx context.Context, imageURL string, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	language := req.Language
	if language == "" {
		language = "en"
	}

	userPrompt := fmt.Sprintf(
		"Analyze this image for a social-media post. Tasks: %s. Language: %s. At most %d songs and %d topics.",
		strings.Join(req.Tasks, ", "), language, req.Limits.MaxSongs, req.Limits.MaxTopics,
	)

	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	}
	// Reasoning models reject the MaxTokens field.
	if strings.HasPrefix(p.model, "o1") || strings.HasPrefix(p.model, "o3") || strings.HasPrefix(p.model, "o4") || strings.HasPrefix(p.model, "gpt-5") {
		chatReq.MaxCompletionTokens = maxTokens
	} else {
		chatReq.MaxTokens = maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("chat completion returned no choices")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis response: %w", err)
	}

	result.Meta = models.Meta{Language: language, GeneratedAt: time.Now().UTC()}
	return clamp(result, req), nil
}

var _ Provider = (*OpenAIProvider)(nil)
