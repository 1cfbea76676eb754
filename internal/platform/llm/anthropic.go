package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	intakeentities "herald/contexts/newsletter-production/content-intake-service/domain/entities"
	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
)

const scoreSystemPrompt = `You rate local news items for a daily city newsletter.
Given a headline and summary, respond with JSON only:
{"score": <number between 0 and 10>}
Favor concrete local happenings readers can act on. Penalize syndicated wire
copy, obituaries and press-release fluff.`

const articleSystemPrompt = `You write short newsletter blurbs for a daily city
newsletter. Given a source headline, summary and link, respond with JSON only:
{"body": "<2-3 sentence blurb in a warm, direct voice>"}
Do not invent facts that are not in the source material.`

const subjectSystemPrompt = `You write subject lines for a daily city newsletter.
Given the headlines of today's stories, respond with JSON only:
{"subject": "<one subject line, under 80 characters, no emoji>"}`

// AnthropicClient backs both the intake scorer and the pipeline content
// generator with one Messages client.
type AnthropicClient struct {
	client    *anthropic.Client
	model     anthropic.Model
	modelName string
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:    &client,
		model:     anthropic.ModelClaudeHaiku4_5,
		modelName: "claude-4.5-haiku",
	}
}

func (c *AnthropicClient) Score(ctx context.Context, item intakeentities.Item) (float64, error) {
	userPrompt := fmt.Sprintf("Headline: %s\nSummary: %s", item.Title, item.Summary)

	content, err := c.complete(ctx, scoreSystemPrompt, userPrompt)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse score response: %w, content: %s", err, content)
	}
	return parsed.Score, nil
}

func (c *AnthropicClient) GenerateArticle(ctx context.Context, post entities.Post) (string, error) {
	userPrompt := fmt.Sprintf("Headline: %s\nSummary: %s\nLink: %s", post.Title, post.Summary, post.Link)

	content, err := c.complete(ctx, articleSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse article response: %w, content: %s", err, content)
	}
	if strings.TrimSpace(parsed.Body) == "" {
		return "", fmt.Errorf("empty article body from model")
	}
	return parsed.Body, nil
}

func (c *AnthropicClient) SubjectLine(ctx context.Context, titles []string) (string, error) {
	userPrompt := "Headlines:\n- " + strings.Join(titles, "\n- ")

	content, err := c.complete(ctx, subjectSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse subject response: %w, content: %s", err, content)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return "", fmt.Errorf("empty subject line from model")
	}
	return parsed.Subject, nil
}

func (c *AnthropicClient) complete(ctx context.Context, system string, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return cleanJSONResponse(resp.Content[0].Text), nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
