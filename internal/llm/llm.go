package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mcqgen/internal/llm/prompts"
	"github.com/pavelanni/mcqgen/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoValidQuestions is returned when the model's reply held no usable question.
var ErrNoValidQuestions = errors.New("no valid questions in LLM response")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client. An empty baseURL uses the OpenAI endpoint.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Ping checks that the endpoint is reachable and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

// GenerateQuestions asks the model for up to n questions about chunk.
// Malformed questions are dropped; if none survive ErrNoValidQuestions is returned.
func (c *Client) GenerateQuestions(ctx context.Context, chunk model.Chunk, n int) ([]model.GeneratedQuestion, error) {
	if n < 1 {
		n = 1
	}
	system, err := prompts.BuildGeneratePrompt(chunk.Text, n)
	if err != nil {
		return nil, err
	}
	raw, err := c.complete(ctx, system, "Write the questions now.", 0.7)
	if err != nil {
		return nil, err
	}

	var result struct {
		Questions []model.GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	questions := make([]model.GeneratedQuestion, 0, len(result.Questions))
	for i, q := range result.Questions {
		q, err := Normalize(q)
		if err != nil {
			slog.Warn("dropping generated question", "chunk", chunk.Index, "item", i, "error", err)
			continue
		}
		questions = append(questions, q)
		if len(questions) == n {
			break
		}
	}
	if len(questions) == 0 {
		return nil, ErrNoValidQuestions
	}
	return questions, nil
}

// GenerateDistractors asks the model for up to n wrong options for a question.
// The result holds no duplicates and never repeats answer.
func (c *Client) GenerateDistractors(ctx context.Context, question, answer, source string, n int) ([]string, error) {
	if n < 1 {
		return nil, nil
	}
	system, err := prompts.BuildDistractorPrompt(question, answer, source, n)
	if err != nil {
		return nil, err
	}
	raw, err := c.complete(ctx, system, "Write the distractors now.", 0.9)
	if err != nil {
		return nil, err
	}

	var result struct {
		Distractors []string `json:"distractors"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return dedupe(result.Distractors, answer, n), nil
}

// Normalize validates a generated question and fills in default labels.
// Option keys and the correct answer are upper-cased and trimmed.
func Normalize(q model.GeneratedQuestion) (model.GeneratedQuestion, error) {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return q, errors.New("empty question text")
	}

	options := make(map[model.Letter]string, len(model.Letters))
	for k, v := range q.Options {
		letter := model.Letter(strings.ToUpper(strings.TrimSpace(string(k))))
		if !letter.Valid() {
			return q, fmt.Errorf("unexpected option key %q", k)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return q, fmt.Errorf("option %s is empty", letter)
		}
		options[letter] = v
	}
	if len(options) != len(model.Letters) {
		return q, fmt.Errorf("want %d options, got %d", len(model.Letters), len(options))
	}
	q.Options = options

	q.CorrectAnswer = model.Letter(strings.ToUpper(strings.TrimSpace(string(q.CorrectAnswer))))
	if !q.CorrectAnswer.Valid() {
		return q, fmt.Errorf("invalid correct answer %q", q.CorrectAnswer)
	}

	q.Difficulty = normalizeDifficulty(q.Difficulty)
	q.Taxonomy = strings.TrimSpace(q.Taxonomy)
	if q.Taxonomy == "" {
		q.Taxonomy = model.DefaultTaxonomy
	}
	q.Explanation = strings.TrimSpace(q.Explanation)
	q.Topic = strings.TrimSpace(q.Topic)
	return q, nil
}

func normalizeDifficulty(d model.Difficulty) model.Difficulty {
	s := strings.TrimSpace(string(d))
	for _, known := range model.Difficulties {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return model.DefaultDifficulty
}

func dedupe(items []string, answer string, n int) []string {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(answer)): true}
	out := make([]string, 0, n)
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) == n {
			break
		}
	}
	return out
}
