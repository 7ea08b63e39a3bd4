package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"
)

type IntentSpec struct {
	System  string `yaml:"system"`
	Intents []struct {
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		ArgsSchema  map[string]any `yaml:"args_schema"`
	} `yaml:"intents"`
	Style struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// LLMClassifier asks a chat-completion model to map free text onto one of the
// intents declared in a YAML spec.
type LLMClassifier struct {
	spec   IntentSpec
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

func LoadIntentClassifier(path string, client *openai.Client, model string) (*LLMClassifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseIntentClassifier(b, client, model)
}

func ParseIntentClassifier(raw []byte, client *openai.Client, model string) (*LLMClassifier, error) {
	var spec IntentSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse intent spec: %w", err)
	}
	if len(spec.Intents) == 0 {
		return nil, fmt.Errorf("intent spec declares no intents")
	}
	return &LLMClassifier{spec: spec, client: client, model: model}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, message string) (*ClassifiedIntent, error) {
	var intents []map[string]any
	for _, in := range c.spec.Intents {
		intents = append(intents, map[string]any{
			"name":        in.Name,
			"description": in.Description,
			"args_schema": in.ArgsSchema,
		})
	}
	schemaJSON, err := json.Marshal(intents)
	if err != nil {
		return nil, err
	}
	temperature := c.spec.Style.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	maxTokens := c.spec.Style.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}

	var b strings.Builder
	b.WriteString(c.spec.System)
	b.WriteString("\n\nIntents:\n")
	b.Write(schemaJSON)
	b.WriteString("\n\nOutput ONLY the JSON object.\n")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: b.String()},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices")
	}
	return decodeIntent(resp.Choices[0].Message.Content)
}

// decodeIntent accepts a bare JSON object or one wrapped in prose or code
// fences.
func decodeIntent(raw string) (*ClassifiedIntent, error) {
	var out ClassifiedIntent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		first := strings.Index(raw, "{")
		last := strings.LastIndex(raw, "}")
		if first < 0 || last <= first {
			return nil, fmt.Errorf("decode intent: %w", err)
		}
		if err2 := json.Unmarshal([]byte(raw[first:last+1]), &out); err2 != nil {
			return nil, fmt.Errorf("decode intent: %w", err)
		}
	}
	if out.Type == "" {
		out.Type = IntentUnknown
	}
	if out.Args == nil {
		out.Args = map[string]any{}
	}
	return &out, nil
}
