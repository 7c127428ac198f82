// Package openai adapts the OpenAI chat-completions API to model.ChatModel.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/outreachrun/agentgraph/llm"
	"github.com/outreachrun/agentgraph/llm/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ChatModel implements model.ChatModel for OpenAI's API, with a small
// built-in retry loop for transient errors and rate limits.
type ChatModel struct {
	modelName   string
	temperature float64
	client      openaiClient
	maxRetries  int
	retryDelay  time.Duration
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel constructs a ChatModel. modelName defaults to "gpt-4o" when
// empty; temperature defaults to 0.7 when zero, matching the agent config
// defaults.
func NewChatModel(apiKey, modelName string, temperature float64) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	if temperature == 0 {
		temperature = 0.7
	}
	return &ChatModel{
		modelName:   modelName,
		temperature: temperature,
		client:      &defaultClient{apiKey: apiKey, modelName: modelName, temperature: temperature},
		maxRetries:  3,
		retryDelay:  time.Second,
	}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.client.createChatCompletion(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	return model.ChatOut{}, fmt.Errorf("openai chat completion failed after %d retries: %w", m.maxRetries, lastErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }

type defaultClient struct {
	apiKey      string
	modelName   string
	temperature float64
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.modelName),
		Messages:    convertMessages(messages),
		Temperature: openaisdk.Float(c.temperature),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai api error: %w", err)
	}
	return convertResponse(resp)
}

func convertMessages(messages []model.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openaisdk.SystemMessage(msg.Content)
		case model.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			result[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return result
}

func convertTools(tools []model.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) (model.ChatOut, error) {
	out := model.ChatOut{}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	msg := resp.Choices[0].Message
	out.Text = msg.Content

	if len(msg.ToolCalls) == 0 {
		return out, nil
	}

	out.ToolCalls = make([]model.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		input, err := parseToolInput(tc.Function.Arguments)
		if err != nil {
			return model.ChatOut{}, fmt.Errorf("%w: parse arguments for tool %s: %s", llm.ErrToolArgsInvalid, tc.Function.Name, err)
		}
		out.ToolCalls[i] = model.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input}
	}
	return out, nil
}

// parseToolInput decodes the JSON-encoded tool-call arguments OpenAI
// returns into a map. An empty string (no arguments) is not an error.
func parseToolInput(jsonStr string) (map[string]any, error) {
	if jsonStr == "" {
		return nil, nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, err
	}
	return result, nil
}
