package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/outreachrun/agentgraph/llm"
)

// judgeSystemPrompt instructs the judge model to answer strictly as JSON so
// the caller can parse a match decision without free-form prose leaking
// into the verification result.
const judgeSystemPrompt = `You are a strict evaluator comparing two values for semantic equivalence. Respond with exactly one JSON object: {"match": true|false, "reason": "..."}. No other text.`

type judgeVerdict struct {
	Match  bool   `json:"match"`
	Reason string `json:"reason"`
}

// JudgeArgsMatch asks judge whether actual tool-call arguments satisfy
// expected ones semantically (e.g. "Invoice 1001" vs "Re: Invoice #1001"),
// used for ExpectedToolCall.Mode == MatchJudge (§4.9 / scenario S6).
func JudgeArgsMatch(ctx context.Context, judge llm.Invoker, expected, actual map[string]any) (bool, string, error) {
	if judge == nil {
		return false, "", fmt.Errorf("eval: judge mode requires a non-nil llm.Invoker")
	}
	expectedJSON, _ := json.Marshal(expected)
	actualJSON, _ := json.Marshal(actual)
	prompt := fmt.Sprintf("Expected tool-call arguments: %s\nActual tool-call arguments: %s\nDo the actual arguments satisfy the expected ones in substance?", expectedJSON, actualJSON)

	return askJudge(ctx, judge, prompt)
}

// JudgeResponseMatches asks judge whether an assistant response
// semantically contains/conveys wantedSubstance, used for
// ExpectedLLMResponse.Mode == MatchJudge.
func JudgeResponseMatches(ctx context.Context, judge llm.Invoker, response, wantedSubstance string) (bool, string, error) {
	if judge == nil {
		return false, "", fmt.Errorf("eval: judge mode requires a non-nil llm.Invoker")
	}
	prompt := fmt.Sprintf("Assistant response: %q\nDoes this response convey the following: %q?", response, wantedSubstance)
	return askJudge(ctx, judge, prompt)
}

func askJudge(ctx context.Context, judge llm.Invoker, prompt string) (bool, string, error) {
	text, err := judge.InvokeLLM(ctx, nil, prompt, llm.Context{SystemPrompt: judgeSystemPrompt})
	if err != nil {
		return false, "", err
	}

	var verdict judgeVerdict
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return false, "", fmt.Errorf("eval: judge returned non-JSON verdict: %s", trimmed)
	}
	return verdict.Match, verdict.Reason, nil
}
