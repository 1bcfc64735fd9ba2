package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
	"github.com/yungbote/stratlab-backend/internal/utils"
)

// StepScore is the judge's verdict on one step.
type StepScore struct {
	StepName     string   `json:"step_name"`
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// JudgeResult is the judge's full structured response. OverallScore is
// optional; the scoring service falls back to the mean of step scores.
type JudgeResult struct {
	StepScores   []StepScore `json:"step_scores"`
	OverallScore *int        `json:"overall_score,omitempty"`
}

// JudgeClient is the external judgment collaborator. One call scores one
// completed transcript; there is no client-side retry — a failed scoring
// attempt is retried only by an explicit new Score call.
type JudgeClient interface {
	ScoreTranscript(ctx context.Context, prompt *types.Prompt, steps []*types.SessionStep) (*JudgeResult, error)
}

type judgeClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewJudgeClient(log *logger.Logger) (JudgeClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", nil)
	model := utils.GetEnv("JUDGE_MODEL", "gpt-5.2", nil)
	timeoutSec := utils.GetEnvAsInt("JUDGE_TIMEOUT_SECONDS", 60, nil)

	return &judgeClient{
		log:        log.With("service", "JudgeClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type judgeHTTPError struct {
	StatusCode int
	Body       string
}

func (e *judgeHTTPError) Error() string {
	return fmt.Sprintf("judge http %d: %s", e.StatusCode, e.Body)
}

type judgeRequest struct {
	Model string `json:"model"`
	Input []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"input"`
	Text struct {
		Format map[string]any `json:"format"`
	} `json:"text"`
	Temperature float64 `json:"temperature,omitempty"`
}

type judgeResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

const judgeSystemPrompt = `You are a strict product strategy coach grading a ` +
	`completed 8-step practice exercise. Score each step 0-100 against the ` +
	`scenario, with concrete feedback, strengths and improvements per step.`

var stepNames = [types.TotalSteps]string{
	"Goal",
	"Mission alignment",
	"Segments",
	"Problems",
	"Solutions",
	"Metrics",
	"Tradeoffs",
	"Summary",
}

func judgeSchema() map[string]any {
	stepScore := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step_name":    map[string]any{"type": "string"},
			"score":        map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"feedback":     map[string]any{"type": "string"},
			"strengths":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"improvements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"step_name", "score", "feedback", "strengths", "improvements"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step_scores": map[string]any{
				"type":     "array",
				"items":    stepScore,
				"minItems": types.TotalSteps,
				"maxItems": types.TotalSteps,
			},
			"overall_score": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		},
		"required":             []string{"step_scores"},
		"additionalProperties": false,
	}
}

func buildTranscript(prompt *types.Prompt, steps []*types.SessionStep) (string, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Scenario: %s at %s (difficulty %s)\n", prompt.Objective, prompt.Company, prompt.Difficulty)
	fmt.Fprintf(&b, "%s\n", prompt.PromptText)
	if len(prompt.Constraints) > 0 {
		fmt.Fprintf(&b, "Constraints: %s\n", string(prompt.Constraints))
	}
	for _, step := range steps {
		name := ""
		if step.StepNumber >= 1 && step.StepNumber <= types.TotalSteps {
			name = stepNames[step.StepNumber-1]
		}
		fmt.Fprintf(&b, "\nStep %d (%s):\n%s\n", step.StepNumber, name, string(step.Payload))
	}
	return b.String(), nil
}

func (c *judgeClient) ScoreTranscript(ctx context.Context, prompt *types.Prompt, steps []*types.SessionStep) (*JudgeResult, error) {
	if prompt == nil {
		return nil, errors.New("prompt required")
	}
	if len(steps) != types.TotalSteps {
		return nil, fmt.Errorf("transcript must contain %d steps, got %d", types.TotalSteps, len(steps))
	}

	transcript, err := buildTranscript(prompt, steps)
	if err != nil {
		return nil, err
	}

	req := judgeRequest{
		Model: c.model,
		Input: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.2,
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   "practice_session_scoring",
		"schema": judgeSchema(),
		"strict": true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &judgeHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var jr judgeResponse
	if err := json.Unmarshal(raw, &jr); err != nil {
		return nil, fmt.Errorf("judge decode error: %w", err)
	}
	if jr.Refusal != "" {
		return nil, fmt.Errorf("judge refused: %s", jr.Refusal)
	}

	var jsonText string
	for _, item := range jr.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, content := range item.Content {
				if content.Type == "output_text" && content.Text != "" {
					jsonText += content.Text
				}
			}
		}
	}
	if jsonText == "" {
		return nil, errors.New("no output_text found in judge response")
	}

	var result JudgeResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("failed to parse judge JSON: %w", err)
	}
	return &result, nil
}

// ValidateJudgeResult checks the response shape the core relies on: exactly
// 8 step scores, each in 0..100, and an in-range overall when present.
func ValidateJudgeResult(result *JudgeResult) error {
	if result == nil {
		return errors.New("empty judge result")
	}
	if len(result.StepScores) != types.TotalSteps {
		return fmt.Errorf("expected %d step scores, got %d", types.TotalSteps, len(result.StepScores))
	}
	for i, s := range result.StepScores {
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("step score %d out of range: %d", i+1, s.Score)
		}
	}
	if result.OverallScore != nil && (*result.OverallScore < 0 || *result.OverallScore > 100) {
		return fmt.Errorf("overall score out of range: %d", *result.OverallScore)
	}
	return nil
}

// ResolveOverallScore prefers the judge's own aggregate when it is present
// and in range; otherwise it is the rounded mean of the step scores.
func ResolveOverallScore(result *JudgeResult) int {
	if result.OverallScore != nil && *result.OverallScore >= 0 && *result.OverallScore <= 100 {
		return *result.OverallScore
	}
	sum := 0
	for _, s := range result.StepScores {
		sum += s.Score
	}
	// round half up
	return (sum + len(result.StepScores)/2) / len(result.StepScores)
}
