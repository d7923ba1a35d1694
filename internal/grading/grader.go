// Package grading judges free-form learner answers with a language
// model. Grading is best effort: any failure yields a passing verdict so
// a learner is never stuck because the examiner is unreachable.
package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/storylab/internal/governance"
	"github.com/rahul/storylab/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// FallbackMessage is shown when the examiner could not be reached.
const FallbackMessage = "The examiner is away, so we'll count that as a pass. Keep going!"

// Request is one answer to grade.
type Request struct {
	Lab      string
	Question string
	Rubric   string
	Answer   string
}

// Verdict is the examiner's judgment.
type Verdict struct {
	Pass    bool   `json:"pass"`
	Message string `json:"message"`
	// Fallback is set when the verdict was substituted after a failure.
	Fallback bool `json:"-"`
}

// Recorder keeps a record of verdicts.
type Recorder interface {
	RecordGrade(ctx context.Context, sessionID string, stepID int, req Request, v Verdict) error
}

type stepKey struct{}

type stepRef struct {
	sessionID string
	stepID    int
}

// WithStep tags ctx with the play session and step an answer belongs to.
func WithStep(ctx context.Context, sessionID string, stepID int) context.Context {
	return context.WithValue(ctx, stepKey{}, stepRef{sessionID: sessionID, stepID: stepID})
}

// StepFrom returns the session and step stored by WithStep.
func StepFrom(ctx context.Context) (string, int) {
	ref, _ := ctx.Value(stepKey{}).(stepRef)
	return ref.sessionID, ref.stepID
}

// Grader asks a model for a verdict through a submit_verdict tool call.
type Grader struct {
	Model     llms.Model
	ModelName string
	Prompts   *PromptManager
	Policy    governance.PolicyEngine
	Logger    *observability.Logger
	Recorder  Recorder
}

func NewGrader(model llms.Model, modelName string, prompts *PromptManager, policy governance.PolicyEngine, logger *observability.Logger) *Grader {
	return &Grader{
		Model:     model,
		ModelName: modelName,
		Prompts:   prompts,
		Policy:    policy,
		Logger:    logger,
	}
}

// Grade never fails. Errors from the policy engine or the model are
// logged and replaced by a passing fallback verdict.
func (g *Grader) Grade(ctx context.Context, req Request) Verdict {
	sessionID, stepID := StepFrom(ctx)

	v, err := g.grade(ctx, sessionID, stepID, req)
	if err != nil {
		log.Printf("[ WARN ] grading step %d failed, passing by default: %v", stepID, err)
		v = Verdict{Pass: true, Message: FallbackMessage, Fallback: true}
	}

	g.Logger.LogGrade(sessionID, stepID, v.Pass, v.Fallback, v.Message)
	if g.Recorder != nil {
		if err := g.Recorder.RecordGrade(ctx, sessionID, stepID, req, v); err != nil {
			log.Printf("Error recording verdict for step %d: %v", stepID, err)
		}
	}
	return v
}

func (g *Grader) grade(ctx context.Context, sessionID string, stepID int, req Request) (Verdict, error) {
	if g.Policy != nil {
		res, err := g.Policy.Evaluate(ctx, governance.Request{Lab: req.Lab, Answer: req.Answer, SessionID: sessionID})
		if err != nil {
			return Verdict{}, fmt.Errorf("policy: %w", err)
		}
		if res.Effect == governance.EffectDeny {
			return Verdict{Pass: false, Message: "That answer can't be graded: " + res.Reason}, nil
		}
	}
	if g.Model == nil {
		return Verdict{}, errors.New("no model configured")
	}

	systemPrompt := DefaultPrompt
	if g.Prompts != nil {
		p, err := g.Prompts.GetGraderPrompt()
		if err != nil {
			log.Printf("Warning: Failed to load grader prompt: %v", err)
		} else {
			systemPrompt = p
		}
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(formatRequest(req))},
		},
	}

	resp, err := g.Model.GenerateContent(ctx, messages, llms.WithTools(verdictTools))
	if err != nil {
		return Verdict{}, err
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, errors.New("model returned no choices")
	}

	choice := resp.Choices[0]
	g.Logger.LogLLM(sessionID, stepID, messages, choice.Content, choice.ToolCalls)
	g.logCost(sessionID, stepID, choice.GenerationInfo)

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != "submit_verdict" {
			continue
		}
		return parseVerdict(tc.FunctionCall.Arguments)
	}

	// Some providers answer in plain text even when offered a tool.
	if content := strings.TrimSpace(choice.Content); content != "" {
		return parseVerdict(content)
	}
	return Verdict{}, errors.New("examiner gave neither a verdict nor a text response")
}

var verdictTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "submit_verdict",
			Description: "Submit the grading verdict for the learner's answer.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pass": map[string]any{
						"type":        "boolean",
						"description": "Whether the answer demonstrates the concept.",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "One or two sentences of feedback for the learner.",
					},
				},
				"required": []string{"pass", "message"},
			},
		},
	},
}

func formatRequest(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n", req.Question)
	if req.Rubric != "" {
		fmt.Fprintf(&b, "RUBRIC: %s\n", req.Rubric)
	}
	fmt.Fprintf(&b, "\nLEARNER ANSWER:\n%s", req.Answer)
	return b.String()
}

func parseVerdict(raw string) (Verdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var v struct {
		Pass    *bool  `json:"pass"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse verdict: %v", err)
	}
	if v.Pass == nil {
		return Verdict{}, errors.New("verdict has no pass field")
	}
	msg := strings.TrimSpace(v.Message)
	if msg == "" {
		msg = "Well reasoned."
		if !*v.Pass {
			msg = "Not quite there. Try again."
		}
	}
	return Verdict{Pass: *v.Pass, Message: msg}, nil
}

func (g *Grader) logCost(sessionID string, stepID int, info map[string]any) {
	prompt, okP := tokenCount(info["PromptTokens"])
	completion, okC := tokenCount(info["CompletionTokens"])
	if !okP && !okC {
		return
	}
	g.Logger.LogCost(sessionID, stepID, prompt, completion, g.ModelName)
}

func tokenCount(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
