package governance

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains a learner answer about to be sent to the examiner model.
type Request struct {
	Lab       string
	Answer    string
	SessionID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates answers against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedLabs  map[string]bool
	DeniedRegex []*regexp.Regexp
	// MaxLength caps answers in characters. Zero means no cap.
	MaxLength int
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedLabs:  make(map[string]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

// DenyLab keeps every answer from the named lab away from the model.
func (e *DefaultPolicyEngine) DenyLab(name string) {
	e.DeniedLabs[name] = true
}

func (e *DefaultPolicyEngine) DenyAnswers(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedLabs[req.Lab] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Lab '%s' is not graded by the examiner", req.Lab),
		}, nil
	}

	if e.MaxLength > 0 && utf8.RuneCountInString(req.Answer) > e.MaxLength {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Answer is longer than %d characters", e.MaxLength),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Answer) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Answer matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
