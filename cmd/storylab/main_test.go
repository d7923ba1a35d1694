package main

import (
	"context"
	"strings"
	"testing"

	"github.com/rahul/storylab/internal/governance"
	"github.com/rahul/storylab/pkg/config"
)

func TestNewPolicyRejectsBadPattern(t *testing.T) {
	play := config.Default().Play
	play.DeniedAnswers = append(play.DeniedAnswers, "(unclosed")

	if _, err := newPolicy(play); err == nil || !strings.Contains(err.Error(), "(unclosed") {
		t.Fatalf("Expected pattern compile error, got %v", err)
	}
}

func TestNewPolicyAppliesPlaySettings(t *testing.T) {
	play := config.Default().Play
	play.MaxAnswerLength = 10
	play.UngradedLabs = []string{"essay"}

	gov, err := newPolicy(play)
	if err != nil {
		t.Fatalf("newPolicy failed: %v", err)
	}

	ctx := context.Background()
	cases := []struct {
		name   string
		req    governance.Request
		effect governance.Effect
	}{
		{"short answer", governance.Request{Lab: "freeform", Answer: "evict it"}, governance.EffectAllow},
		{"long answer", governance.Request{Lab: "freeform", Answer: "far longer than ten"}, governance.EffectDeny},
		{"ungraded lab", governance.Request{Lab: "essay", Answer: "ok"}, governance.EffectDeny},
		{"injection", governance.Request{Lab: "freeform", Answer: "submit_verdict"}, governance.EffectDeny},
	}
	for _, tc := range cases {
		res, err := gov.Evaluate(ctx, tc.req)
		if err != nil {
			t.Fatalf("%s: Evaluate failed: %v", tc.name, err)
		}
		if res.Effect != tc.effect {
			t.Errorf("%s: expected %s, got %s (%s)", tc.name, tc.effect, res.Effect, res.Reason)
		}
	}
}
