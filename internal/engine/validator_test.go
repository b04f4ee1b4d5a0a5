package engine

import (
	"context"
	"errors"
	"testing"
)

func TestValidatorHeuristicRejections(t *testing.T) {
	v := NewValidator(nil, nil)
	task := &Task{ID: "t1", Skill: "market-intelligence", Description: "analyze the market"}

	cases := []struct {
		name   string
		result ExecResult
		want   bool
	}{
		{name: "success with data", result: ExecResult{Success: true, Data: map[string]any{"size": "$4B"}}, want: true},
		{name: "reported failure", result: ExecResult{Success: false, Error: "timeout"}, want: false},
		{name: "failure without message", result: ExecResult{Success: false}, want: false},
		{name: "success but error set", result: ExecResult{Success: true, Data: map[string]any{"x": 1}, Error: "partial"}, want: false},
		{name: "nil data", result: ExecResult{Success: true}, want: false},
		{name: "empty map", result: ExecResult{Success: true, Data: map[string]any{}}, want: false},
		{name: "empty list", result: ExecResult{Success: true, Data: []any{}}, want: false},
		{name: "short string", result: ExecResult{Success: true, Data: "n/a"}, want: false},
		{name: "substantive string", result: ExecResult{Success: true, Data: "The market is growing at 12% annually."}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, feedback := v.ValidateTaskCompletion(context.Background(), task, tc.result)
			if got != tc.want {
				t.Errorf("valid = %v (feedback %q), want %v", got, feedback, tc.want)
			}
			if !tc.want && feedback == "" {
				t.Error("rejection carried no feedback")
			}
		})
	}
}

func TestValidatorLLMReviewOnlyForSelectedSkills(t *testing.T) {
	client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
		return `{"is_valid": true, "feedback": ""}`, nil
	}}
	v := NewValidator(client, nil)
	result := ExecResult{Success: true, Data: map[string]any{"strengths": []any{"brand"}}}

	// swot-analyzer is on the review list.
	if ok, _ := v.ValidateTaskCompletion(context.Background(), &Task{ID: "t1", Skill: "swot-analyzer"}, result); !ok {
		t.Error("reviewed skill rejected despite positive verdict")
	}
	if client.calls != 1 {
		t.Fatalf("LLM called %d times for reviewed skill, want 1", client.calls)
	}

	// market-intelligence is heuristic-only.
	if ok, _ := v.ValidateTaskCompletion(context.Background(), &Task{ID: "t2", Skill: "market-intelligence"}, result); !ok {
		t.Error("heuristic-only skill rejected")
	}
	if client.calls != 1 {
		t.Errorf("LLM called %d times total, want still 1", client.calls)
	}
}

func TestValidatorLLMRejectionCarriesFeedback(t *testing.T) {
	client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
		return "```json\n{\"is_valid\": false, \"feedback\": \"strengths list is generic boilerplate\"}\n```", nil
	}}
	v := NewValidator(client, nil)

	ok, feedback := v.ValidateTaskCompletion(context.Background(),
		&Task{ID: "t1", Skill: "swot-analyzer"},
		ExecResult{Success: true, Data: map[string]any{"strengths": []any{"good"}}})
	if ok {
		t.Fatal("negative verdict not applied")
	}
	if feedback != "strengths list is generic boilerplate" {
		t.Errorf("feedback = %q", feedback)
	}
}

func TestValidatorFallsBackToHeuristicOnLLMFailure(t *testing.T) {
	cases := []struct {
		name     string
		response string
		err      error
	}{
		{name: "llm error", err: errors.New("rate limited")},
		{name: "unparseable verdict", response: "looks fine to me"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
				return tc.response, tc.err
			}}
			v := NewValidator(client, nil)
			ok, _ := v.ValidateTaskCompletion(context.Background(),
				&Task{ID: "t1", Skill: "bcg-matrix"},
				ExecResult{Success: true, Data: map[string]any{"stars": []any{"robots"}}})
			if !ok {
				t.Error("heuristic-passing result rejected when reviewer unavailable")
			}
		})
	}
}

func TestCheckDependenciesMet(t *testing.T) {
	v := NewValidator(nil, nil)
	task := &Task{ID: "t3", Dependencies: []string{"t1", "t2"}}

	if v.CheckDependenciesMet(task, map[string]bool{"t1": true}) {
		t.Error("unmet dependency t2 not detected")
	}
	if !v.CheckDependenciesMet(task, map[string]bool{"t1": true, "t2": true}) {
		t.Error("satisfied dependencies reported unmet")
	}
	if !v.CheckDependenciesMet(&Task{ID: "t1"}, nil) {
		t.Error("dependency-free task reported unmet")
	}
}
