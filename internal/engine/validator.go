package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bcos/internal/llm"
)

// llmValidatedSkills are the skills whose output is worth an LLM
// quality review. Everything else gets the cheap heuristic check.
var llmValidatedSkills = map[string]bool{
	"business-model-canvas": true,
	"value-chain-mapper":    true,
	"swot-analyzer":         true,
	"porters-five-forces":   true,
	"bcg-matrix":            true,
}

// Validator decides whether a task result is good enough to store in
// the phase context. A heuristic pass screens out empty or failed
// results; selected analytical skills additionally get an LLM review.
type Validator struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewValidator builds a validator. The LLM client may be nil, which
// limits validation to the heuristic pass.
func NewValidator(client llm.Client, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{llm: client, logger: logger}
}

// ValidateTaskCompletion reports whether the result should be
// accepted, with feedback explaining a rejection.
func (v *Validator) ValidateTaskCompletion(ctx context.Context, task *Task, result ExecResult) (bool, string) {
	if ok, feedback := heuristicCheck(result); !ok {
		return false, feedback
	}
	if v.llm != nil && llmValidatedSkills[task.Skill] {
		return v.llmCheck(ctx, task, result)
	}
	return true, ""
}

// heuristicCheck rejects obviously unusable results: failures, error
// messages, and payloads too thin to analyze.
func heuristicCheck(result ExecResult) (bool, string) {
	if !result.Success {
		if result.Error != "" {
			return false, "execution failed: " + result.Error
		}
		return false, "execution reported failure"
	}
	if result.Error != "" {
		return false, "result carries an error: " + result.Error
	}
	switch data := result.Data.(type) {
	case nil:
		return false, "result contains no data"
	case string:
		if len(strings.TrimSpace(data)) < 10 {
			return false, "result data is too short to be meaningful"
		}
	case map[string]any:
		if len(data) == 0 {
			return false, "result data is empty"
		}
	case []any:
		if len(data) == 0 {
			return false, "result data is empty"
		}
	}
	return true, ""
}

// llmVerdict is the JSON shape the review prompt asks for.
type llmVerdict struct {
	IsValid  bool   `json:"is_valid"`
	Feedback string `json:"feedback"`
}

func (v *Validator) llmCheck(ctx context.Context, task *Task, result ExecResult) (bool, string) {
	payload, err := json.Marshal(result.Data)
	if err != nil {
		// Unmarshalable data already passed the heuristic; accept it.
		return true, ""
	}
	if len(payload) > 4000 {
		payload = payload[:4000]
	}

	prompt := fmt.Sprintf(`Review the output of a business analysis task.

Task: %s
Skill: %s
Output: %s

Is this a substantive, usable result for the task? Respond with ONLY a
JSON object: {"is_valid": true/false, "feedback": "one sentence"}`,
		task.Description, task.Skill, payload)

	raw, err := v.llm.Complete(ctx, prompt, 500, 0.1)
	if err != nil {
		// Reviewer unavailable; the heuristic verdict stands.
		v.logger.Warn("LLM validation unavailable, keeping heuristic verdict",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return true, ""
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &verdict); err != nil {
		v.logger.Warn("LLM validation response unparseable, keeping heuristic verdict",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return true, ""
	}
	if !verdict.IsValid {
		feedback := verdict.Feedback
		if feedback == "" {
			feedback = "result rejected by quality review"
		}
		return false, feedback
	}
	return true, ""
}

// CheckDependenciesMet reports whether every dependency of the task
// appears in the completed set.
func (v *Validator) CheckDependenciesMet(task *Task, completed map[string]bool) bool {
	for _, dep := range task.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}
