// Package validation holds the per-step structural rules for the 8-step
// exercise. Each step number has its own payload shape and its own
// validator; all length checks run on trimmed text. A validator returns
// field-keyed messages for recoverable problems and an error only when the
// payload is structurally impossible (wrong JSON types).
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/stratlab-backend/internal/types"
)

// Objective tags accepted on step 1.
var Objectives = map[string]bool{
	"ACQUISITION":  true,
	"ACTIVATION":   true,
	"RETENTION":    true,
	"MONETIZATION": true,
	"ENGAGEMENT":   true,
	"EXPANSION":    true,
}

var impactLevels = map[string]bool{
	"LOW":    true,
	"MEDIUM": true,
	"HIGH":   true,
}

type GoalPayload struct {
	Objective string `json:"objective"`
	Goal      string `json:"goal"`
}

type MissionPayload struct {
	Alignment string `json:"alignment"`
}

type Segment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SegmentsPayload struct {
	Segments []Segment `json:"segments"`
}

type Problem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SegmentRefs []int  `json:"segment_refs"`
}

type ProblemsPayload struct {
	Problems []Problem `json:"problems"`
}

type Solution struct {
	Version     string   `json:"version"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

type SolutionsPayload struct {
	Solutions []Solution `json:"solutions"`
}

type Metric struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Target      string `json:"target"`
}

type Guardrail struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
}

type MetricsPayload struct {
	Primary    Metric      `json:"primary"`
	Guardrails []Guardrail `json:"guardrails"`
}

type Tradeoff struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

type TradeoffsPayload struct {
	Tradeoffs []Tradeoff `json:"tradeoffs"`
}

type SummaryPayload struct {
	Reflection   string   `json:"reflection"`
	KeyLearnings []string `json:"key_learnings"`
	// DerivedSummary is computed by the session service from steps 1 and 3
	// and stored alongside the user input; it is never validated here.
	DerivedSummary string `json:"derived_summary,omitempty"`
}

// ValidateStep dispatches on step number. It returns the normalized payload
// to persist (trimmed text, dropped filler entries) and a field->message
// map; the map is non-empty exactly when validation failed. The error
// return is reserved for wrong-typed input and unknown step numbers.
func ValidateStep(stepNumber int, raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	switch stepNumber {
	case 1:
		return validateGoal(raw)
	case 2:
		return validateMission(raw)
	case 3:
		return validateSegments(raw)
	case 4:
		return validateProblems(raw)
	case 5:
		return validateSolutions(raw)
	case 6:
		return validateMetrics(raw)
	case 7:
		return validateTradeoffs(raw)
	case 8:
		return validateSummary(raw)
	default:
		return nil, nil, fmt.Errorf("step number %d out of range 1..%d", stepNumber, types.TotalSteps)
	}
}

func validateGoal(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p GoalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 1 payload: %w", err)
	}
	fields := map[string]string{}
	p.Objective = strings.ToUpper(strings.TrimSpace(p.Objective))
	p.Goal = strings.TrimSpace(p.Goal)
	if !Objectives[p.Objective] {
		fields["objective"] = "objective must be one of the known objective tags"
	}
	if n := len(p.Goal); n < 20 || n > 500 {
		fields["goal"] = "goal statement must be 20-500 characters"
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(p)
}

func validateMission(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p MissionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 2 payload: %w", err)
	}
	fields := map[string]string{}
	p.Alignment = strings.TrimSpace(p.Alignment)
	if n := len(p.Alignment); n < 50 || n > 1000 {
		fields["alignment"] = "mission alignment must be 50-1000 characters"
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(p)
}

func validateSegments(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p SegmentsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 3 payload: %w", err)
	}
	fields := map[string]string{}

	// Empty filler entries are dropped, not rejected.
	kept := make([]Segment, 0, len(p.Segments))
	for _, s := range p.Segments {
		s.Name = strings.TrimSpace(s.Name)
		s.Description = strings.TrimSpace(s.Description)
		if s.Name == "" && s.Description == "" {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) < 1 || len(kept) > 3 {
		fields["segments"] = "provide 1-3 segments"
		return nil, fields, nil
	}
	for i, s := range kept {
		if len(s.Name) < 3 {
			fields[fmt.Sprintf("segments[%d].name", i)] = "segment name must be at least 3 characters"
		}
		if len(s.Description) < 20 {
			fields[fmt.Sprintf("segments[%d].description", i)] = "segment description must be at least 20 characters"
		}
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(SegmentsPayload{Segments: kept})
}

func validateProblems(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p ProblemsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 4 payload: %w", err)
	}
	fields := map[string]string{}
	if len(p.Problems) < 1 || len(p.Problems) > 3 {
		fields["problems"] = "provide 1-3 problems"
		return nil, fields, nil
	}
	out := make([]Problem, 0, len(p.Problems))
	for i, pr := range p.Problems {
		pr.Title = strings.TrimSpace(pr.Title)
		pr.Description = strings.TrimSpace(pr.Description)
		if len(pr.Title) < 5 {
			fields[fmt.Sprintf("problems[%d].title", i)] = "problem title must be at least 5 characters"
		}
		if len(pr.Description) < 30 {
			fields[fmt.Sprintf("problems[%d].description", i)] = "problem description must be at least 30 characters"
		}
		if len(pr.SegmentRefs) < 1 {
			fields[fmt.Sprintf("problems[%d].segment_refs", i)] = "problem must reference at least one affected segment"
		}
		out = append(out, pr)
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(ProblemsPayload{Problems: out})
}

func validateSolutions(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p SolutionsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 5 payload: %w", err)
	}
	fields := map[string]string{}
	if len(p.Solutions) != 3 {
		fields["solutions"] = "exactly 3 solutions (V0, V1, V2) are required"
		return nil, fields, nil
	}
	wantVersions := []string{"V0", "V1", "V2"}
	out := make([]Solution, 0, 3)
	for i, s := range p.Solutions {
		s.Version = strings.ToUpper(strings.TrimSpace(s.Version))
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		if s.Version != wantVersions[i] {
			fields[fmt.Sprintf("solutions[%d].version", i)] = fmt.Sprintf("solution must be tagged %s", wantVersions[i])
		}
		if len(s.Title) < 5 {
			fields[fmt.Sprintf("solutions[%d].title", i)] = "solution title must be at least 5 characters"
		}
		if len(s.Description) < 50 {
			fields[fmt.Sprintf("solutions[%d].description", i)] = "solution description must be at least 50 characters"
		}
		// Short features are dropped rather than rejected as long as two
		// real ones remain.
		kept := make([]string, 0, len(s.Features))
		for _, f := range s.Features {
			f = strings.TrimSpace(f)
			if len(f) >= 10 {
				kept = append(kept, f)
			}
		}
		if len(kept) < 2 {
			fields[fmt.Sprintf("solutions[%d].features", i)] = "solution needs at least 2 features of 10+ characters"
		}
		s.Features = kept
		out = append(out, s)
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(SolutionsPayload{Solutions: out})
}

func validateMetrics(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p MetricsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 6 payload: %w", err)
	}
	fields := map[string]string{}
	p.Primary.Name = strings.TrimSpace(p.Primary.Name)
	p.Primary.Description = strings.TrimSpace(p.Primary.Description)
	p.Primary.Target = strings.TrimSpace(p.Primary.Target)
	if len(p.Primary.Name) < 3 {
		fields["primary.name"] = "primary metric name must be at least 3 characters"
	}
	if len(p.Primary.Description) < 20 {
		fields["primary.description"] = "primary metric description must be at least 20 characters"
	}
	if len(p.Primary.Target) < 5 {
		fields["primary.target"] = "primary metric target must be at least 5 characters"
	}
	kept := make([]Guardrail, 0, len(p.Guardrails))
	for i, g := range p.Guardrails {
		g.Name = strings.TrimSpace(g.Name)
		g.Threshold = strings.TrimSpace(g.Threshold)
		if g.Name == "" && g.Threshold == "" {
			continue
		}
		// A named guardrail with a flimsy threshold is a mistake worth
		// reporting, not a filler row.
		if len(g.Threshold) < 5 {
			fields[fmt.Sprintf("guardrails[%d].threshold", i)] = "guardrail threshold must be at least 5 characters"
		}
		if g.Name == "" {
			fields[fmt.Sprintf("guardrails[%d].name", i)] = "guardrail name is required"
		}
		kept = append(kept, g)
	}
	if len(kept) > 3 {
		fields["guardrails"] = "at most 3 guardrails"
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(MetricsPayload{Primary: p.Primary, Guardrails: kept})
}

func validateTradeoffs(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p TradeoffsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 7 payload: %w", err)
	}
	fields := map[string]string{}
	if len(p.Tradeoffs) < 2 || len(p.Tradeoffs) > 5 {
		fields["tradeoffs"] = "provide 2-5 tradeoffs"
		return nil, fields, nil
	}
	out := make([]Tradeoff, 0, len(p.Tradeoffs))
	for i, t := range p.Tradeoffs {
		t.Title = strings.TrimSpace(t.Title)
		t.Description = strings.TrimSpace(t.Description)
		t.Impact = strings.ToUpper(strings.TrimSpace(t.Impact))
		t.Mitigation = strings.TrimSpace(t.Mitigation)
		if len(t.Title) < 5 {
			fields[fmt.Sprintf("tradeoffs[%d].title", i)] = "tradeoff title must be at least 5 characters"
		}
		if len(t.Description) < 30 {
			fields[fmt.Sprintf("tradeoffs[%d].description", i)] = "tradeoff description must be at least 30 characters"
		}
		if !impactLevels[t.Impact] {
			fields[fmt.Sprintf("tradeoffs[%d].impact", i)] = "impact must be LOW, MEDIUM or HIGH"
		}
		if len(t.Mitigation) < 30 {
			fields[fmt.Sprintf("tradeoffs[%d].mitigation", i)] = "mitigation must be at least 30 characters"
		}
		out = append(out, t)
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	return marshal(TradeoffsPayload{Tradeoffs: out})
}

func validateSummary(raw json.RawMessage) (json.RawMessage, map[string]string, error) {
	var p SummaryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed step 8 payload: %w", err)
	}
	fields := map[string]string{}
	p.Reflection = strings.TrimSpace(p.Reflection)
	if n := len(p.Reflection); n < 100 || n > 2000 {
		fields["reflection"] = "reflection must be 100-2000 characters"
	}
	kept := make([]string, 0, len(p.KeyLearnings))
	for i, k := range p.KeyLearnings {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if len(k) < 20 {
			fields[fmt.Sprintf("key_learnings[%d]", i)] = "key learning must be at least 20 characters"
			continue
		}
		kept = append(kept, k)
	}
	if len(kept) < 1 {
		fields["key_learnings"] = "at least 1 key learning of 20+ characters is required"
	}
	if len(kept) > 3 {
		fields["key_learnings"] = "at most 3 key learnings"
	}
	if len(fields) > 0 {
		return nil, fields, nil
	}
	p.KeyLearnings = kept
	return marshal(p)
}

func marshal(v interface{}) (json.RawMessage, map[string]string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return out, nil, nil
}

// BuildDerivedSummary composes the short recap stored with step 8 from the
// goal (step 1) and segments (step 3) payloads.
func BuildDerivedSummary(goalRaw, segmentsRaw json.RawMessage) string {
	var goal GoalPayload
	var segments SegmentsPayload
	_ = json.Unmarshal(goalRaw, &goal)
	_ = json.Unmarshal(segmentsRaw, &segments)

	goalText := goal.Goal
	if len(goalText) > 120 {
		goalText = goalText[:117] + "..."
	}
	names := make([]string, 0, len(segments.Segments))
	for _, s := range segments.Segments {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	out := fmt.Sprintf("Objective %s: %s", goal.Objective, goalText)
	if len(names) > 0 {
		out += " | Segments: " + strings.Join(names, ", ")
	}
	return out
}
