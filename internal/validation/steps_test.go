package validation

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateGoal(t *testing.T) {
	cases := []struct {
		name       string
		payload    string
		wantFields []string
	}{
		{
			name:    "valid retention goal",
			payload: `{"objective":"RETENTION","goal":"Cut monthly churn in accounts that never invite a teammate"}`,
		},
		{
			name:    "objective is case-insensitive",
			payload: `{"objective":"retention","goal":"Cut monthly churn in accounts that never invite a teammate"}`,
		},
		{
			name:       "unknown objective",
			payload:    `{"objective":"VIRALITY","goal":"Cut monthly churn in accounts that never invite a teammate"}`,
			wantFields: []string{"objective"},
		},
		{
			name:       "goal too short",
			payload:    `{"objective":"RETENTION","goal":"fix churn"}`,
			wantFields: []string{"goal"},
		},
		{
			name:       "goal too long",
			payload:    `{"objective":"RETENTION","goal":"` + strings.Repeat("x", 501) + `"}`,
			wantFields: []string{"goal"},
		},
		{
			name:       "both fields bad",
			payload:    `{"objective":"","goal":""}`,
			wantFields: []string{"objective", "goal"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, fields, err := ValidateStep(1, json.RawMessage(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertFields(t, fields, tc.wantFields)
			if len(tc.wantFields) == 0 && normalized == nil {
				t.Fatal("expected normalized payload")
			}
		})
	}
}

func TestValidateGoalNormalizesObjective(t *testing.T) {
	raw := `{"objective":" retention ","goal":"  Cut monthly churn in accounts that never invite a teammate  "}`
	normalized, fields, err := ValidateStep(1, json.RawMessage(raw))
	if err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	var p GoalPayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		t.Fatal(err)
	}
	if p.Objective != "RETENTION" {
		t.Errorf("objective not upper-cased: %q", p.Objective)
	}
	if strings.HasPrefix(p.Goal, " ") || strings.HasSuffix(p.Goal, " ") {
		t.Errorf("goal not trimmed: %q", p.Goal)
	}
}

func TestValidateSegmentsDropsEmptyEntries(t *testing.T) {
	raw := `{"segments":[
		{"name":"Solo agencies","description":"Agencies with a single seat that never invite teammates"},
		{"name":"","description":""},
		{"name":"  ","description":" "}
	]}`
	normalized, fields, err := ValidateStep(3, json.RawMessage(raw))
	if err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	var p SegmentsPayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("expected 1 kept segment, got %d", len(p.Segments))
	}
}

func TestValidateSegmentsFieldKeys(t *testing.T) {
	raw := `{"segments":[
		{"name":"Solo agencies","description":"Agencies with a single seat that never invite teammates"},
		{"name":"ab","description":"too short"}
	]}`
	_, fields, err := ValidateStep(3, json.RawMessage(raw))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"segments[1].name", "segments[1].description"})
}

func TestValidateSegmentsAllEmptyRejected(t *testing.T) {
	raw := `{"segments":[{"name":"","description":""}]}`
	_, fields, err := ValidateStep(3, json.RawMessage(raw))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"segments"})
}

func TestValidateProblems(t *testing.T) {
	valid := `{"problems":[{
		"title":"Single-seat accounts churn",
		"description":"Accounts that never invite a second teammate churn at triple the base rate",
		"segment_refs":[0]
	}]}`
	if _, fields, err := ValidateStep(4, json.RawMessage(valid)); err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}

	noRefs := `{"problems":[{
		"title":"Single-seat accounts churn",
		"description":"Accounts that never invite a second teammate churn at triple the base rate",
		"segment_refs":[]
	}]}`
	_, fields, err := ValidateStep(4, json.RawMessage(noRefs))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"problems[0].segment_refs"})
}

func TestValidateSolutions(t *testing.T) {
	desc := "A long enough solution description that clears the fifty character floor easily"
	mk := func(v0, v1, v2 string) string {
		sol := func(v string) string {
			return `{"version":"` + v + `","title":"Invite nudges","description":"` + desc + `","features":["Email nudge after first project","In-app teammate picker"]}`
		}
		return `{"solutions":[` + sol(v0) + `,` + sol(v1) + `,` + sol(v2) + `]}`
	}

	if _, fields, err := ValidateStep(5, json.RawMessage(mk("V0", "V1", "V2"))); err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	if _, fields, err := ValidateStep(5, json.RawMessage(mk("v0", "v1", "v2"))); err != nil || len(fields) > 0 {
		t.Fatalf("lowercase version tags should normalize, got fields=%v err=%v", fields, err)
	}

	_, fields, err := ValidateStep(5, json.RawMessage(mk("V1", "V0", "V2")))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"solutions[0].version", "solutions[1].version"})
}

func TestValidateSolutionsDropsShortFeatures(t *testing.T) {
	desc := "A long enough solution description that clears the fifty character floor easily"
	raw := `{"solutions":[
		{"version":"V0","title":"Invite nudges","description":"` + desc + `","features":["ok","Email nudge after first project","In-app teammate picker"]},
		{"version":"V1","title":"Invite nudges","description":"` + desc + `","features":["Email nudge after first project","In-app teammate picker"]},
		{"version":"V2","title":"Invite nudges","description":"` + desc + `","features":["Email nudge after first project","In-app teammate picker"]}
	]}`
	normalized, fields, err := ValidateStep(5, json.RawMessage(raw))
	if err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	var p SolutionsPayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Solutions[0].Features) != 2 {
		t.Errorf("short feature not dropped: %v", p.Solutions[0].Features)
	}
}

func TestValidateMetrics(t *testing.T) {
	valid := `{"primary":{"name":"W4 retention","description":"Share of accounts active in their fourth week","target":"raise from 34% to 45%"},
		"guardrails":[{"name":"Support tickets","threshold":"under 50 per week"},{"name":"","threshold":""}]}`
	normalized, fields, err := ValidateStep(6, json.RawMessage(valid))
	if err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	var p MetricsPayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Guardrails) != 1 {
		t.Errorf("empty guardrail not dropped: %v", p.Guardrails)
	}

	flimsy := `{"primary":{"name":"W4 retention","description":"Share of accounts active in their fourth week","target":"raise from 34% to 45%"},
		"guardrails":[{"name":"Support tickets","threshold":"low"}]}`
	_, fields, err = ValidateStep(6, json.RawMessage(flimsy))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"guardrails[0].threshold"})
}

func TestValidateTradeoffs(t *testing.T) {
	tr := func(impact string) string {
		return `{"title":"Slower roadmap","description":"Shipping invite nudges pushes the reporting rebuild back a full quarter",
			"impact":"` + impact + `","mitigation":"Timebox the nudge work to six weeks and keep one engineer on reporting"}`
	}
	valid := `{"tradeoffs":[` + tr("MEDIUM") + `,` + tr("low") + `]}`
	if _, fields, err := ValidateStep(7, json.RawMessage(valid)); err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}

	bad := `{"tradeoffs":[` + tr("MEDIUM") + `,` + tr("SEVERE") + `]}`
	_, fields, err := ValidateStep(7, json.RawMessage(bad))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"tradeoffs[1].impact"})

	one := `{"tradeoffs":[` + tr("MEDIUM") + `]}`
	_, fields, err = ValidateStep(7, json.RawMessage(one))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"tradeoffs"})
}

func TestValidateSummary(t *testing.T) {
	reflection := strings.Repeat("Thinking about segments before solutions changed my approach. ", 3)
	valid := `{"reflection":"` + reflection + `","key_learnings":["Always tie problems back to a named segment",""]}`
	normalized, fields, err := ValidateStep(8, json.RawMessage(valid))
	if err != nil || len(fields) > 0 {
		t.Fatalf("expected clean pass, got fields=%v err=%v", fields, err)
	}
	var p SummaryPayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.KeyLearnings) != 1 {
		t.Errorf("empty learning not dropped: %v", p.KeyLearnings)
	}

	short := `{"reflection":"too short","key_learnings":["Always tie problems back to a named segment"]}`
	_, fields, err = ValidateStep(8, json.RawMessage(short))
	if err != nil {
		t.Fatal(err)
	}
	assertFields(t, fields, []string{"reflection"})
}

func TestValidateStepRejectsWrongTypes(t *testing.T) {
	if _, _, err := ValidateStep(1, json.RawMessage(`{"objective":42}`)); err == nil {
		t.Error("expected error for wrong-typed objective")
	}
	if _, _, err := ValidateStep(3, json.RawMessage(`{"segments":"not an array"}`)); err == nil {
		t.Error("expected error for wrong-typed segments")
	}
	if _, _, err := ValidateStep(0, json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for step number 0")
	}
	if _, _, err := ValidateStep(9, json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for step number 9")
	}
}

func TestBuildDerivedSummary(t *testing.T) {
	goal := json.RawMessage(`{"objective":"RETENTION","goal":"Cut monthly churn in single-seat accounts"}`)
	segments := json.RawMessage(`{"segments":[{"name":"Solo agencies","description":"x"},{"name":"Small studios","description":"y"}]}`)

	got := BuildDerivedSummary(goal, segments)
	want := "Objective RETENTION: Cut monthly churn in single-seat accounts | Segments: Solo agencies, Small studios"
	if got != want {
		t.Errorf("derived summary mismatch:\n got %q\nwant %q", got, want)
	}

	long := strings.Repeat("g", 200)
	got = BuildDerivedSummary(json.RawMessage(`{"objective":"RETENTION","goal":"`+long+`"}`), nil)
	if !strings.Contains(got, "...") {
		t.Errorf("long goal not truncated: %q", got)
	}
}

func assertFields(t *testing.T, got map[string]string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d field errors %v, got %v", len(want), want, got)
	}
	for _, key := range want {
		if _, ok := got[key]; !ok {
			t.Errorf("missing field error %q in %v", key, got)
		}
	}
}
