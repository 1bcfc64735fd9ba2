package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/stratlab-backend/internal/apierr"
	"github.com/yungbote/stratlab-backend/internal/types"
	"github.com/yungbote/stratlab-backend/internal/validation"
)

func validStepPayload(step int) json.RawMessage {
	solutionDesc := "A long enough solution description that clears the fifty character floor easily"
	solution := func(v string) string {
		return `{"version":"` + v + `","title":"Invite nudges","description":"` + solutionDesc + `","features":["Email nudge after first project","In-app teammate picker"]}`
	}
	tradeoff := `{"title":"Slower roadmap","description":"Shipping invite nudges pushes the reporting rebuild back a full quarter","impact":"MEDIUM","mitigation":"Timebox the nudge work to six weeks and keep one engineer on reporting"}`

	payloads := map[int]string{
		1: `{"objective":"RETENTION","goal":"Cut monthly churn in accounts that never invite a teammate"}`,
		2: `{"alignment":"Keeping small agencies productive together is the core of the company mission statement"}`,
		3: `{"segments":[{"name":"Solo agencies","description":"Agencies with a single seat that never invite teammates"}]}`,
		4: `{"problems":[{"title":"Single-seat accounts churn","description":"Accounts that never invite a second teammate churn at triple the base rate","segment_refs":[0]}]}`,
		5: `{"solutions":[` + solution("V0") + `,` + solution("V1") + `,` + solution("V2") + `]}`,
		6: `{"primary":{"name":"W4 retention","description":"Share of accounts active in their fourth week","target":"raise from 34% to 45%"},"guardrails":[]}`,
		7: `{"tradeoffs":[` + tradeoff + `,` + tradeoff + `]}`,
		8: `{"reflection":"` + strings.Repeat("Thinking about segments before solutions changed my approach. ", 3) + `","key_learnings":["Always tie problems back to a named segment"]}`,
	}
	return json.RawMessage(payloads[step])
}

func newTestSessionService(env *testEnv) SessionService {
	return NewSessionService(env.db, env.log, env.sessionRepo, env.stepRepo, env.promptRepo, 1)
}

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	session, err := sessions.Start(ctx, user.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Status != types.SessionStatusActive || session.CurrentStep != 1 {
		t.Errorf("session status %s step %d, want ACTIVE/1", session.Status, session.CurrentStep)
	}
	if session.Prompt == nil {
		t.Error("session missing its prompt")
	}

	// Only one ACTIVE session per user.
	_, err = sessions.Start(ctx, user.ID)
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeConflict {
		t.Fatalf("second Start error = %v, want CONFLICT", err)
	}
}

func TestStartSessionEmptyCatalog(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	sessions := newTestSessionService(env)

	_, err := sessions.Start(context.Background(), user.ID)
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeInvalidState {
		t.Fatalf("error = %v, want INVALID_STATE", err)
	}
}

func TestSaveStepOrdering(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	session, err := sessions.Start(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Jumping ahead is rejected.
	_, err = sessions.SaveStep(ctx, session.ID, user.ID, 2, validStepPayload(2))
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeOutOfOrder {
		t.Fatalf("ahead-of-cursor save error = %v, want OUT_OF_ORDER", err)
	}

	// Saving the current step advances the cursor.
	session, err = sessions.SaveStep(ctx, session.ID, user.ID, 1, validStepPayload(1))
	if err != nil {
		t.Fatal(err)
	}
	if session.CurrentStep != 2 {
		t.Fatalf("cursor = %d, want 2", session.CurrentStep)
	}

	// Re-saving an earlier step does not move the cursor.
	session, err = sessions.SaveStep(ctx, session.ID, user.ID, 1, validStepPayload(1))
	if err != nil {
		t.Fatal(err)
	}
	if session.CurrentStep != 2 {
		t.Fatalf("cursor after back-save = %d, want 2", session.CurrentStep)
	}

	// Steps out of 1..8 are rejected outright.
	for _, n := range []int{0, 9} {
		_, err = sessions.SaveStep(ctx, session.ID, user.ID, n, validStepPayload(1))
		ae = apierr.From(err)
		if ae == nil || ae.Code != apierr.CodeInvalidArgument {
			t.Errorf("step %d error = %v, want INVALID_ARGUMENT", n, err)
		}
	}
}

func TestSaveStepValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	session, err := sessions.Start(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = sessions.SaveStep(ctx, session.ID, user.ID, 1, json.RawMessage(`{"objective":"RETENTION","goal":"too short"}`))
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeValidationFailed {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	if _, ok := ae.Fields["goal"]; !ok {
		t.Errorf("expected field error on goal, got %v", ae.Fields)
	}

	// A failed save leaves no step row and the cursor untouched.
	count, err := env.stepRepo.CountBySessionID(ctx, nil, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("step count = %d, want 0", count)
	}
}

func TestSessionFullFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	session, err := sessions.Start(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Completing early is rejected.
	_, err = sessions.Complete(ctx, session.ID, user.ID)
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeInvalidState {
		t.Fatalf("early Complete error = %v, want INVALID_STATE", err)
	}

	for n := 1; n <= types.TotalSteps; n++ {
		if _, err := sessions.SaveStep(ctx, session.ID, user.ID, n, validStepPayload(n)); err != nil {
			t.Fatalf("SaveStep(%d): %v", n, err)
		}
	}

	// The stored step 8 payload carries the recap derived from steps 1 and 3.
	step8, err := env.stepRepo.GetBySessionAndStep(ctx, nil, session.ID, 8)
	if err != nil || step8 == nil {
		t.Fatalf("fetching step 8: %v", err)
	}
	var summary validation.SummaryPayload
	if err := json.Unmarshal(step8.Payload, &summary); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(summary.DerivedSummary, "Objective RETENTION") || !strings.Contains(summary.DerivedSummary, "Solo agencies") {
		t.Errorf("derived summary = %q", summary.DerivedSummary)
	}

	completed, err := sessions.Complete(ctx, session.ID, user.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != types.SessionStatusCompleted || completed.CompletedAt == nil {
		t.Errorf("completed session: status %s completed_at %v", completed.Status, completed.CompletedAt)
	}

	// The transcript is immutable once completed.
	_, err = sessions.SaveStep(ctx, session.ID, user.ID, 3, validStepPayload(3))
	ae = apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeInvalidState {
		t.Fatalf("post-complete save error = %v, want INVALID_STATE", err)
	}

	// A fresh session can now be started.
	if _, err := sessions.Start(ctx, user.ID); err != nil {
		t.Fatalf("Start after complete: %v", err)
	}
}

func TestSessionOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t)
	other := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	session, err := sessions.Start(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = sessions.SaveStep(ctx, session.ID, other.ID, 1, validStepPayload(1))
	ae := apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeNotFound {
		t.Fatalf("foreign save error = %v, want NOT_FOUND", err)
	}
	_, err = sessions.Get(ctx, session.ID, other.ID)
	ae = apierr.From(err)
	if ae == nil || ae.Code != apierr.CodeNotFound {
		t.Fatalf("foreign get error = %v, want NOT_FOUND", err)
	}
}

func TestGetActiveWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	sessions := newTestSessionService(env)

	session, err := sessions.GetActive(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session, got %+v", session)
	}
}

func TestGetSessionDetail(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	env.createPrompt(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	started, err := sessions.Start(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 3; n++ {
		if _, err := sessions.SaveStep(ctx, started.ID, user.ID, n, validStepPayload(n)); err != nil {
			t.Fatal(err)
		}
	}

	detail, err := sessions.Get(ctx, started.ID, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Prompt == nil || len(detail.Steps) != 3 {
		t.Fatalf("detail: prompt %v steps %d, want prompt and 3 steps", detail.Prompt, len(detail.Steps))
	}
	for i, step := range detail.Steps {
		if step.StepNumber != i+1 {
			t.Errorf("steps out of order: index %d has step %d", i, step.StepNumber)
		}
	}

	if _, err := sessions.Get(ctx, uuid.New(), user.ID); apierr.From(err) == nil {
		t.Error("expected NOT_FOUND for unknown session id")
	}
}
