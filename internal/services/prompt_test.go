package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPromptSeedFromFile(t *testing.T) {
	env := newTestEnv(t)
	prompts := NewPromptService(env.db, env.log, env.promptRepo)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	catalog := `prompts:
  - company: Streamline
    objective: RETENTION
    difficulty: MEDIUM
    prompt_text: Monthly churn has crept up in single-seat accounts.
    constraints:
      - No pricing changes this quarter
  - company: Forkful
    objective: ACQUISITION
    difficulty: EASY
    prompt_text: Paid social CAC has doubled in six months.
`
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := prompts.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}
	rows, err := env.promptRepo.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("catalog has %d rows, want 2", len(rows))
	}

	// A populated table is left alone.
	if err := prompts.SeedFromFile(ctx, filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("re-seed over populated table: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("prompts:\n  - company: X\n    objective: VIRALITY\n    prompt_text: y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	freshEnv := newTestEnv(t)
	fresh := NewPromptService(freshEnv.db, freshEnv.log, freshEnv.promptRepo)
	if err := fresh.SeedFromFile(ctx, bad); err == nil {
		t.Error("unknown objective accepted")
	}
}
