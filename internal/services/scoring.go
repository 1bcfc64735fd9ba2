package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/apierr"
	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
)

// ScoreOutcome is what a successful scoring run hands back to the caller:
// the scored session, the judge's verdict, and the XP the score is worth.
// XP is not granted here — the caller feeds it to the progression service.
type ScoreOutcome struct {
	Session  *types.PracticeSession `json:"session"`
	Result   *JudgeResult           `json:"result"`
	XPEarned int                    `json:"xp_earned"`
}

type ScoringService interface {
	Score(ctx context.Context, sessionID, userID uuid.UUID) (*ScoreOutcome, error)
}

type scoringService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	stepRepo    repos.SessionStepRepo
	promptRepo  repos.PromptRepo
	judge       JudgeClient
}

func NewScoringService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.SessionRepo, stepRepo repos.SessionStepRepo, promptRepo repos.PromptRepo, judge JudgeClient) ScoringService {
	return &scoringService{
		db:          db,
		log:         baseLog.With("service", "ScoringService"),
		sessionRepo: sessionRepo,
		stepRepo:    stepRepo,
		promptRepo:  promptRepo,
		judge:       judge,
	}
}

// XPForScore maps an overall score to its XP award. Monotone and bounded:
// 50 base, stepping up at 50/70/85/95 to a 150 cap.
func XPForScore(overallScore int) int {
	xp := 50
	switch {
	case overallScore >= 95:
		xp += 100
	case overallScore >= 85:
		xp += 75
	case overallScore >= 70:
		xp += 50
	case overallScore >= 50:
		xp += 25
	}
	return xp
}

func (sc *scoringService) Score(ctx context.Context, sessionID, userID uuid.UUID) (*ScoreOutcome, error) {
	session, err := sc.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, apierr.NotFound("session not found")
	}
	// COMPLETED for a first attempt, FAILED for an explicit re-score. A
	// SCORED session is final: rejecting it here is what makes XP issuance
	// exactly-once per session.
	if session.Status != types.SessionStatusCompleted && session.Status != types.SessionStatusFailed {
		return nil, apierr.InvalidState("session is %s; scoring requires COMPLETED or FAILED", session.Status)
	}

	// Claim the session. Losing a concurrent race shows up as zero rows.
	rows, err := sc.sessionRepo.UpdateFieldsIfStatus(ctx, nil, sessionID,
		[]string{types.SessionStatusCompleted, types.SessionStatusFailed},
		map[string]interface{}{
			"status":     types.SessionStatusScoring,
			"updated_at": time.Now().UTC(),
		})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, apierr.InvalidState("session is already being scored")
	}

	steps, err := sc.stepRepo.ListBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, sc.fail(ctx, sessionID, err)
	}
	if len(steps) != types.TotalSteps {
		return nil, sc.fail(ctx, sessionID, apierr.InvalidState("transcript has %d of %d steps", len(steps), types.TotalSteps))
	}
	prompt, err := sc.promptRepo.GetByID(ctx, nil, session.PromptID)
	if err != nil || prompt == nil {
		return nil, sc.fail(ctx, sessionID, apierr.NotFound("prompt for session not found"))
	}

	result, err := sc.judge.ScoreTranscript(ctx, prompt, steps)
	if err != nil {
		sc.log.Warn("Judge call failed", "session_id", sessionID.String(), "error", err)
		return nil, sc.fail(ctx, sessionID, apierr.Upstream(err))
	}
	if err := ValidateJudgeResult(result); err != nil {
		sc.log.Warn("Judge response malformed", "session_id", sessionID.String(), "error", err)
		return nil, sc.fail(ctx, sessionID, apierr.Upstream(err))
	}

	overall := ResolveOverallScore(result)
	scoringJSON, err := json.Marshal(result)
	if err != nil {
		return nil, sc.fail(ctx, sessionID, err)
	}

	now := time.Now().UTC()
	rows, err = sc.sessionRepo.UpdateFieldsIfStatus(ctx, nil, sessionID,
		[]string{types.SessionStatusScoring},
		map[string]interface{}{
			"status":        types.SessionStatusScored,
			"overall_score": overall,
			"scoring_json":  datatypes.JSON(scoringJSON),
			"updated_at":    now,
		})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, apierr.InvalidState("session left SCORING concurrently")
	}

	session.Status = types.SessionStatusScored
	session.OverallScore = &overall
	session.ScoringJSON = datatypes.JSON(scoringJSON)

	sc.log.Info("Session scored", "session_id", sessionID.String(), "overall", overall)
	return &ScoreOutcome{
		Session:  session,
		Result:   result,
		XPEarned: XPForScore(overall),
	}, nil
}

// fail parks the session in FAILED and passes the original error through
// so the caller sees the collaborator's failure verbatim.
func (sc *scoringService) fail(ctx context.Context, sessionID uuid.UUID, cause error) error {
	if _, err := sc.sessionRepo.UpdateFieldsIfStatus(ctx, nil, sessionID,
		[]string{types.SessionStatusScoring},
		map[string]interface{}{
			"status":     types.SessionStatusFailed,
			"updated_at": time.Now().UTC(),
		}); err != nil {
		sc.log.Error("Failed to mark session FAILED", "session_id", sessionID.String(), "error", err)
	}
	return cause
}
