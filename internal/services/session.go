package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/apierr"
	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
	"github.com/yungbote/stratlab-backend/internal/validation"
)

// SessionService owns the session state machine up to COMPLETED. Scoring
// transitions belong to ScoringService.
type SessionService interface {
	Start(ctx context.Context, userID uuid.UUID) (*types.PracticeSession, error)
	SaveStep(ctx context.Context, sessionID, userID uuid.UUID, stepNumber int, rawPayload json.RawMessage) (*types.PracticeSession, error)
	Complete(ctx context.Context, sessionID, userID uuid.UUID) (*types.PracticeSession, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*types.PracticeSession, error)
	Get(ctx context.Context, sessionID, userID uuid.UUID) (*types.PracticeSession, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.PracticeSession, error)
}

type sessionService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	stepRepo    repos.SessionStepRepo
	promptRepo  repos.PromptRepo

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSessionService takes the prompt-selection seed so tests can pin it.
func NewSessionService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.SessionRepo, stepRepo repos.SessionStepRepo, promptRepo repos.PromptRepo, seed int64) SessionService {
	return &sessionService{
		db:          db,
		log:         baseLog.With("service", "SessionService"),
		sessionRepo: sessionRepo,
		stepRepo:    stepRepo,
		promptRepo:  promptRepo,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (ss *sessionService) Start(ctx context.Context, userID uuid.UUID) (*types.PracticeSession, error) {
	var out *types.PracticeSession
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := ss.sessionRepo.GetActiveByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return apierr.Conflict("an active session already exists; complete it before starting another")
		}

		count, err := ss.promptRepo.Count(ctx, tx)
		if err != nil {
			return err
		}
		if count == 0 {
			return apierr.InvalidState("prompt catalog is empty")
		}
		ss.rngMu.Lock()
		offset := ss.rng.Intn(int(count))
		ss.rngMu.Unlock()
		prompt, err := ss.promptRepo.GetByOffset(ctx, tx, offset)
		if err != nil {
			return err
		}
		if prompt == nil {
			return apierr.InvalidState("prompt catalog is empty")
		}

		session := &types.PracticeSession{
			ID:          uuid.New(),
			UserID:      userID,
			PromptID:    prompt.ID,
			Status:      types.SessionStatusActive,
			CurrentStep: 1,
		}
		if _, err := ss.sessionRepo.Create(ctx, tx, session); err != nil {
			return err
		}
		session.Prompt = prompt
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	ss.log.Info("Session started", "user_id", userID.String(), "session_id", out.ID.String())
	return out, nil
}

func (ss *sessionService) SaveStep(ctx context.Context, sessionID, userID uuid.UUID, stepNumber int, rawPayload json.RawMessage) (*types.PracticeSession, error) {
	if stepNumber < 1 || stepNumber > types.TotalSteps {
		return nil, apierr.InvalidArgument("step number %d out of range 1..%d", stepNumber, types.TotalSteps)
	}

	var out *types.PracticeSession
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := ss.sessionRepo.GetByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil || session.UserID != userID {
			return apierr.NotFound("session not found")
		}
		// Hard reject for every non-ACTIVE status; a COMPLETED or SCORED
		// transcript is immutable.
		if session.Status != types.SessionStatusActive {
			return apierr.InvalidState("session is %s; steps can only be saved while ACTIVE", session.Status)
		}
		if stepNumber > session.CurrentStep {
			return apierr.OutOfOrder("step %d is ahead of the current step %d", stepNumber, session.CurrentStep)
		}

		normalized, fields, err := validation.ValidateStep(stepNumber, rawPayload)
		if err != nil {
			return apierr.InvalidArgument("%v", err)
		}
		if len(fields) > 0 {
			return apierr.Validation(fields)
		}

		if stepNumber == types.TotalSteps {
			normalized, err = ss.attachDerivedSummary(ctx, tx, sessionID, normalized)
			if err != nil {
				return err
			}
		}

		step := &types.SessionStep{
			ID:         uuid.New(),
			SessionID:  sessionID,
			StepNumber: stepNumber,
			Payload:    datatypes.JSON(normalized),
		}
		if _, err := ss.stepRepo.Upsert(ctx, tx, step); err != nil {
			return err
		}

		// Only a save of the current step advances the cursor; re-saving an
		// earlier step leaves it alone. Advancing stops at the last step —
		// finishing is an explicit Complete call.
		if stepNumber == session.CurrentStep && session.CurrentStep < types.TotalSteps {
			rows, err := ss.sessionRepo.UpdateFieldsIfStatus(ctx, tx, sessionID,
				[]string{types.SessionStatusActive},
				map[string]interface{}{
					"current_step": session.CurrentStep + 1,
					"updated_at":   time.Now().UTC(),
				})
			if err != nil {
				return err
			}
			if rows == 0 {
				return apierr.InvalidState("session changed concurrently")
			}
			session.CurrentStep++
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attachDerivedSummary folds the short recap built from steps 1 and 3 into
// the step 8 payload before it is stored.
func (ss *sessionService) attachDerivedSummary(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, normalized json.RawMessage) (json.RawMessage, error) {
	goalStep, err := ss.stepRepo.GetBySessionAndStep(ctx, tx, sessionID, 1)
	if err != nil {
		return nil, err
	}
	segmentsStep, err := ss.stepRepo.GetBySessionAndStep(ctx, tx, sessionID, 3)
	if err != nil {
		return nil, err
	}
	var goalRaw, segmentsRaw json.RawMessage
	if goalStep != nil {
		goalRaw = json.RawMessage(goalStep.Payload)
	}
	if segmentsStep != nil {
		segmentsRaw = json.RawMessage(segmentsStep.Payload)
	}

	var summary validation.SummaryPayload
	if err := json.Unmarshal(normalized, &summary); err != nil {
		return nil, fmt.Errorf("re-reading normalized summary: %w", err)
	}
	summary.DerivedSummary = validation.BuildDerivedSummary(goalRaw, segmentsRaw)
	return json.Marshal(summary)
}

func (ss *sessionService) Complete(ctx context.Context, sessionID, userID uuid.UUID) (*types.PracticeSession, error) {
	var out *types.PracticeSession
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := ss.sessionRepo.GetByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil || session.UserID != userID {
			return apierr.NotFound("session not found")
		}
		if session.Status != types.SessionStatusActive {
			return apierr.InvalidState("session is %s, not ACTIVE", session.Status)
		}
		if session.CurrentStep != types.TotalSteps {
			return apierr.InvalidState("session is on step %d of %d", session.CurrentStep, types.TotalSteps)
		}
		stepCount, err := ss.stepRepo.CountBySessionID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if stepCount != types.TotalSteps {
			return apierr.InvalidState("only %d of %d steps are saved", stepCount, types.TotalSteps)
		}

		now := time.Now().UTC()
		rows, err := ss.sessionRepo.UpdateFieldsIfStatus(ctx, tx, sessionID,
			[]string{types.SessionStatusActive},
			map[string]interface{}{
				"status":       types.SessionStatusCompleted,
				"completed_at": now,
				"updated_at":   now,
			})
		if err != nil {
			return err
		}
		if rows == 0 {
			return apierr.InvalidState("session changed concurrently")
		}
		session.Status = types.SessionStatusCompleted
		session.CompletedAt = &now
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	ss.log.Info("Session completed", "user_id", userID.String(), "session_id", sessionID.String())
	return out, nil
}

func (ss *sessionService) GetActive(ctx context.Context, userID uuid.UUID) (*types.PracticeSession, error) {
	// Absence of an active session is a normal state, not an error.
	return ss.sessionRepo.GetActiveByUserID(ctx, nil, userID)
}

func (ss *sessionService) Get(ctx context.Context, sessionID, userID uuid.UUID) (*types.PracticeSession, error) {
	session, err := ss.sessionRepo.GetByIDWithDetail(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, apierr.NotFound("session not found")
	}
	return session, nil
}

func (ss *sessionService) List(ctx context.Context, userID uuid.UUID) ([]*types.PracticeSession, error) {
	return ss.sessionRepo.ListByUserID(ctx, nil, userID)
}
