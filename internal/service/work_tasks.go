package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"go.uber.org/zap"
)

func (s *Service) AddWorkTask(ctx context.Context, userID string, in WorkTaskInput) (*models.WorkTask, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	var deadline *time.Time
	if in.Deadline != nil && *in.Deadline != "" {
		t, err := parseDeadline(*in.Deadline)
		if err != nil {
			return nil, &ValidationError{Err: err}
		}
		deadline = &t
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := models.WorkTask{
		ID:             tempID(),
		Title:          trimmed(in.Title),
		Description:    trimmed(in.Description),
		EnergyRequired: in.EnergyRequired,
		Status:         models.WorkTaskPending,
		Deadline:       deadline,
		MicroSteps:     slices.Clone(in.MicroSteps),
	}

	created, err := state.Tentative(ctx, sess.holder, state.Mutation[*models.WorkTask]{
		Apply: func(snap *state.Snapshot) { snap.WorkTasks = append(snap.WorkTasks, pending) },
		Remote: func(ctx context.Context) (*models.WorkTask, error) {
			return s.repo.CreateWorkTask(ctx, userID, &pending)
		},
		Revert: func(snap *state.Snapshot) { snap.RemoveWorkTask(pending.ID) },
		Commit: func(snap *state.Snapshot, task *models.WorkTask) {
			if i := snap.WorkTaskIndex(pending.ID); i >= 0 {
				snap.WorkTasks[i] = *task
			}
		},
	})
	if err != nil {
		zap.S().Errorw("add work task", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("add work task (user_id: %s): %w", userID, err)
	}

	s.bus.Publish(ctx, events.EntityAdded{UserID: userID, Kind: events.KindWorkTask, EntityID: created.ID})
	return created, nil
}

// CompleteWorkTask moves a task to done. Done is final: completing twice is ErrAlreadyDone.
func (s *Service) CompleteWorkTask(ctx context.Context, userID, taskID string) (*models.WorkTask, error) {
	return s.completeWorkTask(ctx, userID, taskID, events.KindWorkTask)
}

// CompleteTask completes the work task behind a derived home-screen task.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID string) (*models.WorkTask, error) {
	return s.completeWorkTask(ctx, userID, taskID, events.KindHomeTask)
}

func (s *Service) completeWorkTask(ctx context.Context, userID, taskID string, kind events.Kind) (*models.WorkTask, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := sess.holder.Get()
	idx := snap.WorkTaskIndex(taskID)
	if idx < 0 {
		return nil, fmt.Errorf("complete work task (user_id: %s, task_id: %s): %w", userID, taskID, models.ErrNotFound)
	}
	prev := snap.WorkTasks[idx]
	if prev.Status == models.WorkTaskDone {
		return nil, fmt.Errorf("complete work task (user_id: %s, task_id: %s): %w", userID, taskID, models.ErrAlreadyDone)
	}

	now := s.now()
	done := prev
	done.Status = models.WorkTaskDone
	done.CompletedAt = &now

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { replaceWorkTask(snap, done) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.UpdateWorkTaskStatus(ctx, userID, taskID, models.WorkTaskDone, &now)
		},
		Revert: func(snap *state.Snapshot) { replaceWorkTask(snap, prev) },
	})
	if err != nil {
		zap.S().Errorw("complete work task", zap.Error(err), zap.String("user_id", userID), zap.String("task_id", taskID))
		return nil, fmt.Errorf("complete work task (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}

	s.publishCompleted(ctx, sess, kind, taskID, 0)
	return &done, nil
}

func (s *Service) DeleteWorkTask(ctx context.Context, userID, taskID string) error {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return err
	}

	snap := sess.holder.Get()
	idx := snap.WorkTaskIndex(taskID)
	if idx < 0 {
		return fmt.Errorf("delete work task (user_id: %s, task_id: %s): %w", userID, taskID, models.ErrNotFound)
	}
	prev := snap.WorkTasks[idx]

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { snap.RemoveWorkTask(taskID) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.DeleteWorkTask(ctx, userID, taskID)
		},
		Revert: func(snap *state.Snapshot) { snap.InsertWorkTask(idx, prev) },
	})
	if err != nil {
		zap.S().Errorw("delete work task", zap.Error(err), zap.String("user_id", userID), zap.String("task_id", taskID))
		return fmt.Errorf("delete work task (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	return nil
}

// BreakDownWorkTask asks the coach for micro-steps and stores them on the task.
// The breakdown is returned even when storing it fails.
func (s *Service) BreakDownWorkTask(ctx context.Context, userID, taskID string) (coach.Breakdown, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return coach.Breakdown{}, err
	}

	snap := sess.holder.Get()
	idx := snap.WorkTaskIndex(taskID)
	if idx < 0 {
		return coach.Breakdown{}, fmt.Errorf("break down work task (user_id: %s, task_id: %s): %w", userID, taskID, models.ErrNotFound)
	}
	prev := snap.WorkTasks[idx]

	breakdown := s.coach.BreakDown(ctx, prev.Title)

	updated := prev
	updated.MicroSteps = slices.Clone(breakdown.Steps)

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { replaceWorkTask(snap, updated) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.UpdateWorkTaskMicroSteps(ctx, userID, taskID, breakdown.Steps)
		},
		Revert: func(snap *state.Snapshot) { replaceWorkTask(snap, prev) },
	})
	if err != nil {
		zap.S().Errorw("store micro steps", zap.Error(err), zap.String("user_id", userID), zap.String("task_id", taskID))
		return breakdown, fmt.Errorf("break down work task (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	return breakdown, nil
}

func replaceWorkTask(snap *state.Snapshot, w models.WorkTask) {
	if i := snap.WorkTaskIndex(w.ID); i >= 0 {
		snap.WorkTasks[i] = w
	}
}

func parseDeadline(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q", value)
	}
	return t, nil
}
