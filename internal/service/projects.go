package service

import (
	"context"
	"fmt"

	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"go.uber.org/zap"
)

func (s *Service) AddProject(ctx context.Context, userID string, in ProjectInput) (*models.Project, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if err := checkReminder(in.Reminder); err != nil {
		return nil, err
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := models.Project{
		ID:         tempID(),
		Name:       trimmed(in.Name),
		NextAction: trimmed(in.NextAction),
		Status:     models.ProjectActive,
		Reminder:   in.Reminder,
	}

	created, err := state.Tentative(ctx, sess.holder, state.Mutation[*models.Project]{
		Apply: func(snap *state.Snapshot) { snap.Projects = append(snap.Projects, pending) },
		Remote: func(ctx context.Context) (*models.Project, error) {
			return s.repo.CreateProject(ctx, userID, &pending)
		},
		Revert: func(snap *state.Snapshot) { snap.RemoveProject(pending.ID) },
		Commit: func(snap *state.Snapshot, project *models.Project) {
			if i := snap.ProjectIndex(pending.ID); i >= 0 {
				snap.Projects[i] = *project
			}
		},
	})
	if err != nil {
		zap.S().Errorw("add project", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("add project (user_id: %s): %w", userID, err)
	}

	return created, nil
}

func (s *Service) UpdateProject(ctx context.Context, userID, projectID string, in ProjectInput) (*models.Project, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if err := checkReminder(in.Reminder); err != nil {
		return nil, err
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := sess.holder.Get()
	idx := snap.ProjectIndex(projectID)
	if idx < 0 {
		return nil, fmt.Errorf("update project (user_id: %s, project_id: %s): %w", userID, projectID, models.ErrNotFound)
	}
	prev := snap.Projects[idx]

	updated := prev
	updated.Name = trimmed(in.Name)
	updated.NextAction = trimmed(in.NextAction)
	updated.Reminder = in.Reminder

	if err = s.writeProject(ctx, sess, prev, updated); err != nil {
		zap.S().Errorw("update project", zap.Error(err), zap.String("user_id", userID), zap.String("project_id", projectID))
		return nil, fmt.Errorf("update project (user_id: %s, project_id: %s): %w", userID, projectID, err)
	}
	return &updated, nil
}

// CompleteProjectAction records the current next action as done and sets the following one.
// An empty next action completes the project.
func (s *Service) CompleteProjectAction(ctx context.Context, userID, projectID, next string) (*models.Project, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := sess.holder.Get()
	idx := snap.ProjectIndex(projectID)
	if idx < 0 {
		return nil, fmt.Errorf("complete project action (user_id: %s, project_id: %s): %w", userID, projectID, models.ErrNotFound)
	}
	prev := snap.Projects[idx]
	if prev.Status == models.ProjectCompleted {
		return nil, fmt.Errorf("complete project action (user_id: %s, project_id: %s): %w", userID, projectID, models.ErrAlreadyDone)
	}

	updated := prev
	updated.NextAction = trimmed(next)
	if updated.NextAction == "" {
		updated.Status = models.ProjectCompleted
	}

	if err = s.writeProject(ctx, sess, prev, updated); err != nil {
		zap.S().Errorw("complete project action", zap.Error(err), zap.String("user_id", userID), zap.String("project_id", projectID))
		return nil, fmt.Errorf("complete project action (user_id: %s, project_id: %s): %w", userID, projectID, err)
	}

	s.publishCompleted(ctx, sess, events.KindProjectAction, projectID, 0)
	return &updated, nil
}

func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return err
	}

	snap := sess.holder.Get()
	idx := snap.ProjectIndex(projectID)
	if idx < 0 {
		return fmt.Errorf("delete project (user_id: %s, project_id: %s): %w", userID, projectID, models.ErrNotFound)
	}
	prev := snap.Projects[idx]

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { snap.RemoveProject(projectID) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.DeleteProject(ctx, userID, projectID)
		},
		Revert: func(snap *state.Snapshot) { snap.InsertProject(idx, prev) },
	})
	if err != nil {
		zap.S().Errorw("delete project", zap.Error(err), zap.String("user_id", userID), zap.String("project_id", projectID))
		return fmt.Errorf("delete project (user_id: %s, project_id: %s): %w", userID, projectID, err)
	}
	return nil
}

func (s *Service) writeProject(ctx context.Context, sess *Session, prev, updated models.Project) error {
	_, err := state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { replaceProject(snap, updated) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.UpdateProject(ctx, sess.userID, &updated)
		},
		Revert: func(snap *state.Snapshot) { replaceProject(snap, prev) },
	})
	return err
}

func replaceProject(snap *state.Snapshot, p models.Project) {
	if i := snap.ProjectIndex(p.ID); i >= 0 {
		snap.Projects[i] = p
	}
}
