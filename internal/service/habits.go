package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"go.uber.org/zap"
)

const defaultHabitIcon = "🌱"

func tempID() string {
	return "tmp-" + uuid.NewString()
}

func (s *Service) AddHabit(ctx context.Context, userID string, in HabitInput) (*models.Habit, error) {
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

	icon := trimmed(in.Icon)
	if icon == "" {
		icon = defaultHabitIcon
	}
	pending := models.Habit{
		ID:          tempID(),
		Name:        trimmed(in.Name),
		MicroAction: trimmed(in.MicroAction),
		Icon:        icon,
		ProjectID:   in.ProjectID,
		Reminder:    in.Reminder,
	}

	created, err := state.Tentative(ctx, sess.holder, state.Mutation[*models.Habit]{
		Apply: func(snap *state.Snapshot) { snap.Habits = append(snap.Habits, pending) },
		Remote: func(ctx context.Context) (*models.Habit, error) {
			return s.repo.CreateHabit(ctx, userID, &pending)
		},
		Revert: func(snap *state.Snapshot) { snap.RemoveHabit(pending.ID) },
		Commit: func(snap *state.Snapshot, habit *models.Habit) {
			if i := snap.HabitIndex(pending.ID); i >= 0 {
				snap.Habits[i] = *habit
			}
		},
	})
	if err != nil {
		zap.S().Errorw("add habit", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("add habit (user_id: %s): %w", userID, err)
	}

	return created, nil
}

func (s *Service) UpdateHabit(ctx context.Context, userID, habitID string, in HabitInput) (*models.Habit, error) {
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
	idx := snap.HabitIndex(habitID)
	if idx < 0 {
		return nil, fmt.Errorf("update habit (user_id: %s, habit_id: %s): %w", userID, habitID, models.ErrNotFound)
	}
	prev := snap.Habits[idx]

	updated := prev
	updated.Name = trimmed(in.Name)
	updated.MicroAction = trimmed(in.MicroAction)
	if icon := trimmed(in.Icon); icon != "" {
		updated.Icon = icon
	}
	updated.ProjectID = in.ProjectID
	updated.Reminder = in.Reminder

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { replaceHabit(snap, updated) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.UpdateHabit(ctx, userID, &updated)
		},
		Revert: func(snap *state.Snapshot) { replaceHabit(snap, prev) },
	})
	if err != nil {
		zap.S().Errorw("update habit", zap.Error(err), zap.String("user_id", userID), zap.String("habit_id", habitID))
		return nil, fmt.Errorf("update habit (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}

	return &updated, nil
}

// ToggleHabit flips today's completion. Completing awards points; un-completing never
// deducts them.
func (s *Service) ToggleHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := sess.holder.Get()
	idx := snap.HabitIndex(habitID)
	if idx < 0 {
		return nil, fmt.Errorf("toggle habit (user_id: %s, habit_id: %s): %w", userID, habitID, models.ErrNotFound)
	}
	prev := snap.Habits[idx]
	day := s.today(snap)

	toggled := prev
	toggled.CompletedToday = !completedOn(prev.CompletedOn, day)
	toggled.CompletedOn = nil
	if toggled.CompletedToday {
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		toggled.CompletedOn = &date
	}

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { setHabitCompletion(snap, habitID, toggled.CompletedToday, toggled.CompletedOn) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.SetHabitCompletion(ctx, userID, habitID, toggled.CompletedOn)
		},
		Revert: func(snap *state.Snapshot) { setHabitCompletion(snap, habitID, prev.CompletedToday, prev.CompletedOn) },
	})
	if err != nil {
		zap.S().Errorw("toggle habit", zap.Error(err), zap.String("user_id", userID), zap.String("habit_id", habitID))
		return nil, fmt.Errorf("toggle habit (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}

	if toggled.CompletedToday {
		s.publishCompleted(ctx, sess, events.KindHabit, habitID, 0)
	}
	return &toggled, nil
}

func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return err
	}

	snap := sess.holder.Get()
	idx := snap.HabitIndex(habitID)
	if idx < 0 {
		return fmt.Errorf("delete habit (user_id: %s, habit_id: %s): %w", userID, habitID, models.ErrNotFound)
	}
	prev := snap.Habits[idx]

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { snap.RemoveHabit(habitID) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.DeleteHabit(ctx, userID, habitID)
		},
		Revert: func(snap *state.Snapshot) { snap.InsertHabit(idx, prev) },
	})
	if err != nil {
		zap.S().Errorw("delete habit", zap.Error(err), zap.String("user_id", userID), zap.String("habit_id", habitID))
		return fmt.Errorf("delete habit (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}
	return nil
}

func replaceHabit(snap *state.Snapshot, h models.Habit) {
	if i := snap.HabitIndex(h.ID); i >= 0 {
		snap.Habits[i] = h
	}
}

func setHabitCompletion(snap *state.Snapshot, habitID string, completed bool, on *time.Time) {
	if i := snap.HabitIndex(habitID); i >= 0 {
		snap.Habits[i].CompletedToday = completed
		snap.Habits[i].CompletedOn = on
	}
}
