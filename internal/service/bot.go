package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/pkg/utils"
	"go.uber.org/zap"
)

func (s *Service) LinkTelegram(ctx context.Context, code string, chatID int64) (string, error) {
	userID, err := s.repo.LinkTelegramChat(ctx, code, chatID)
	if err != nil {
		return "", fmt.Errorf("link telegram (chat_id: %d): %w", chatID, err)
	}
	return userID, nil
}

func (s *Service) UserByChat(ctx context.Context, chatID int64) (string, error) {
	return s.repo.GetUserIDByTelegramChat(ctx, chatID)
}

func (s *Service) ProfilesWithTelegram(ctx context.Context) ([]*models.Profile, error) {
	return s.repo.GetProfilesWithTelegram(ctx)
}

// Habits returns the user's habits with today's completion flags.
func (s *Service) Habits(ctx context.Context, userID string) ([]models.Habit, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.Habits, nil
}

func (s *Service) Projects(ctx context.Context, userID string) ([]models.Project, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.Projects, nil
}

// ResetHabits clears stored completions older than the given day and reloads live sessions
// so their flags follow. A session that fails to reload keeps its state and is logged.
func (s *Service) ResetHabits(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.ResetHabitCompletion(ctx, before)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	userIDs := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		userIDs = append(userIDs, id)
	}
	s.mu.Unlock()

	for _, id := range userIDs {
		if _, err := s.Reload(ctx, id); err != nil {
			zap.S().Errorw("reload after habit reset", zap.Error(err), zap.String("user_id", id))
		}
	}
	return n, nil
}

// RunDailyReset blocks until ctx is cancelled, calling ResetHabits shortly after every
// midnight in the default timezone.
func (s *Service) RunDailyReset(ctx context.Context) {
	location := utils.LoadLocationOrUTC(s.defaultTZ)
	getNextMidnight := func() time.Time {
		return utils.StartOfDay(time.Now().In(location)).AddDate(0, 0, 1)
	}

	timer := time.NewTimer(time.Until(getNextMidnight()))
	defer timer.Stop()

	var lastRunDate time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now().In(location)
		if currentDate := utils.StartOfDay(now); !utils.DatesEqual(lastRunDate, currentDate) {
			if n, err := s.ResetHabits(ctx, resetCutoff(now)); err != nil {
				zap.S().Errorw("run daily habit reset", zap.Error(err))
			} else {
				lastRunDate = currentDate
				zap.S().Infow("daily habit reset completed", zap.Int64("habits", n))
			}
		}

		timer.Reset(time.Until(getNextMidnight()))
	}
}

// resetCutoff returns yesterday's date as UTC midnight. Completions stay until the day
// is over in every timezone.
func resetCutoff(now time.Time) time.Time {
	yesterday := utils.StartOfDay(now).AddDate(0, 0, -1)
	return time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
}
