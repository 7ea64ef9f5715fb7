package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/romanzh1/mindful-garden/internal/gamification"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"github.com/romanzh1/mindful-garden/pkg/utils"
	"go.uber.org/zap"
)

// Session is the in-memory state of one signed-in user.
type Session struct {
	userID string
	holder *state.Holder

	loadMu sync.Mutex
	loaded atomic.Bool
}

func newSession(userID string) *Session {
	return &Session{userID: userID, holder: state.NewHolder()}
}

// Reload rebuilds the user's snapshot from the store.
func (s *Service) Reload(ctx context.Context, userID string) (state.Snapshot, error) {
	sess := s.getOrCreate(userID)
	return s.reload(ctx, sess)
}

type fetched struct {
	profile   *models.Profile
	habits    []models.Habit
	projects  []models.Project
	workTasks []models.WorkTask
	history   []models.DailyStat
}

// reload fetches everything, then installs a new snapshot unless a newer reload started
// in the meantime. On error the current snapshot is kept.
func (s *Service) reload(ctx context.Context, sess *Session) (state.Snapshot, error) {
	gen := sess.holder.BeginReload()

	data, err := s.fetch(ctx, sess.userID)
	if err != nil {
		return sess.holder.Get(), err
	}

	tz := s.defaultTZ
	if data.profile != nil && data.profile.Timezone != "" {
		tz = data.profile.Timezone
	}
	today := utils.ToUserTimezone(s.now(), tz)

	for i := range data.habits {
		data.habits[i].CompletedToday = completedOn(data.habits[i].CompletedOn, today)
	}

	committed := sess.holder.CommitReload(gen, func(current state.Snapshot) state.Snapshot {
		points := 0
		var lastAction time.Time
		if data.profile != nil {
			points = data.profile.GlowPoints
			if data.profile.LastActionAt != nil {
				lastAction = *data.profile.LastActionAt
			}
		}

		return state.Snapshot{
			Profile:      data.profile,
			Habits:       data.habits,
			Projects:     data.projects,
			WorkTasks:    data.workTasks,
			Gamification: gamification.NewState(points, lastAction, data.history),
			Screen:       state.NextScreen(current.Screen, data.profile),
			CoachContext: current.CoachContext,
		}
	})
	if committed {
		sess.loaded.Store(true)
	} else {
		zap.S().Debugw("discard stale reload", zap.String("user_id", sess.userID))
	}

	return sess.holder.Get(), nil
}

func (s *Service) fetch(ctx context.Context, userID string) (*fetched, error) {
	var data fetched

	profile, err := s.repo.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		profile = nil
	case err != nil:
		return nil, fmt.Errorf("get profile (user_id: %s): %w", userID, err)
	}
	data.profile = profile

	if data.habits, err = s.repo.ListHabits(ctx, userID); err != nil {
		return nil, fmt.Errorf("list habits (user_id: %s): %w", userID, err)
	}
	if data.projects, err = s.repo.ListProjects(ctx, userID); err != nil {
		return nil, fmt.Errorf("list projects (user_id: %s): %w", userID, err)
	}
	if data.workTasks, err = s.repo.ListWorkTasks(ctx, userID); err != nil {
		return nil, fmt.Errorf("list work tasks (user_id: %s): %w", userID, err)
	}

	since := utils.StartOfDay(s.now()).AddDate(0, 0, -gamification.HistoryDays)
	if data.history, err = s.repo.ListDailyStats(ctx, userID, since); err != nil {
		// History only feeds the evolution view.
		zap.S().Warnw("list daily stats", zap.Error(err), zap.String("user_id", userID))
		data.history = nil
	}

	return &data, nil
}

// completedOn reports whether a stored completion date is the user's today.
// Dates are compared as calendar days, whatever location the driver returned.
func completedOn(date *time.Time, today time.Time) bool {
	if date == nil {
		return false
	}
	return date.Format(utils.DayLayout) == utils.DayKey(today)
}
