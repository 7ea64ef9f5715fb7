package gamification

import (
	"context"
	"time"

	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"go.uber.org/zap"
)

type Store interface {
	AddGlowPoints(ctx context.Context, userID string, points int) (int, error)
	AddDailyStat(ctx context.Context, userID string, delta models.DailyStat) error
}

// StateUpdater applies fn to the user's in-memory gamification state, if a session exists.
type StateUpdater interface {
	UpdateGamification(userID string, fn func(models.GamificationState) models.GamificationState) bool
}

type Handler struct {
	store   Store
	updater StateUpdater
	now     func() time.Time
}

func NewHandler(store Store, updater StateUpdater) *Handler {
	return &Handler{store: store, updater: updater, now: time.Now}
}

// Handle awards points for EntityCompleted. The local state changes first; the remote
// counter and the daily stat are best effort and never reconciled.
func (h *Handler) Handle(ctx context.Context, e events.Event) {
	completed, ok := e.(events.EntityCompleted)
	if !ok {
		return
	}

	points := Points(completed.Kind, completed.Minutes)
	if points <= 0 {
		return
	}

	now := h.now()
	day := completed.Day
	if day == "" {
		day = now.Format("2006-01-02")
	}

	delta := models.DailyStat{Date: day, Points: points}
	if completed.Kind == events.KindFocus {
		delta.FocusMinutes = completed.Minutes
	} else {
		delta.TasksDone = 1
	}

	h.updater.UpdateGamification(completed.UserID, func(g models.GamificationState) models.GamificationState {
		return Apply(g, delta, now)
	})

	if _, err := h.store.AddGlowPoints(ctx, completed.UserID, points); err != nil {
		zap.S().Errorw("add glow points", zap.Error(err),
			zap.String("user_id", completed.UserID), zap.Int("points", points))
	}

	if err := h.store.AddDailyStat(ctx, completed.UserID, delta); err != nil {
		zap.S().Errorw("add daily stat", zap.Error(err),
			zap.String("user_id", completed.UserID), zap.String("date", day))
	}
}
