package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/gamification"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"github.com/romanzh1/mindful-garden/pkg/utils"
	"go.uber.org/zap"
)

const (
	pendingProfileID   = "pending"
	defaultDisplayName = "Viajante"
	maxFocusMinutes    = 180
	evolutionDays      = 7
)

func (s *Service) UpdateEnergy(ctx context.Context, userID string, level int) (*models.Profile, error) {
	if level < 1 || level > 10 {
		return nil, &ValidationError{Err: fmt.Errorf("energy level %d out of range 1-10", level)}
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := sess.holder.Get()
	if snap.Profile == nil {
		return nil, fmt.Errorf("update energy (user_id: %s): %w", userID, models.ErrNotFound)
	}
	prev := snap.Profile.EnergyLevel

	_, err = state.Tentative(ctx, sess.holder, state.Mutation[struct{}]{
		Apply: func(snap *state.Snapshot) { setEnergy(snap, level) },
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.UpdateEnergyLevel(ctx, userID, level)
		},
		Revert: func(snap *state.Snapshot) { setEnergy(snap, prev) },
	})
	if err != nil {
		zap.S().Errorw("update energy", zap.Error(err), zap.String("user_id", userID), zap.Int("level", level))
		return nil, fmt.Errorf("update energy (user_id: %s, level: %d): %w", userID, level, err)
	}

	delta := models.DailyStat{Date: utils.DayKey(s.today(snap)), Energy: level}
	s.UpdateGamification(userID, func(g models.GamificationState) models.GamificationState {
		return gamification.Apply(g, delta, g.LastActionDate)
	})
	if err = s.repo.AddDailyStat(ctx, userID, delta); err != nil {
		zap.S().Errorw("record energy", zap.Error(err), zap.String("user_id", userID))
	}

	return sess.holder.Get().Profile, nil
}

// CompleteOnboarding moves to home at once with a placeholder profile, then persists and
// reloads. A failed write keeps the optimistic state.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string, in OnboardingInput) (state.Snapshot, error) {
	if err := check(in); err != nil {
		return state.Snapshot{}, err
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		zap.S().Warnw("onboarding without loaded session", zap.Error(err), zap.String("user_id", userID))
	}

	name := trimmed(in.FullName)
	if name == "" {
		name = defaultDisplayName
	}
	timezone := in.Timezone
	if timezone == "" {
		timezone = s.defaultTZ
	}
	difficulties := slices.Clone(in.Difficulties)
	if difficulties == nil {
		difficulties = []string{}
	}

	sess.holder.Update(func(snap *state.Snapshot) {
		placeholder := models.Profile{Level: 1}
		if snap.Profile != nil {
			placeholder = *snap.Profile
		}
		placeholder.ID = pendingProfileID
		placeholder.FullName = name
		placeholder.EnergyLevel = in.EnergyLevel
		placeholder.Difficulties = difficulties
		placeholder.OnboardingCompleted = true
		placeholder.Timezone = timezone

		snap.Profile = &placeholder
		snap.Screen = models.ScreenHome
	})

	profile := &models.Profile{
		ID:                  userID,
		FullName:            name,
		EnergyLevel:         in.EnergyLevel,
		Difficulties:        difficulties,
		OnboardingCompleted: true,
		Timezone:            timezone,
	}
	if err = s.repo.UpsertProfile(ctx, profile); err != nil {
		zap.S().Errorw("persist onboarding", zap.Error(err), zap.String("user_id", userID))
		return sess.holder.Get(), fmt.Errorf("complete onboarding (user_id: %s): %w", userID, err)
	}

	return s.reload(ctx, sess)
}

// CompleteFocusSession has no row of its own: points and focus minutes are recorded by the
// gamification handler.
func (s *Service) CompleteFocusSession(ctx context.Context, userID string, minutes int) (models.GamificationState, error) {
	if minutes < 1 || minutes > maxFocusMinutes {
		return models.GamificationState{}, &ValidationError{Err: fmt.Errorf("focus minutes %d out of range 1-%d", minutes, maxFocusMinutes)}
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return models.GamificationState{}, err
	}

	s.publishCompleted(ctx, sess, events.KindFocus, "", minutes)
	return sess.holder.Get().Gamification, nil
}

func (s *Service) Navigate(ctx context.Context, userID string, screen models.Screen) (state.Snapshot, error) {
	if !screen.IsValid() {
		return state.Snapshot{}, &ValidationError{Err: fmt.Errorf("unknown screen %q", screen)}
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return state.Snapshot{}, err
	}
	return sess.holder.Update(func(snap *state.Snapshot) { snap.Screen = screen }), nil
}

// TakeCoachContext returns the pending coach context and clears it.
func (s *Service) TakeCoachContext(userID string) string {
	sess, err := s.existing(userID)
	if err != nil {
		return ""
	}

	var text string
	sess.holder.Update(func(snap *state.Snapshot) {
		text = snap.CoachContext
		snap.CoachContext = ""
	})
	return text
}

// Advice answers with the pending coach context as prompt, or the default morning prompt.
func (s *Service) Advice(ctx context.Context, userID string) string {
	return s.coach.Advice(ctx, s.TakeCoachContext(userID))
}

func (s *Service) HabitPlan(ctx context.Context, goal string) coach.HabitPlan {
	return s.coach.HabitPlan(ctx, trimmed(goal))
}

func (s *Service) ProjectPlan(ctx context.Context, goal string) coach.ProjectPlan {
	return s.coach.ProjectPlan(ctx, trimmed(goal))
}

func (s *Service) Insight(ctx context.Context, userID string) (string, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.coach.Insight(ctx, snap.Gamification.History), nil
}

func (s *Service) Garden(ctx context.Context, userID string) (gamification.Garden, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return gamification.Garden{}, err
	}
	return gamification.GardenOf(snap.Gamification), nil
}

func (s *Service) Evolution(ctx context.Context, userID string) ([]models.DailyStat, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return gamification.LastDays(snap.Gamification.History, s.today(snap), evolutionDays), nil
}

// TelegramLinkCode issues a one-time code for /start in the bot.
func (s *Service) TelegramLinkCode(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link code: %w", err)
	}
	code := hex.EncodeToString(buf)

	if err := s.repo.SetTelegramLinkCode(ctx, userID, code); err != nil {
		return "", fmt.Errorf("store link code (user_id: %s): %w", userID, err)
	}
	return code, nil
}

func setEnergy(snap *state.Snapshot, level int) {
	if snap.Profile != nil {
		snap.Profile.EnergyLevel = level
	}
}
