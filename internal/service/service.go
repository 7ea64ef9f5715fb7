package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/gamification"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/state"
	"github.com/romanzh1/mindful-garden/pkg/utils"
	"go.uber.org/zap"
)

var ErrNoSession = errors.New("no active session")

const (
	coachContextWorkDone  = "Um passo gigante na sua carreira. Respire e descanse agora."
	coachContextWorkAdded = "Nova missão profissional aceita. Vamos com calma."
)

type Service struct {
	repo      models.Repository
	coach     *coach.Coach
	bus       *events.Bus
	defaultTZ string
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService subscribes the gamification and coach-context handlers and the session
// lifecycle handler to bus, in that order.
func NewService(repo models.Repository, coach *coach.Coach, bus *events.Bus, defaultTZ string) *Service {
	s := &Service{
		repo:      repo,
		coach:     coach,
		bus:       bus,
		defaultTZ: defaultTZ,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}

	bus.Subscribe(gamification.NewHandler(repo, s).Handle)
	bus.Subscribe(s.handleCoachContext)
	bus.Subscribe(s.handleSessionEvent)

	return s
}

func (s *Service) Bus() *events.Bus {
	return s.bus
}

func (s *Service) getOrCreate(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSession(userID)
		s.sessions[userID] = sess
	}
	return sess
}

// session returns the user's session, loading it until a load succeeds.
// Habit flags from an earlier day are cleared on every access.
func (s *Service) session(ctx context.Context, userID string) (*Session, error) {
	sess := s.getOrCreate(userID)

	if err := s.ensureLoaded(ctx, sess); err != nil {
		zap.S().Errorw("initial session load", zap.Error(err), zap.String("user_id", userID))
		return sess, fmt.Errorf("load session (user_id: %s): %w", userID, err)
	}

	s.rollDay(sess)
	return sess, nil
}

func (s *Service) ensureLoaded(ctx context.Context, sess *Session) error {
	if sess.loaded.Load() {
		return nil
	}

	sess.loadMu.Lock()
	defer sess.loadMu.Unlock()

	if sess.loaded.Load() {
		return nil
	}
	_, err := s.reload(ctx, sess)
	return err
}

// rollDay recomputes CompletedToday for sessions that lived past the user's midnight.
func (s *Service) rollDay(sess *Session) {
	snap := sess.holder.Get()
	today := s.today(snap)

	stale := slices.ContainsFunc(snap.Habits, func(h models.Habit) bool {
		return h.CompletedToday != completedOn(h.CompletedOn, today)
	})
	if !stale {
		return
	}

	sess.holder.Update(func(snap *state.Snapshot) {
		for i := range snap.Habits {
			snap.Habits[i].CompletedToday = completedOn(snap.Habits[i].CompletedOn, today)
		}
	})
}

func (s *Service) existing(userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

func (s *Service) dropSession(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		sess.holder.Clear()
	}
}

// Snapshot returns the current state, loading the session if needed.
func (s *Service) Snapshot(ctx context.Context, userID string) (state.Snapshot, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return sess.holder.Get(), err
	}
	return sess.holder.Get(), nil
}

// SnapshotOf returns the state of an existing session without loading anything.
func (s *Service) SnapshotOf(userID string) (state.Snapshot, error) {
	sess, err := s.existing(userID)
	if err != nil {
		return state.Empty(), err
	}
	return sess.holder.Get(), nil
}

// UpdateGamification lets the gamification handler patch a live session.
func (s *Service) UpdateGamification(userID string, fn func(models.GamificationState) models.GamificationState) bool {
	sess, err := s.existing(userID)
	if err != nil {
		return false
	}
	sess.holder.Update(func(snap *state.Snapshot) {
		snap.Gamification = fn(snap.Gamification)
		if snap.Profile != nil {
			snap.Profile.GlowPoints = snap.Gamification.GlowPoints
			snap.Profile.Level = snap.Gamification.Level
		}
	})
	return true
}

// today is the user's current date, in the profile timezone or the service default.
func (s *Service) today(snap state.Snapshot) time.Time {
	tz := s.defaultTZ
	if snap.Profile != nil && snap.Profile.Timezone != "" {
		tz = snap.Profile.Timezone
	}
	return utils.ToUserTimezone(s.now(), tz)
}

func (s *Service) publishCompleted(ctx context.Context, sess *Session, kind events.Kind, entityID string, minutes int) {
	s.bus.Publish(ctx, events.EntityCompleted{
		UserID:   sess.userID,
		Kind:     kind,
		EntityID: entityID,
		Minutes:  minutes,
		Day:      utils.DayKey(s.today(sess.holder.Get())),
	})
}

func (s *Service) handleCoachContext(_ context.Context, e events.Event) {
	var text string
	switch ev := e.(type) {
	case events.EntityCompleted:
		if ev.Kind == events.KindWorkTask {
			text = coachContextWorkDone
		}
	case events.EntityAdded:
		if ev.Kind == events.KindWorkTask {
			text = coachContextWorkAdded
		}
	}
	if text == "" {
		return
	}

	sess, err := s.existing(e.User())
	if err != nil {
		return
	}
	sess.holder.Update(func(snap *state.Snapshot) { snap.CoachContext = text })
}

// handleSessionEvent reloads on sign-in and forgets the session on sign-out.
// A sign-in seen on another instance only invalidates the local cache.
func (s *Service) handleSessionEvent(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.SessionStarted:
		if ev.Remote {
			s.dropSession(ev.UserID)
			return
		}
		if _, err := s.Reload(ctx, ev.UserID); err != nil {
			zap.S().Errorw("reload on session start", zap.Error(err), zap.String("user_id", ev.UserID))
		}
	case events.SessionEnded:
		s.dropSession(ev.UserID)
	}
}
