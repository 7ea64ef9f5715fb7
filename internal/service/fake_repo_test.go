package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/romanzh1/mindful-garden/internal/models"
)

var errRemote = errors.New("remote unavailable")

// fakeRepo is an in-memory models.Repository. Setting fail makes every write fail.
type fakeRepo struct {
	mu sync.Mutex

	fail        bool
	profileErr  error
	brokenUsers map[string]bool
	resetBefore time.Time
	nextID      int

	profiles  map[string]*models.Profile
	habits    []models.Habit
	projects  []models.Project
	workTasks []models.WorkTask
	stats     []models.DailyStat
	points    map[string]int

	// beforeList runs at the start of ListHabits, letting tests interleave reloads.
	beforeList func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: make(map[string]*models.Profile),
		points:   make(map[string]int),
	}
}

func (f *fakeRepo) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRepo) write() error {
	if f.fail {
		return errRemote
	}
	return nil
}

func (f *fakeRepo) CreateUser(context.Context, *models.User) error { return nil }
func (f *fakeRepo) GetUserByID(context.Context, string) (*models.User, error) {
	return nil, models.ErrNotFound
}
func (f *fakeRepo) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, models.ErrNotFound
}
func (f *fakeRepo) GetUserByGoogleSubject(context.Context, string) (*models.User, error) {
	return nil, models.ErrNotFound
}
func (f *fakeRepo) LinkGoogleSubject(context.Context, string, string) error { return nil }
func (f *fakeRepo) BumpSessionVersion(context.Context, string) (int, error) { return 2, nil }
func (f *fakeRepo) RunInTx(_ context.Context, fn func(models.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.brokenUsers[userID] {
		return nil, errRemote
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	cp.GlowPoints = f.points[userID]
	cp.Level = cp.GlowPoints/100 + 1
	return &cp, nil
}

func (f *fakeRepo) UpsertProfile(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	cp := *profile
	f.profiles[profile.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdateEnergyLevel(_ context.Context, userID string, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	if p, ok := f.profiles[userID]; ok {
		p.EnergyLevel = level
	}
	return nil
}

func (f *fakeRepo) AddGlowPoints(_ context.Context, userID string, points int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return 0, err
	}
	f.points[userID] += points
	return f.points[userID], nil
}

func (f *fakeRepo) SetTelegramLinkCode(context.Context, string, string) error { return nil }
func (f *fakeRepo) LinkTelegramChat(context.Context, string, int64) (string, error) {
	return "", models.ErrNotFound
}
func (f *fakeRepo) GetUserIDByTelegramChat(context.Context, int64) (string, error) {
	return "", models.ErrNotFound
}
func (f *fakeRepo) GetProfilesWithTelegram(context.Context) ([]*models.Profile, error) {
	return nil, nil
}

func (f *fakeRepo) ListHabits(context.Context, string) ([]models.Habit, error) {
	if f.beforeList != nil {
		f.beforeList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.habits), nil
}

func (f *fakeRepo) CreateHabit(_ context.Context, _ string, habit *models.Habit) (*models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return nil, err
	}
	created := *habit
	created.ID = f.id("habit")
	f.habits = append(f.habits, created)
	return &created, nil
}

func (f *fakeRepo) UpdateHabit(context.Context, string, *models.Habit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) SetHabitCompletion(_ context.Context, _ string, habitID string, completedOn *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	for i := range f.habits {
		if f.habits[i].ID == habitID {
			f.habits[i].CompletedOn = completedOn
		}
	}
	return nil
}

func (f *fakeRepo) DeleteHabit(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) ResetHabitCompletion(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetBefore = before
	var n int64
	for i := range f.habits {
		if c := f.habits[i].CompletedOn; c != nil && c.Before(before) {
			f.habits[i].CompletedOn = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListProjects(context.Context, string) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.projects), nil
}

func (f *fakeRepo) CreateProject(_ context.Context, _ string, project *models.Project) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return nil, err
	}
	created := *project
	created.ID = f.id("project")
	f.projects = append(f.projects, created)
	return &created, nil
}

func (f *fakeRepo) UpdateProject(context.Context, string, *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) DeleteProject(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) ListWorkTasks(context.Context, string) ([]models.WorkTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.workTasks), nil
}

func (f *fakeRepo) CreateWorkTask(_ context.Context, _ string, task *models.WorkTask) (*models.WorkTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return nil, err
	}
	created := *task
	created.ID = f.id("work")
	f.workTasks = append(f.workTasks, created)
	return &created, nil
}

func (f *fakeRepo) UpdateWorkTaskStatus(context.Context, string, string, models.WorkTaskStatus, *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) UpdateWorkTaskMicroSteps(context.Context, string, string, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) DeleteWorkTask(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write()
}

func (f *fakeRepo) ListDailyStats(context.Context, string, time.Time) ([]models.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.stats), nil
}

func (f *fakeRepo) AddDailyStat(_ context.Context, _ string, delta models.DailyStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	f.stats = append(f.stats, delta)
	return nil
}
