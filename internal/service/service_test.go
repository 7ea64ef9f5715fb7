package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
)

const testUser = "u1"

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	s := NewService(repo, coach.New(nil), events.NewBus(), "UTC")
	s.now = func() time.Time { return testNow }
	return s
}

func onboardedRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.profiles[testUser] = &models.Profile{
		ID:                  testUser,
		FullName:            "Ana",
		EnergyLevel:         5,
		OnboardingCompleted: true,
		Timezone:            "UTC",
	}
	return repo
}

func TestReloadOnboardedGoesHome(t *testing.T) {
	s := newTestService(t, onboardedRepo())

	snap, err := s.Reload(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if snap.Screen != models.ScreenHome {
		t.Fatalf("screen=%s, want home", snap.Screen)
	}
	if snap.Profile == nil || snap.Profile.FullName != "Ana" {
		t.Fatalf("profile=%+v, want Ana", snap.Profile)
	}
}

func TestReloadWithoutProfileGoesToOnboarding(t *testing.T) {
	s := newTestService(t, newFakeRepo())

	snap, err := s.Reload(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if snap.Screen != models.ScreenOnboarding {
		t.Fatalf("screen=%s, want onboarding", snap.Screen)
	}
}

func TestReloadIncompleteProfileInsideAppKeepsScreen(t *testing.T) {
	repo := onboardedRepo()
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Navigate(ctx, testUser, models.ScreenHabits); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	repo.profiles[testUser].OnboardingCompleted = false
	snap, err := s.Reload(ctx, testUser)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if snap.Screen != models.ScreenHabits {
		t.Fatalf("screen=%s, want habits", snap.Screen)
	}
}

func TestReloadFailureKeepsState(t *testing.T) {
	repo := onboardedRepo()
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	repo.profileErr = errRemote
	snap, err := s.Reload(ctx, testUser)
	if err == nil {
		t.Fatal("expected reload error")
	}
	if snap.Profile == nil || snap.Screen != models.ScreenHome {
		t.Fatalf("snapshot replaced after failed reload: %+v", snap)
	}
}

func TestStaleReloadIsDiscarded(t *testing.T) {
	repo := onboardedRepo()
	repo.profiles[testUser].FullName = "Old"
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// The outer reload has read "Old"; a newer reload reads "New" and finishes first.
	repo.beforeList = func() {
		repo.beforeList = nil
		repo.mu.Lock()
		repo.profiles[testUser].FullName = "New"
		repo.mu.Unlock()
		if _, err := s.Reload(ctx, testUser); err != nil {
			t.Errorf("inner Reload: %v", err)
		}
	}

	snap, err := s.Reload(ctx, testUser)
	if err != nil {
		t.Fatalf("outer Reload: %v", err)
	}
	if snap.Profile.FullName != "New" {
		t.Fatalf("name=%s, want New from the newest reload", snap.Profile.FullName)
	}
}

func TestAddHabitRollsBackOnFailure(t *testing.T) {
	repo := onboardedRepo()
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	repo.fail = true
	if _, err := s.AddHabit(ctx, testUser, HabitInput{Name: "Ler"}); !errors.Is(err, errRemote) {
		t.Fatalf("err=%v, want remote error", err)
	}

	snap, _ := s.SnapshotOf(testUser)
	if len(snap.Habits) != 1 || snap.Habits[0].ID != "h1" {
		t.Fatalf("habits=%+v, want only h1", snap.Habits)
	}
}

func TestAddHabitReplacesTemporaryID(t *testing.T) {
	s := newTestService(t, onboardedRepo())
	ctx := context.Background()

	created, err := s.AddHabit(ctx, testUser, HabitInput{Name: " Ler ", MicroAction: "Uma página"})
	if err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	if created.Icon != defaultHabitIcon || created.Name != "Ler" {
		t.Fatalf("created=%+v", created)
	}

	snap, _ := s.SnapshotOf(testUser)
	if len(snap.Habits) != 1 || snap.Habits[0].ID != created.ID {
		t.Fatalf("habits=%+v, want the stored row %s", snap.Habits, created.ID)
	}
}

func TestAddHabitValidation(t *testing.T) {
	s := newTestService(t, onboardedRepo())

	_, err := s.AddHabit(context.Background(), testUser, HabitInput{})
	if !IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}

	_, err = s.AddHabit(context.Background(), testUser, HabitInput{
		Name:     "Água",
		Reminder: &models.Reminder{Type: models.ReminderFixedWindow, WindowStart: "10:00", WindowEnd: "09:00"},
	})
	if !IsValidation(err) {
		t.Fatalf("err=%v, want validation error for empty window", err)
	}
}

func TestToggleHabitTwiceKeepsPoints(t *testing.T) {
	repo := onboardedRepo()
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	first, err := s.ToggleHabit(ctx, testUser, "h1")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !first.CompletedToday {
		t.Fatal("first toggle should complete the habit")
	}

	second, err := s.ToggleHabit(ctx, testUser, "h1")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.CompletedToday {
		t.Fatal("second toggle should clear the flag")
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Habits[0].CompletedToday {
		t.Fatal("habit still marked completed")
	}
	if snap.Gamification.GlowPoints != 15 {
		t.Fatalf("points=%d, want 15", snap.Gamification.GlowPoints)
	}
	if repo.points[testUser] != 15 {
		t.Fatalf("remote points=%d, want 15", repo.points[testUser])
	}
}

func TestToggleHabitFailureRestoresFlag(t *testing.T) {
	repo := onboardedRepo()
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	repo.fail = true

	if _, err := s.ToggleHabit(ctx, testUser, "h1"); err == nil {
		t.Fatal("expected toggle error")
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Habits[0].CompletedToday {
		t.Fatal("flag not restored after failure")
	}
	if snap.Gamification.GlowPoints != 0 {
		t.Fatalf("points=%d, want 0 after failed toggle", snap.Gamification.GlowPoints)
	}
}

func TestReloadClearsYesterdayCompletion(t *testing.T) {
	repo := onboardedRepo()
	yesterday := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	repo.habits = []models.Habit{
		{ID: "h1", CompletedOn: &yesterday},
		{ID: "h2", CompletedOn: &today},
	}
	s := newTestService(t, repo)

	snap, err := s.Reload(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if snap.Habits[0].CompletedToday || !snap.Habits[1].CompletedToday {
		t.Fatalf("flags=%v,%v, want false,true", snap.Habits[0].CompletedToday, snap.Habits[1].CompletedToday)
	}
}

func TestFailedFirstLoadIsRetried(t *testing.T) {
	repo := onboardedRepo()
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	repo.profileErr = errRemote
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Snapshot(ctx, testUser); !errors.Is(err, errRemote) {
		t.Fatalf("err=%v, want errRemote", err)
	}

	repo.mu.Lock()
	repo.profileErr = nil
	repo.mu.Unlock()

	snap, err := s.Snapshot(ctx, testUser)
	if err != nil {
		t.Fatalf("Snapshot after recovery: %v", err)
	}
	if snap.Profile == nil || len(snap.Habits) != 1 || snap.Screen != models.ScreenHome {
		t.Fatalf("snapshot=%+v, want loaded profile, one habit, home", snap)
	}

	if _, err = s.ToggleHabit(ctx, testUser, "h1"); err != nil {
		t.Fatalf("ToggleHabit: %v", err)
	}
}

func TestToggleNextDayCompletesAgain(t *testing.T) {
	repo := onboardedRepo()
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.ToggleHabit(ctx, testUser, "h1"); err != nil {
		t.Fatalf("day one toggle: %v", err)
	}

	nextDay := testNow.Add(24 * time.Hour)
	s.now = func() time.Time { return nextDay }

	habits, err := s.Habits(ctx, testUser)
	if err != nil {
		t.Fatalf("Habits: %v", err)
	}
	if habits[0].CompletedToday {
		t.Fatal("yesterday's completion still shown as today")
	}

	habit, err := s.ToggleHabit(ctx, testUser, "h1")
	if err != nil {
		t.Fatalf("day two toggle: %v", err)
	}
	if !habit.CompletedToday {
		t.Fatal("day two toggle should complete the habit")
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Gamification.GlowPoints != 30 {
		t.Fatalf("points=%d, want 30", snap.Gamification.GlowPoints)
	}
	repo.mu.Lock()
	stored := repo.habits[0].CompletedOn
	repo.mu.Unlock()
	if stored == nil || stored.Format("2006-01-02") != "2026-10-20" {
		t.Fatalf("stored completion=%v, want 2026-10-20", stored)
	}
}

func TestCompleteWorkTaskAwardsPoints(t *testing.T) {
	repo := onboardedRepo()
	repo.points[testUser] = 85
	repo.workTasks = []models.WorkTask{{ID: "w1", Title: "Relatório", EnergyRequired: 2, Status: models.WorkTaskPending}}
	s := newTestService(t, repo)
	ctx := context.Background()

	done, err := s.CompleteWorkTask(ctx, testUser, "w1")
	if err != nil {
		t.Fatalf("CompleteWorkTask: %v", err)
	}
	if done.Status != models.WorkTaskDone || done.CompletedAt == nil {
		t.Fatalf("task=%+v, want done with completion time", done)
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Gamification.GlowPoints != 105 || snap.Gamification.Level != 2 {
		t.Fatalf("points=%d level=%d, want 105 and 2", snap.Gamification.GlowPoints, snap.Gamification.Level)
	}
	if snap.Profile.Level != 2 {
		t.Fatalf("profile level=%d, want 2", snap.Profile.Level)
	}
	if snap.CoachContext != coachContextWorkDone {
		t.Fatalf("coach context=%q", snap.CoachContext)
	}

	if _, err = s.CompleteWorkTask(ctx, testUser, "w1"); !errors.Is(err, models.ErrAlreadyDone) {
		t.Fatalf("err=%v, want ErrAlreadyDone", err)
	}
}

func TestCompleteWorkTaskFailureAwardsNothing(t *testing.T) {
	repo := onboardedRepo()
	repo.points[testUser] = 85
	repo.workTasks = []models.WorkTask{{ID: "w1", Title: "Relatório", Status: models.WorkTaskPending}}
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	repo.fail = true

	if _, err := s.CompleteWorkTask(ctx, testUser, "w1"); err == nil {
		t.Fatal("expected error")
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.WorkTasks[0].Status != models.WorkTaskPending {
		t.Fatalf("status=%s, want pending", snap.WorkTasks[0].Status)
	}
	if snap.Gamification.GlowPoints != 85 {
		t.Fatalf("points=%d, want 85", snap.Gamification.GlowPoints)
	}
}

func TestCompleteTaskAwardsHomePoints(t *testing.T) {
	repo := onboardedRepo()
	repo.workTasks = []models.WorkTask{{ID: "w1", Title: "Email", Status: models.WorkTaskPending}}
	s := newTestService(t, repo)

	if _, err := s.CompleteTask(context.Background(), testUser, "w1"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Gamification.GlowPoints != 15 {
		t.Fatalf("points=%d, want 15", snap.Gamification.GlowPoints)
	}
}

func TestDeleteProjectRestoresAtIndex(t *testing.T) {
	repo := onboardedRepo()
	repo.projects = []models.Project{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	repo.fail = true

	if err := s.DeleteProject(ctx, testUser, "p2"); err == nil {
		t.Fatal("expected error")
	}

	snap, _ := s.SnapshotOf(testUser)
	if len(snap.Projects) != 3 || snap.Projects[1].ID != "p2" {
		t.Fatalf("projects=%+v, want p2 back at index 1", snap.Projects)
	}
}

func TestCompleteProjectActionWithoutNextCompletesProject(t *testing.T) {
	repo := onboardedRepo()
	repo.projects = []models.Project{{ID: "p1", Name: "Violão", NextAction: "Afinar", Status: models.ProjectActive}}
	s := newTestService(t, repo)
	ctx := context.Background()

	p, err := s.CompleteProjectAction(ctx, testUser, "p1", "")
	if err != nil {
		t.Fatalf("CompleteProjectAction: %v", err)
	}
	if p.Status != models.ProjectCompleted {
		t.Fatalf("status=%s, want completed", p.Status)
	}

	snap, _ := s.SnapshotOf(testUser)
	if snap.Gamification.GlowPoints != 25 {
		t.Fatalf("points=%d, want 25", snap.Gamification.GlowPoints)
	}
}

func TestAddWorkTaskSetsCoachContextOnce(t *testing.T) {
	s := newTestService(t, onboardedRepo())
	ctx := context.Background()

	if _, err := s.AddWorkTask(ctx, testUser, WorkTaskInput{Title: "Planilha", EnergyRequired: 1}); err != nil {
		t.Fatalf("AddWorkTask: %v", err)
	}

	if got := s.TakeCoachContext(testUser); got != coachContextWorkAdded {
		t.Fatalf("context=%q, want %q", got, coachContextWorkAdded)
	}
	if got := s.TakeCoachContext(testUser); got != "" {
		t.Fatalf("context=%q, want empty after take", got)
	}
}

func TestCompleteOnboardingKeepsOptimisticStateOnFailure(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo)
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	repo.fail = true

	snap, err := s.CompleteOnboarding(ctx, testUser, OnboardingInput{EnergyLevel: 4, Difficulties: []string{"foco"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if snap.Screen != models.ScreenHome {
		t.Fatalf("screen=%s, want home", snap.Screen)
	}
	if snap.Profile == nil || snap.Profile.ID != pendingProfileID || snap.Profile.FullName != defaultDisplayName {
		t.Fatalf("profile=%+v, want placeholder", snap.Profile)
	}
}

func TestCompleteOnboardingReloads(t *testing.T) {
	s := newTestService(t, newFakeRepo())

	snap, err := s.CompleteOnboarding(context.Background(), testUser, OnboardingInput{FullName: "Ana", EnergyLevel: 6})
	if err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	if snap.Profile == nil || snap.Profile.ID != testUser || !snap.Profile.OnboardingCompleted {
		t.Fatalf("profile=%+v, want stored profile", snap.Profile)
	}
	if snap.Screen != models.ScreenHome {
		t.Fatalf("screen=%s, want home", snap.Screen)
	}
}

func TestCompleteFocusSession(t *testing.T) {
	repo := onboardedRepo()
	s := newTestService(t, repo)

	g, err := s.CompleteFocusSession(context.Background(), testUser, 10)
	if err != nil {
		t.Fatalf("CompleteFocusSession: %v", err)
	}
	if g.GlowPoints != 20 {
		t.Fatalf("points=%d, want 20", g.GlowPoints)
	}
	if len(g.History) != 1 || g.History[0].FocusMinutes != 10 || g.History[0].Date != "2026-10-19" {
		t.Fatalf("history=%+v, want 10 focus minutes today", g.History)
	}

	if _, err = s.CompleteFocusSession(context.Background(), testUser, 0); !IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}
}

func TestSessionEndedDropsState(t *testing.T) {
	s := newTestService(t, onboardedRepo())
	ctx := context.Background()

	if _, err := s.Reload(ctx, testUser); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	s.Bus().Publish(ctx, events.SessionEnded{UserID: testUser})

	if _, err := s.SnapshotOf(testUser); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
}

func TestDeriveTasksBuckets(t *testing.T) {
	tasks := DeriveTasks([]models.WorkTask{
		{ID: "a", EnergyRequired: 3, Description: "desc", MicroSteps: []string{"abrir"}},
		{ID: "b", EnergyRequired: 2, Description: "desc"},
		{ID: "c", EnergyRequired: 1, Status: models.WorkTaskDone},
	})

	if tasks[0].Block != models.BlockMorning || tasks[0].NextStep != "abrir" {
		t.Fatalf("task a=%+v", tasks[0])
	}
	if tasks[1].Block != models.BlockAfternoon || tasks[1].NextStep != "desc" {
		t.Fatalf("task b=%+v", tasks[1])
	}
	if tasks[2].Block != models.BlockEvening || tasks[2].Status != "done" {
		t.Fatalf("task c=%+v", tasks[2])
	}
}

func TestEvolutionPadsSevenDays(t *testing.T) {
	repo := onboardedRepo()
	repo.stats = []models.DailyStat{{Date: "2026-10-18", Points: 30}}
	s := newTestService(t, repo)

	days, err := s.Evolution(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Evolution: %v", err)
	}
	if len(days) != 7 || days[6].Date != "2026-10-19" || days[5].Points != 30 {
		t.Fatalf("days=%+v", days)
	}
}

func TestResetHabitsSkipsFailingSession(t *testing.T) {
	repo := onboardedRepo()
	repo.profiles["u2"] = &models.Profile{ID: "u2", FullName: "Bia", OnboardingCompleted: true, Timezone: "UTC"}
	repo.habits = []models.Habit{{ID: "h1", Name: "Água"}}
	s := newTestService(t, repo)
	ctx := context.Background()

	for _, id := range []string{testUser, "u2"} {
		if _, err := s.Snapshot(ctx, id); err != nil {
			t.Fatalf("Snapshot(%s): %v", id, err)
		}
	}

	repo.mu.Lock()
	repo.brokenUsers = map[string]bool{"u2": true}
	repo.habits = append(repo.habits, models.Habit{ID: "h2", Name: "Alongar"})
	repo.mu.Unlock()

	before := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	if _, err := s.ResetHabits(ctx, before); err != nil {
		t.Fatalf("ResetHabits: %v", err)
	}
	if !repo.resetBefore.Equal(before) {
		t.Fatalf("reset before=%v, want %v", repo.resetBefore, before)
	}

	snap, err := s.SnapshotOf(testUser)
	if err != nil {
		t.Fatalf("SnapshotOf: %v", err)
	}
	if len(snap.Habits) != 2 {
		t.Fatalf("habits=%d, want 2 after reload", len(snap.Habits))
	}
	if broken, _ := s.SnapshotOf("u2"); len(broken.Habits) != 1 {
		t.Fatalf("failed reload changed u2 habits to %d", len(broken.Habits))
	}
}

func TestResetCutoffIsYesterdayInUTC(t *testing.T) {
	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got := resetCutoff(time.Date(2026, 10, 20, 0, 1, 0, 0, location))
	want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("cutoff=%v, want %v", got, want)
	}
}
