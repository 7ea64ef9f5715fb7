package state

import (
	"slices"

	"github.com/romanzh1/mindful-garden/internal/models"
)

// Snapshot is the in-memory view of one signed-in user.
// Patches replace slice elements wholesale; they never write through element pointers.
type Snapshot struct {
	Profile      *models.Profile          `json:"profile"`
	Habits       []models.Habit           `json:"habits"`
	Projects     []models.Project         `json:"projects"`
	WorkTasks    []models.WorkTask        `json:"workTasks"`
	Gamification models.GamificationState `json:"gamification"`
	Screen       models.Screen            `json:"screen"`
	CoachContext string                   `json:"coachContext,omitempty"`
}

func Empty() Snapshot {
	return Snapshot{
		Habits:       []models.Habit{},
		Projects:     []models.Project{},
		WorkTasks:    []models.WorkTask{},
		Gamification: models.GamificationState{Level: 1, UnlockedElements: []string{"basic_flower"}, History: []models.DailyStat{}},
		Screen:       models.ScreenAuth,
	}
}

func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Profile != nil {
		p := *s.Profile
		p.Difficulties = slices.Clone(s.Profile.Difficulties)
		out.Profile = &p
	}
	out.Habits = slices.Clone(s.Habits)
	out.Projects = slices.Clone(s.Projects)
	out.WorkTasks = slices.Clone(s.WorkTasks)
	out.Gamification.UnlockedElements = slices.Clone(s.Gamification.UnlockedElements)
	out.Gamification.History = slices.Clone(s.Gamification.History)
	return out
}

func (s Snapshot) HabitIndex(id string) int {
	return slices.IndexFunc(s.Habits, func(h models.Habit) bool { return h.ID == id })
}

func (s Snapshot) ProjectIndex(id string) int {
	return slices.IndexFunc(s.Projects, func(p models.Project) bool { return p.ID == id })
}

func (s Snapshot) WorkTaskIndex(id string) int {
	return slices.IndexFunc(s.WorkTasks, func(w models.WorkTask) bool { return w.ID == id })
}

// insertAt clamps idx so a restore after concurrent removals still lands inside the slice.
func insertAt[T any](items []T, idx int, item T) []T {
	if idx < 0 {
		idx = 0
	}
	if idx > len(items) {
		idx = len(items)
	}
	return slices.Insert(items, idx, item)
}

func (s *Snapshot) InsertHabit(idx int, h models.Habit) {
	s.Habits = insertAt(s.Habits, idx, h)
}

func (s *Snapshot) InsertProject(idx int, p models.Project) {
	s.Projects = insertAt(s.Projects, idx, p)
}

func (s *Snapshot) InsertWorkTask(idx int, w models.WorkTask) {
	s.WorkTasks = insertAt(s.WorkTasks, idx, w)
}

func (s *Snapshot) RemoveHabit(id string) {
	s.Habits = slices.DeleteFunc(s.Habits, func(h models.Habit) bool { return h.ID == id })
}

func (s *Snapshot) RemoveProject(id string) {
	s.Projects = slices.DeleteFunc(s.Projects, func(p models.Project) bool { return p.ID == id })
}

func (s *Snapshot) RemoveWorkTask(id string) {
	s.WorkTasks = slices.DeleteFunc(s.WorkTasks, func(w models.WorkTask) bool { return w.ID == id })
}
