package gamification

import (
	"time"

	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
)

const (
	PointsPerLevel    = 100
	PointsPerPlant    = 50
	MaxPlants         = 12
	FocusPointsPerMin = 2
	HistoryDays       = 30
)

var pointTable = map[events.Kind]int{
	events.KindHabit:         15,
	events.KindHomeTask:      15,
	events.KindWorkTask:      20,
	events.KindProjectAction: 25,
}

type element struct {
	name     string
	minLevel int
}

var gardenElements = []element{
	{"basic_flower", 1},
	{"sprout_bush", 2},
	{"sun_tree", 3},
	{"moon_pond", 5},
	{"crystal_arch", 8},
}

func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// Points returns the award for a completion; focus sessions pay per minute.
func Points(kind events.Kind, minutes int) int {
	if kind == events.KindFocus {
		if minutes < 0 {
			return 0
		}
		return minutes * FocusPointsPerMin
	}
	return pointTable[kind]
}

func PlantsCount(points int) int {
	n := points/PointsPerPlant + 1
	if n > MaxPlants {
		return MaxPlants
	}
	if n < 1 {
		return 1
	}
	return n
}

func UnlockedElements(level int) []string {
	unlocked := make([]string, 0, len(gardenElements))
	for _, e := range gardenElements {
		if level >= e.minLevel {
			unlocked = append(unlocked, e.name)
		}
	}
	return unlocked
}

func NewState(points int, lastAction time.Time, history []models.DailyStat) models.GamificationState {
	level := Level(points)
	if history == nil {
		history = []models.DailyStat{}
	}
	return models.GamificationState{
		GlowPoints:       points,
		Level:            level,
		UnlockedElements: UnlockedElements(level),
		LastActionDate:   lastAction,
		History:          history,
	}
}

// Apply returns a copy of g with delta added to the totals and to the day's history row.
func Apply(g models.GamificationState, delta models.DailyStat, now time.Time) models.GamificationState {
	out := g
	out.GlowPoints = g.GlowPoints + delta.Points
	out.Level = Level(out.GlowPoints)
	out.UnlockedElements = UnlockedElements(out.Level)
	out.LastActionDate = now

	history := make([]models.DailyStat, len(g.History), len(g.History)+1)
	copy(history, g.History)

	found := false
	for i := range history {
		if history[i].Date == delta.Date {
			history[i].Points += delta.Points
			history[i].TasksDone += delta.TasksDone
			history[i].FocusMinutes += delta.FocusMinutes
			if delta.Energy > 0 {
				history[i].Energy = delta.Energy
			}
			found = true
			break
		}
	}
	if !found {
		history = append(history, delta)
	}
	out.History = history

	return out
}

// LastDays pads the history to exactly n days ending at today, oldest first.
func LastDays(history []models.DailyStat, today time.Time, n int) []models.DailyStat {
	byDate := make(map[string]models.DailyStat, len(history))
	for _, day := range history {
		byDate[day.Date] = day
	}

	out := make([]models.DailyStat, 0, n)
	for i := n - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		if day, ok := byDate[date]; ok {
			out = append(out, day)
			continue
		}
		out = append(out, models.DailyStat{Date: date})
	}
	return out
}

// Garden is the derived garden view.
type Garden struct {
	GlowPoints       int      `json:"glowPoints"`
	Level            int      `json:"level"`
	PlantsCount      int      `json:"plantsCount"`
	UnlockedElements []string `json:"unlockedElements"`
}

func GardenOf(g models.GamificationState) Garden {
	return Garden{
		GlowPoints:       g.GlowPoints,
		Level:            g.Level,
		PlantsCount:      PlantsCount(g.GlowPoints),
		UnlockedElements: UnlockedElements(g.Level),
	}
}
