package models

import "time"

type Screen string

const (
	ScreenAuth       Screen = "auth"
	ScreenOnboarding Screen = "onboarding"
	ScreenHome       Screen = "home"
	ScreenHabits     Screen = "habits"
	ScreenProjects   Screen = "projects"
	ScreenFocus      Screen = "focus"
	ScreenGarden     Screen = "garden"
	ScreenEvolution  Screen = "evolution"
	ScreenWork       Screen = "work"
)

func (s Screen) IsValid() bool {
	switch s {
	case ScreenAuth, ScreenOnboarding, ScreenHome, ScreenHabits, ScreenProjects,
		ScreenFocus, ScreenGarden, ScreenEvolution, ScreenWork:
		return true
	default:
		return false
	}
}

// IsEntry reports whether the screen is shown before the user is inside the app.
func (s Screen) IsEntry() bool {
	return s == ScreenAuth || s == ScreenOnboarding
}

type User struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	PasswordHash   *string   `db:"password_hash"`
	GoogleSubject  *string   `db:"google_subject"`
	SessionVersion int       `db:"session_version"`
	CreatedAt      time.Time `db:"created_at"`
}

type Profile struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"fullName"`
	EnergyLevel         int        `json:"energyLevel"`
	Difficulties        []string   `json:"difficulties"`
	OnboardingCompleted bool       `json:"onboardingCompleted"`
	GlowPoints          int        `json:"glowPoints"`
	Level               int        `json:"level"`
	LastActionAt        *time.Time `json:"lastActionAt,omitempty"`
	Timezone            string     `json:"timezone"`
	TelegramChatID      *int64     `json:"-"`
}

type ReminderType string

const (
	ReminderNone        ReminderType = "none"
	ReminderFixedWindow ReminderType = "fixed_window"
	ReminderRandom      ReminderType = "random"
)

type Reminder struct {
	Type        ReminderType `json:"type" validate:"omitempty,oneof=none fixed_window random"`
	WindowStart string       `json:"windowStart,omitempty"`
	WindowEnd   string       `json:"windowEnd,omitempty"`
	Frequency   int          `json:"frequency,omitempty" validate:"gte=0,lte=24"`
}

type Habit struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	MicroAction    string     `json:"microAction"`
	CompletedToday bool       `json:"completedToday"`
	CompletedOn    *time.Time `json:"-"`
	Icon           string     `json:"icon"`
	ProjectID      *string    `json:"projectId,omitempty"`
	Reminder       *Reminder  `json:"reminder,omitempty"`
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	NextAction string        `json:"nextAction"`
	Status     ProjectStatus `json:"status"`
	Reminder   *Reminder     `json:"reminder,omitempty"`
}

type WorkTaskStatus string

const (
	WorkTaskPending WorkTaskStatus = "pending"
	WorkTaskDoing   WorkTaskStatus = "doing"
	WorkTaskDone    WorkTaskStatus = "done"
)

type WorkTask struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	EnergyRequired int            `json:"energyRequired"`
	Status         WorkTaskStatus `json:"status"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	MicroSteps     []string       `json:"microSteps,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

type TimeBlock string

const (
	BlockMorning   TimeBlock = "morning"
	BlockAfternoon TimeBlock = "afternoon"
	BlockEvening   TimeBlock = "evening"
)

// Task is the home-screen view of a WorkTask. It is never stored.
type Task struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	NextStep string    `json:"nextStep"`
	Block    TimeBlock `json:"block"`
	Status   string    `json:"status"`
}

type DailyStat struct {
	Date         string `json:"date"`
	Points       int    `json:"points"`
	TasksDone    int    `json:"tasksDone"`
	Energy       int    `json:"energy"`
	FocusMinutes int    `json:"focusMinutes"`
}

type GamificationState struct {
	GlowPoints       int         `json:"glowPoints"`
	Level            int         `json:"level"`
	UnlockedElements []string    `json:"unlockedElements"`
	LastActionDate   time.Time   `json:"lastActionDate"`
	History          []DailyStat `json:"history"`
}
