package models

import (
	"context"
	"time"
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByGoogleSubject(ctx context.Context, subject string) (*User, error)
	LinkGoogleSubject(ctx context.Context, userID, subject string) error
	BumpSessionVersion(ctx context.Context, userID string) (int, error)
	RunInTx(ctx context.Context, fn func(Repository) error) error

	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
	UpdateEnergyLevel(ctx context.Context, userID string, level int) error
	AddGlowPoints(ctx context.Context, userID string, points int) (int, error)
	SetTelegramLinkCode(ctx context.Context, userID, code string) error
	LinkTelegramChat(ctx context.Context, code string, chatID int64) (string, error)
	GetUserIDByTelegramChat(ctx context.Context, chatID int64) (string, error)
	GetProfilesWithTelegram(ctx context.Context) ([]*Profile, error)

	ListHabits(ctx context.Context, userID string) ([]Habit, error)
	CreateHabit(ctx context.Context, userID string, habit *Habit) (*Habit, error)
	UpdateHabit(ctx context.Context, userID string, habit *Habit) error
	SetHabitCompletion(ctx context.Context, userID, habitID string, completedOn *time.Time) error
	DeleteHabit(ctx context.Context, userID, habitID string) error
	ResetHabitCompletion(ctx context.Context, before time.Time) (int64, error)

	ListProjects(ctx context.Context, userID string) ([]Project, error)
	CreateProject(ctx context.Context, userID string, project *Project) (*Project, error)
	UpdateProject(ctx context.Context, userID string, project *Project) error
	DeleteProject(ctx context.Context, userID, projectID string) error

	ListWorkTasks(ctx context.Context, userID string) ([]WorkTask, error)
	CreateWorkTask(ctx context.Context, userID string, task *WorkTask) (*WorkTask, error)
	UpdateWorkTaskStatus(ctx context.Context, userID, taskID string, status WorkTaskStatus, completedAt *time.Time) error
	UpdateWorkTaskMicroSteps(ctx context.Context, userID, taskID string, steps []string) error
	DeleteWorkTask(ctx context.Context, userID, taskID string) error

	ListDailyStats(ctx context.Context, userID string, since time.Time) ([]DailyStat, error)
	AddDailyStat(ctx context.Context, userID string, delta DailyStat) error
}
