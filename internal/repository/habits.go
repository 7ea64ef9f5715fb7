package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/mindful-garden/internal/models"
)

const habitColumns = `id, name, micro_action, icon, project_id, completed_on,
	reminder_type, reminder_window_start, reminder_window_end, reminder_frequency`

type reminderColumns struct {
	Type        *string `db:"reminder_type"`
	WindowStart *string `db:"reminder_window_start"`
	WindowEnd   *string `db:"reminder_window_end"`
	Frequency   *int    `db:"reminder_frequency"`
}

func (c reminderColumns) toModel() *models.Reminder {
	if c.Type == nil || models.ReminderType(*c.Type) == models.ReminderNone {
		return nil
	}
	reminder := &models.Reminder{Type: models.ReminderType(*c.Type)}
	if c.WindowStart != nil {
		reminder.WindowStart = *c.WindowStart
	}
	if c.WindowEnd != nil {
		reminder.WindowEnd = *c.WindowEnd
	}
	if c.Frequency != nil {
		reminder.Frequency = *c.Frequency
	}
	return reminder
}

// reminderValues flattens a reminder into its four nullable columns.
func reminderValues(reminder *models.Reminder) (string, *string, *string, *int) {
	if reminder == nil || reminder.Type == "" {
		return string(models.ReminderNone), nil, nil, nil
	}
	var start, end *string
	var frequency *int
	if reminder.WindowStart != "" {
		start = &reminder.WindowStart
	}
	if reminder.WindowEnd != "" {
		end = &reminder.WindowEnd
	}
	if reminder.Frequency > 0 {
		frequency = &reminder.Frequency
	}
	return string(reminder.Type), start, end, frequency
}

type habitRow struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	MicroAction string     `db:"micro_action"`
	Icon        string     `db:"icon"`
	ProjectID   *string    `db:"project_id"`
	CompletedOn *time.Time `db:"completed_on"`
	reminderColumns
}

func (h habitRow) toModel() models.Habit {
	return models.Habit{
		ID:             h.ID,
		Name:           h.Name,
		MicroAction:    h.MicroAction,
		CompletedToday: h.CompletedOn != nil,
		CompletedOn:    h.CompletedOn,
		Icon:           h.Icon,
		ProjectID:      h.ProjectID,
		Reminder:       h.reminderColumns.toModel(),
	}
}

// ListHabits returns raw rows: CompletedToday only says a completion date is stored.
// Callers compare CompletedOn with the user's current day.
func (r Postgres) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 ORDER BY created_at ASC`

	var rows []habitRow
	if err := r.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("query habits (user_id: %s): %w", userID, err)
	}

	habits := make([]models.Habit, 0, len(rows))
	for _, row := range rows {
		habits = append(habits, row.toModel())
	}
	return habits, nil
}

func (r Postgres) CreateHabit(ctx context.Context, userID string, habit *models.Habit) (*models.Habit, error) {
	reminderType, start, end, frequency := reminderValues(habit.Reminder)

	query := r.psql.Insert("habits").
		Columns("user_id", "name", "micro_action", "icon", "project_id",
			"reminder_type", "reminder_window_start", "reminder_window_end", "reminder_frequency").
		Values(userID, habit.Name, habit.MicroAction, habit.Icon, habit.ProjectID,
			reminderType, start, end, frequency).
		Suffix("RETURNING " + habitColumns)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	var row habitRow
	if err = r.GetContext(ctx, &row, sql, args...); err != nil {
		return nil, fmt.Errorf("create habit (user_id: %s, name: %s): %w", userID, habit.Name, err)
	}

	created := row.toModel()
	return &created, nil
}

func (r Postgres) UpdateHabit(ctx context.Context, userID string, habit *models.Habit) error {
	reminderType, start, end, frequency := reminderValues(habit.Reminder)

	query := r.psql.Update("habits").
		Set("name", habit.Name).
		Set("micro_action", habit.MicroAction).
		Set("icon", habit.Icon).
		Set("project_id", habit.ProjectID).
		Set("reminder_type", reminderType).
		Set("reminder_window_start", start).
		Set("reminder_window_end", end).
		Set("reminder_frequency", frequency).
		Where("id = ? AND user_id = ?", habit.ID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("update habit (user_id: %s, habit_id: %s): %w", userID, habit.ID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("update habit (user_id: %s, habit_id: %s): %w", userID, habit.ID, err)
	}
	return nil
}

// SetHabitCompletion stores the completion date; nil clears it.
func (r Postgres) SetHabitCompletion(ctx context.Context, userID, habitID string, completedOn *time.Time) error {
	var value any
	if completedOn != nil {
		value = completedOn.Format("2006-01-02")
	}

	query := r.psql.Update("habits").
		Set("completed_on", value).
		Where("id = ? AND user_id = ?", habitID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("set habit completion (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("set habit completion (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}
	return nil
}

func (r Postgres) DeleteHabit(ctx context.Context, userID, habitID string) error {
	query := r.psql.Delete("habits").
		Where("id = ? AND user_id = ?", habitID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("delete habit (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("delete habit (user_id: %s, habit_id: %s): %w", userID, habitID, err)
	}
	return nil
}

// ResetHabitCompletion clears completion dates older than before.
func (r Postgres) ResetHabitCompletion(ctx context.Context, before time.Time) (int64, error) {
	query := r.psql.Update("habits").
		Set("completed_on", nil).
		Where("completed_on < ?", before.Format("2006-01-02"))

	res, err := r.exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reset habit completion (before: %s): %w", before.Format(time.RFC3339), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset habit completion rows affected: %w", err)
	}
	return n, nil
}
