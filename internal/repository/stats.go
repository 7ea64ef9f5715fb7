package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/mindful-garden/internal/models"
)

type dailyStatRow struct {
	Date         string `db:"date"`
	Points       int    `db:"points"`
	TasksDone    int    `db:"tasks_done"`
	Energy       int    `db:"energy"`
	FocusMinutes int    `db:"focus_minutes"`
}

func (r Postgres) ListDailyStats(ctx context.Context, userID string, since time.Time) ([]models.DailyStat, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD') AS date, points, tasks_done, energy, focus_minutes
		FROM daily_stats
		WHERE user_id = $1 AND date >= $2
		ORDER BY date ASC
	`

	var rows []dailyStatRow
	if err := r.SelectContext(ctx, &rows, query, userID, since.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("query daily stats (user_id: %s, since: %s): %w", userID, since.Format("2006-01-02"), err)
	}

	stats := make([]models.DailyStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, models.DailyStat(row))
	}
	return stats, nil
}

// AddDailyStat adds points, tasks and focus minutes to the day's row.
// A non-zero energy replaces the stored value.
func (r Postgres) AddDailyStat(ctx context.Context, userID string, delta models.DailyStat) error {
	query := r.psql.Insert("daily_stats").
		Columns("user_id", "date", "points", "tasks_done", "energy", "focus_minutes").
		Values(userID, delta.Date, delta.Points, delta.TasksDone, delta.Energy, delta.FocusMinutes).
		Suffix(`ON CONFLICT (user_id, date) DO UPDATE SET
			points = daily_stats.points + EXCLUDED.points,
			tasks_done = daily_stats.tasks_done + EXCLUDED.tasks_done,
			energy = CASE WHEN EXCLUDED.energy > 0 THEN EXCLUDED.energy ELSE daily_stats.energy END,
			focus_minutes = daily_stats.focus_minutes + EXCLUDED.focus_minutes`)

	if _, err := r.exec(ctx, query); err != nil {
		return fmt.Errorf("add daily stat (user_id: %s, date: %s): %w", userID, delta.Date, err)
	}
	return nil
}
