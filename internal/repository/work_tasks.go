package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/romanzh1/mindful-garden/internal/models"
)

const workTaskColumns = `id, title, description, energy_required, status, deadline, micro_steps, completed_at`

type workTaskRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	EnergyRequired int            `db:"energy_required"`
	Status         string         `db:"status"`
	Deadline       *time.Time     `db:"deadline"`
	MicroSteps     pq.StringArray `db:"micro_steps"`
	CompletedAt    *time.Time     `db:"completed_at"`
}

// textArray binds a nil slice as an empty array; TEXT[] columns are NOT NULL.
func textArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func (w workTaskRow) toModel() models.WorkTask {
	var steps []string
	if len(w.MicroSteps) > 0 {
		steps = []string(w.MicroSteps)
	}
	return models.WorkTask{
		ID:             w.ID,
		Title:          w.Title,
		Description:    w.Description,
		EnergyRequired: w.EnergyRequired,
		Status:         models.WorkTaskStatus(w.Status),
		Deadline:       w.Deadline,
		MicroSteps:     steps,
		CompletedAt:    w.CompletedAt,
	}
}

func (r Postgres) ListWorkTasks(ctx context.Context, userID string) ([]models.WorkTask, error) {
	query := `SELECT ` + workTaskColumns + ` FROM work_tasks WHERE user_id = $1 ORDER BY created_at ASC`

	var rows []workTaskRow
	if err := r.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("query work tasks (user_id: %s): %w", userID, err)
	}

	tasks := make([]models.WorkTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toModel())
	}
	return tasks, nil
}

func (r Postgres) CreateWorkTask(ctx context.Context, userID string, task *models.WorkTask) (*models.WorkTask, error) {
	status := task.Status
	if status == "" {
		status = models.WorkTaskPending
	}

	query := r.psql.Insert("work_tasks").
		Columns("user_id", "title", "description", "energy_required", "status", "deadline", "micro_steps").
		Values(userID, task.Title, task.Description, task.EnergyRequired, string(status), task.Deadline, textArray(task.MicroSteps)).
		Suffix("RETURNING " + workTaskColumns)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	var row workTaskRow
	if err = r.GetContext(ctx, &row, sql, args...); err != nil {
		return nil, fmt.Errorf("create work task (user_id: %s, title: %s): %w", userID, task.Title, err)
	}

	created := row.toModel()
	return &created, nil
}

func (r Postgres) UpdateWorkTaskStatus(ctx context.Context, userID, taskID string, status models.WorkTaskStatus, completedAt *time.Time) error {
	query := r.psql.Update("work_tasks").
		Set("status", string(status)).
		Set("completed_at", completedAt).
		Where("id = ? AND user_id = ?", taskID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("update work task status (user_id: %s, task_id: %s, status: %s): %w", userID, taskID, status, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("update work task status (user_id: %s, task_id: %s, status: %s): %w", userID, taskID, status, err)
	}
	return nil
}

func (r Postgres) UpdateWorkTaskMicroSteps(ctx context.Context, userID, taskID string, steps []string) error {
	query := r.psql.Update("work_tasks").
		Set("micro_steps", textArray(steps)).
		Where("id = ? AND user_id = ?", taskID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("update work task micro steps (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("update work task micro steps (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	return nil
}

func (r Postgres) DeleteWorkTask(ctx context.Context, userID, taskID string) error {
	query := r.psql.Delete("work_tasks").
		Where("id = ? AND user_id = ?", taskID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("delete work task (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("delete work task (user_id: %s, task_id: %s): %w", userID, taskID, err)
	}
	return nil
}
