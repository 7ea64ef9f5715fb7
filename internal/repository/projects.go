package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/mindful-garden/internal/models"
)

const projectColumns = `id, name, next_action, status, reminder_type, reminder_window_start, reminder_window_end, reminder_frequency`

type projectRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	NextAction string `db:"next_action"`
	Status     string `db:"status"`
	reminderColumns
}

func (p projectRow) toModel() models.Project {
	return models.Project{
		ID:         p.ID,
		Name:       p.Name,
		NextAction: p.NextAction,
		Status:     models.ProjectStatus(p.Status),
		Reminder:   p.reminderColumns.toModel(),
	}
}

func (r Postgres) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1 ORDER BY created_at ASC`

	var rows []projectRow
	if err := r.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("query projects (user_id: %s): %w", userID, err)
	}

	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toModel())
	}
	return projects, nil
}

func (r Postgres) CreateProject(ctx context.Context, userID string, project *models.Project) (*models.Project, error) {
	reminderType, start, end, frequency := reminderValues(project.Reminder)
	status := project.Status
	if status == "" {
		status = models.ProjectActive
	}

	query := r.psql.Insert("projects").
		Columns("user_id", "name", "next_action", "status",
			"reminder_type", "reminder_window_start", "reminder_window_end", "reminder_frequency").
		Values(userID, project.Name, project.NextAction, string(status),
			reminderType, start, end, frequency).
		Suffix("RETURNING " + projectColumns)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	var row projectRow
	if err = r.GetContext(ctx, &row, sql, args...); err != nil {
		return nil, fmt.Errorf("create project (user_id: %s, name: %s): %w", userID, project.Name, err)
	}

	created := row.toModel()
	return &created, nil
}

func (r Postgres) UpdateProject(ctx context.Context, userID string, project *models.Project) error {
	reminderType, start, end, frequency := reminderValues(project.Reminder)

	query := r.psql.Update("projects").
		Set("name", project.Name).
		Set("next_action", project.NextAction).
		Set("status", string(project.Status)).
		Set("reminder_type", reminderType).
		Set("reminder_window_start", start).
		Set("reminder_window_end", end).
		Set("reminder_frequency", frequency).
		Where("id = ? AND user_id = ?", project.ID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("update project (user_id: %s, project_id: %s): %w", userID, project.ID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("update project (user_id: %s, project_id: %s): %w", userID, project.ID, err)
	}
	return nil
}

func (r Postgres) DeleteProject(ctx context.Context, userID, projectID string) error {
	query := r.psql.Delete("projects").
		Where("id = ? AND user_id = ?", projectID, userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("delete project (user_id: %s, project_id: %s): %w", userID, projectID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("delete project (user_id: %s, project_id: %s): %w", userID, projectID, err)
	}
	return nil
}
