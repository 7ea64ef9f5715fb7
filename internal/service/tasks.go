package service

import (
	"context"

	"github.com/romanzh1/mindful-garden/internal/models"
)

// DeriveTasks builds the home-screen list: high-energy work goes to the morning,
// low-energy work to the evening.
func DeriveTasks(workTasks []models.WorkTask) []models.Task {
	tasks := make([]models.Task, 0, len(workTasks))
	for _, w := range workTasks {
		next := w.Description
		if len(w.MicroSteps) > 0 {
			next = w.MicroSteps[0]
		}

		status := "pending"
		if w.Status == models.WorkTaskDone {
			status = "done"
		}

		tasks = append(tasks, models.Task{
			ID:       w.ID,
			Title:    w.Title,
			NextStep: next,
			Block:    blockFor(w.EnergyRequired),
			Status:   status,
		})
	}
	return tasks
}

func blockFor(energy int) models.TimeBlock {
	switch {
	case energy >= 3:
		return models.BlockMorning
	case energy == 2:
		return models.BlockAfternoon
	default:
		return models.BlockEvening
	}
}

func (s *Service) Tasks(ctx context.Context, userID string) ([]models.Task, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return DeriveTasks(snap.WorkTasks), nil
}
