package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/pkg/utils"
)

var validate = validator.New()

// ValidationError marks input rejected before any state change.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type HabitInput struct {
	Name        string           `json:"name" validate:"required,max=120"`
	MicroAction string           `json:"microAction" validate:"max=240"`
	Icon        string           `json:"icon" validate:"max=16"`
	ProjectID   *string          `json:"projectId"`
	Reminder    *models.Reminder `json:"reminder"`
}

type ProjectInput struct {
	Name       string           `json:"name" validate:"required,max=120"`
	NextAction string           `json:"nextAction" validate:"max=240"`
	Reminder   *models.Reminder `json:"reminder"`
}

type WorkTaskInput struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=2000"`
	EnergyRequired int      `json:"energyRequired" validate:"required,min=1,max=3"`
	Deadline       *string  `json:"deadline"`
	MicroSteps     []string `json:"microSteps" validate:"max=20,dive,max=240"`
}

type OnboardingInput struct {
	FullName     string   `json:"fullName" validate:"max=120"`
	EnergyLevel  int      `json:"energyLevel" validate:"required,min=1,max=10"`
	Difficulties []string `json:"difficulties" validate:"max=20,dive,max=60"`
	Timezone     string   `json:"timezone"`
}

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func checkReminder(r *models.Reminder) error {
	if r == nil {
		return nil
	}
	if err := validate.Struct(r); err != nil {
		return &ValidationError{Err: err}
	}

	switch r.Type {
	case models.ReminderFixedWindow, models.ReminderRandom:
		start, err := utils.ParseClock(r.WindowStart)
		if err != nil {
			return &ValidationError{Err: err}
		}
		end, err := utils.ParseClock(r.WindowEnd)
		if err != nil {
			return &ValidationError{Err: err}
		}
		if end <= start {
			return &ValidationError{Err: fmt.Errorf("reminder window %s-%s is empty", r.WindowStart, r.WindowEnd)}
		}
		if r.Type == models.ReminderRandom && r.Frequency < 1 {
			return &ValidationError{Err: errors.New("random reminder needs a frequency")}
		}
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
