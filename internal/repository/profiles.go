package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/romanzh1/mindful-garden/internal/models"
)

const profileColumns = `id, full_name, energy_level, difficulties, onboarding_completed,
	glow_points, current_level, last_action_at, timezone, telegram_chat_id`

type profileRow struct {
	ID                  string         `db:"id"`
	FullName            string         `db:"full_name"`
	EnergyLevel         int            `db:"energy_level"`
	Difficulties        pq.StringArray `db:"difficulties"`
	OnboardingCompleted bool           `db:"onboarding_completed"`
	GlowPoints          int            `db:"glow_points"`
	CurrentLevel        int            `db:"current_level"`
	LastActionAt        *time.Time     `db:"last_action_at"`
	Timezone            string         `db:"timezone"`
	TelegramChatID      *int64         `db:"telegram_chat_id"`
}

func (p profileRow) toModel() *models.Profile {
	difficulties := []string(p.Difficulties)
	if difficulties == nil {
		difficulties = []string{}
	}
	return &models.Profile{
		ID:                  p.ID,
		FullName:            p.FullName,
		EnergyLevel:         p.EnergyLevel,
		Difficulties:        difficulties,
		OnboardingCompleted: p.OnboardingCompleted,
		GlowPoints:          p.GlowPoints,
		Level:               p.CurrentLevel,
		LastActionAt:        p.LastActionAt,
		Timezone:            p.Timezone,
		TelegramChatID:      p.TelegramChatID,
	}
}

func (r Postgres) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	var row profileRow
	if err := r.GetContext(ctx, &row, query, userID); err != nil {
		return nil, fmt.Errorf("get profile (user_id: %s): %w", userID, notFound(err))
	}

	return row.toModel(), nil
}

func (r Postgres) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	timezone := profile.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	query := r.psql.Insert("profiles").
		Columns("id", "full_name", "energy_level", "difficulties", "onboarding_completed", "timezone").
		Values(profile.ID, profile.FullName, profile.EnergyLevel, textArray(profile.Difficulties), profile.OnboardingCompleted, timezone).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			energy_level = EXCLUDED.energy_level,
			difficulties = EXCLUDED.difficulties,
			onboarding_completed = EXCLUDED.onboarding_completed,
			timezone = EXCLUDED.timezone,
			updated_at = now()`)

	if _, err := r.exec(ctx, query); err != nil {
		return fmt.Errorf("upsert profile (user_id: %s): %w", profile.ID, err)
	}
	return nil
}

func (r Postgres) UpdateEnergyLevel(ctx context.Context, userID string, level int) error {
	query := r.psql.Update("profiles").
		Set("energy_level", level).
		Set("updated_at", squirrelNow).
		Where("id = ?", userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("update energy level (user_id: %s, level: %d): %w", userID, level, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("update energy level (user_id: %s, level: %d): %w", userID, level, err)
	}
	return nil
}

// AddGlowPoints calls the add_glow_points procedure and returns the new total.
func (r Postgres) AddGlowPoints(ctx context.Context, userID string, points int) (int, error) {
	var total int
	if err := r.GetContext(ctx, &total, `SELECT add_glow_points($1, $2)`, userID, points); err != nil {
		return 0, fmt.Errorf("add glow points (user_id: %s, points: %d): %w", userID, points, err)
	}
	return total, nil
}

func (r Postgres) SetTelegramLinkCode(ctx context.Context, userID, code string) error {
	query := r.psql.Update("profiles").
		Set("telegram_link_code", code).
		Where("id = ?", userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("set telegram link code (user_id: %s): %w", userID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("set telegram link code (user_id: %s): %w", userID, err)
	}
	return nil
}

// LinkTelegramChat consumes a link code and binds the chat to its profile.
func (r Postgres) LinkTelegramChat(ctx context.Context, code string, chatID int64) (string, error) {
	query := r.psql.Update("profiles").
		Set("telegram_chat_id", chatID).
		Set("telegram_link_code", nil).
		Where("telegram_link_code = ?", code).
		Suffix("RETURNING id")

	sql, args, err := query.ToSql()
	if err != nil {
		return "", fmt.Errorf("build SQL query (chat_id: %d): %w", chatID, err)
	}

	var userID string
	if err = r.GetContext(ctx, &userID, sql, args...); err != nil {
		return "", fmt.Errorf("link telegram chat (chat_id: %d): %w", chatID, notFound(err))
	}
	return userID, nil
}

func (r Postgres) GetUserIDByTelegramChat(ctx context.Context, chatID int64) (string, error) {
	var userID string
	if err := r.GetContext(ctx, &userID, `SELECT id FROM profiles WHERE telegram_chat_id = $1`, chatID); err != nil {
		return "", fmt.Errorf("get user by telegram chat (chat_id: %d): %w", chatID, notFound(err))
	}
	return userID, nil
}

func (r Postgres) GetProfilesWithTelegram(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE telegram_chat_id IS NOT NULL`

	var rows []profileRow
	if err := r.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query profiles with telegram: %w", err)
	}

	profiles := make([]*models.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toModel())
	}
	return profiles, nil
}
