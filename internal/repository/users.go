package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/mindful-garden/internal/models"
)

const userColumns = "id, email, password_hash, google_subject, session_version, created_at"

func (r Postgres) CreateUser(ctx context.Context, user *models.User) error {
	query := r.psql.Insert("users").
		Columns("email", "password_hash", "google_subject").
		Values(strings.ToLower(user.Email), user.PasswordHash, user.GoogleSubject).
		Suffix("RETURNING " + userColumns)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (email: %s): %w", user.Email, err)
	}

	if err = r.GetContext(ctx, user, sql, args...); err != nil {
		return fmt.Errorf("create user (email: %s): %w", user.Email, err)
	}
	return nil
}

func (r Postgres) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, "id = ?", userID)
}

func (r Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ?", strings.ToLower(email))
}

func (r Postgres) GetUserByGoogleSubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getUser(ctx, "google_subject = ?", subject)
}

func (r Postgres) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := r.psql.Select(userColumns).From("users").Where(where, arg)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (%s %v): %w", where, arg, err)
	}

	var user models.User
	if err = r.GetContext(ctx, &user, sql, args...); err != nil {
		return nil, fmt.Errorf("get user (%s %v): %w", where, arg, notFound(err))
	}
	return &user, nil
}

func (r Postgres) LinkGoogleSubject(ctx context.Context, userID, subject string) error {
	query := r.psql.Update("users").
		Set("google_subject", subject).
		Where("id = ?", userID)

	res, err := r.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("link google subject (user_id: %s): %w", userID, err)
	}
	if err = affectedOne(res); err != nil {
		return fmt.Errorf("link google subject (user_id: %s): %w", userID, err)
	}
	return nil
}

// BumpSessionVersion invalidates every token issued before the call.
func (r Postgres) BumpSessionVersion(ctx context.Context, userID string) (int, error) {
	query := r.psql.Update("users").
		Set("session_version", squirrel.Expr("session_version + 1")).
		Where("id = ?", userID).
		Suffix("RETURNING session_version")

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	var version int
	if err = r.GetContext(ctx, &version, sql, args...); err != nil {
		return 0, fmt.Errorf("bump session version (user_id: %s): %w", userID, notFound(err))
	}
	return version, nil
}
