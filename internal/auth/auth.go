package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	newUserName   = "Novo Viajante"
	defaultEnergy = 5

	uniqueViolation = "23505"
)

// Error carries a message that can be shown to the user as is.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "E-mail ou senha não parecem estar certos. Vamos tentar de novo?"}
	ErrEmailTaken         = &Error{Code: "email_taken", Message: "Este e-mail já tem uma conta. Que tal entrar?"}
	ErrInvalidInput       = &Error{Code: "invalid_input", Message: "Confira o e-mail e use uma senha com pelo menos 6 caracteres."}
	ErrInvalidSession     = &Error{Code: "invalid_session", Message: "Sua sessão terminou. Entre novamente para continuar."}
	ErrGoogleDisabled     = &Error{Code: "google_disabled", Message: "O login com Google não está disponível agora."}
	ErrGoogleFailed       = &Error{Code: "google_failed", Message: "Não conseguimos falar com o Google. Tente de novo em instantes."}
)

func wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleSubject(ctx context.Context, subject string) (*models.User, error)
	LinkGoogleSubject(ctx context.Context, userID, subject string) error
	BumpSessionVersion(ctx context.Context, userID string) (int, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
	RunInTx(ctx context.Context, fn func(models.Repository) error) error
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

var validate = validator.New()

type Service struct {
	store     Store
	tokens    *Tokens
	google    *GoogleOAuth
	publisher Publisher
	timezone  string
}

// NewService accepts a nil google client; Google sign-in then reports ErrGoogleDisabled.
func NewService(store Store, tokens *Tokens, google *GoogleOAuth, publisher Publisher, timezone string) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		google:    google,
		publisher: publisher,
		timezone:  timezone,
	}
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, wrap(ErrInvalidInput, err)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("check email (email: %s): %w", email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	user := &models.User{Email: email, PasswordHash: &hashed}
	if err = s.createWithProfile(ctx, user); err != nil {
		return nil, err
	}

	return s.start(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user (email: %s): %w", email, err)
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.start(ctx, user)
}

func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	return s.google.AuthURL(state), nil
}

// SignInWithGoogle finds the account by Google subject, then by e-mail (linking it),
// and creates one otherwise.
func (s *Service) SignInWithGoogle(ctx context.Context, code string) (*Session, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}

	gUser, err := s.google.Exchange(ctx, code)
	if err != nil {
		zap.S().Warnw("google exchange", zap.Error(err))
		return nil, wrap(ErrGoogleFailed, err)
	}

	user, err := s.store.GetUserByGoogleSubject(ctx, gUser.Subject)
	if err == nil {
		return s.start(ctx, user)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get user by google subject: %w", err)
	}

	email := normalizeEmail(gUser.Email)
	user, err = s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err = s.store.LinkGoogleSubject(ctx, user.ID, gUser.Subject); err != nil {
			return nil, fmt.Errorf("link google account (user_id: %s): %w", user.ID, err)
		}
		return s.start(ctx, user)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("get user (email: %s): %w", email, err)
	}

	subject := gUser.Subject
	user = &models.User{Email: email, GoogleSubject: &subject}
	if err = s.createWithProfile(ctx, user); err != nil {
		return nil, err
	}
	return s.start(ctx, user)
}

// SignOut revokes every token issued so far for the user.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	if _, err := s.store.BumpSessionVersion(ctx, userID); err != nil {
		return fmt.Errorf("sign out (user_id: %s): %w", userID, err)
	}
	s.publisher.Publish(ctx, events.SessionEnded{UserID: userID})
	return nil
}

// Authenticate validates a bearer token against the stored session version.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, wrap(ErrInvalidSession, err)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("get user (user_id: %s): %w", claims.UserID, err)
	}
	if user.SessionVersion != claims.SessionVersion {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

func (s *Service) createWithProfile(ctx context.Context, user *models.User) error {
	err := s.store.RunInTx(ctx, func(tx models.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.UpsertProfile(ctx, &models.Profile{
			ID:           user.ID,
			FullName:     newUserName,
			EnergyLevel:  defaultEnergy,
			Difficulties: []string{},
			Timezone:     s.timezone,
		})
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		// A concurrent sign-up won the race for this address.
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user (email: %s): %w", user.Email, err)
	}
	return nil
}

func (s *Service) start(ctx context.Context, user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.SessionVersion)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.SessionStarted{UserID: user.ID})

	return &Session{Token: token, ExpiresAt: expiresAt, UserID: user.ID, Email: user.Email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
