package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/models"
	"golang.org/x/oauth2"
)

type memStore struct {
	models.Repository

	users     map[string]*models.User
	profiles  map[string]*models.Profile
	nextID    int
	createErr error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}, profiles: map[string]*models.Profile{}}
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return fmt.Errorf("create user (email: %s): %w", user.Email, m.createErr)
	}
	m.nextID++
	user.ID = "user-" + string(rune('0'+m.nextID))
	user.SessionVersion = 1
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) find(match func(*models.User) bool) (*models.User, error) {
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memStore) GetUserByGoogleSubject(_ context.Context, subject string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.GoogleSubject != nil && *u.GoogleSubject == subject })
}

func (m *memStore) LinkGoogleSubject(_ context.Context, userID, subject string) error {
	m.users[userID].GoogleSubject = &subject
	return nil
}

func (m *memStore) BumpSessionVersion(_ context.Context, userID string) (int, error) {
	m.users[userID].SessionVersion++
	return m.users[userID].SessionVersion, nil
}

func (m *memStore) UpsertProfile(_ context.Context, profile *models.Profile) error {
	cp := *profile
	m.profiles[profile.ID] = &cp
	return nil
}

func (m *memStore) RunInTx(_ context.Context, fn func(models.Repository) error) error {
	return fn(m)
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func newTestAuth(t *testing.T, google *GoogleOAuth) (*Service, *memStore, *recorder) {
	t.Helper()
	store := newMemStore()
	rec := &recorder{}
	return NewService(store, NewTokens("test-secret", time.Hour), google, rec, "UTC"), store, rec
}

func TestSignUpCreatesProfileAndStartsSession(t *testing.T) {
	svc, store, rec := newTestAuth(t, nil)

	sess, err := svc.SignUp(context.Background(), " Ana@Example.com ", "segredo1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if sess.Email != "ana@example.com" || sess.Token == "" {
		t.Fatalf("session=%+v", sess)
	}

	profile := store.profiles[sess.UserID]
	if profile == nil || profile.FullName != "Novo Viajante" || profile.OnboardingCompleted {
		t.Fatalf("profile=%+v, want incomplete Novo Viajante", profile)
	}
	if len(rec.events) != 1 {
		t.Fatalf("events=%d, want 1", len(rec.events))
	}
	if _, ok := rec.events[0].(events.SessionStarted); !ok {
		t.Fatalf("event=%#v, want SessionStarted", rec.events[0])
	}

	if _, err = svc.SignUp(context.Background(), "ana@example.com", "outra123"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err=%v, want ErrEmailTaken", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestAuth(t, nil)

	_, err := svc.SignUp(context.Background(), "ana@example.com", "123")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestAuth(t, nil)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ana@example.com", "segredo1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	_, err := svc.SignIn(ctx, "ana@example.com", "errada")
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("err=%v, want *auth.Error", err)
	}
	if authErr.Message != "E-mail ou senha não parecem estar certos. Vamos tentar de novo?" {
		t.Fatalf("message=%q", authErr.Message)
	}

	if _, err = svc.SignIn(ctx, "ninguem@example.com", "segredo1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err=%v, want ErrInvalidCredentials", err)
	}

	if _, err = svc.SignIn(ctx, "ANA@example.com", "segredo1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	svc, _, rec := newTestAuth(t, nil)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "ana@example.com", "segredo1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err = svc.Authenticate(ctx, sess.Token); err != nil {
		t.Fatalf("Authenticate before sign out: %v", err)
	}

	if err = svc.SignOut(ctx, sess.UserID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err = svc.Authenticate(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err=%v, want ErrInvalidSession", err)
	}

	last := rec.events[len(rec.events)-1]
	if ended, ok := last.(events.SessionEnded); !ok || ended.UserID != sess.UserID {
		t.Fatalf("last event=%#v, want SessionEnded", last)
	}
}

func TestTokensRejectForeignKey(t *testing.T) {
	token, _, err := NewTokens("one", time.Hour).Issue("u1", "a@b.c", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err = NewTokens("two", time.Hour).Parse(token); err == nil {
		t.Fatal("token signed with another key accepted")
	}
}

func TestTokensExpire(t *testing.T) {
	tokens := NewTokens("k", time.Minute)
	issued := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	token, _, err := tokens.Issue("u1", "a@b.c", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err = tokens.Parse(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func newFakeGoogle(t *testing.T, subject, email string) *GoogleOAuth {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer at") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"` + subject + `","email":"` + email + `","email_verified":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogleOAuth("client", "secret", "http://localhost/callback")
	g.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestSignInWithGoogleLinksExistingAccount(t *testing.T) {
	svc, store, _ := newTestAuth(t, newFakeGoogle(t, "g-123", "ana@example.com"))
	ctx := context.Background()

	created, err := svc.SignUp(ctx, "ana@example.com", "segredo1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	sess, err := svc.SignInWithGoogle(ctx, "code")
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if sess.UserID != created.UserID {
		t.Fatalf("user=%s, want linked %s", sess.UserID, created.UserID)
	}
	if gs := store.users[created.UserID].GoogleSubject; gs == nil || *gs != "g-123" {
		t.Fatalf("google subject=%v, want g-123", gs)
	}
}

func TestSignInWithGoogleCreatesAccount(t *testing.T) {
	svc, store, _ := newTestAuth(t, newFakeGoogle(t, "g-9", "novo@example.com"))

	sess, err := svc.SignInWithGoogle(context.Background(), "code")
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if store.profiles[sess.UserID] == nil {
		t.Fatal("profile not created for google account")
	}
	if store.users[sess.UserID].PasswordHash != nil {
		t.Fatal("google account should have no password")
	}
}

func TestGoogleDisabled(t *testing.T) {
	svc, _, _ := newTestAuth(t, nil)
	if _, err := svc.GoogleAuthURL("s"); !errors.Is(err, ErrGoogleDisabled) {
		t.Fatalf("err=%v, want ErrGoogleDisabled", err)
	}
}

func TestSignUpRaceReportsEmailTaken(t *testing.T) {
	svc, store, rec := newTestAuth(t, nil)
	store.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	_, err := svc.SignUp(context.Background(), "ana@example.com", "segredo1")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err=%v, want ErrEmailTaken", err)
	}
	if len(store.profiles) != 0 || len(rec.events) != 0 {
		t.Fatalf("profiles=%d events=%d, want none", len(store.profiles), len(rec.events))
	}

	store.createErr = &pgconn.PgError{Code: "53300"}
	if _, err = svc.SignUp(context.Background(), "bia@example.com", "segredo1"); err == nil || errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err=%v, want a plain storage error", err)
	}
}
