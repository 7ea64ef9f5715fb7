package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/mindful-garden/internal/auth"
	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/gamification"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/service"
	"github.com/romanzh1/mindful-garden/internal/state"
	"go.uber.org/zap"
)

const (
	userIDKey       = "user_id"
	oauthStateName  = "oauth_state"
	syncFailMessage = "Não conseguimos salvar agora. Seu jardim voltou ao estado anterior."
)

type App interface {
	Snapshot(ctx context.Context, userID string) (state.Snapshot, error)
	SnapshotOf(userID string) (state.Snapshot, error)
	Navigate(ctx context.Context, userID string, screen models.Screen) (state.Snapshot, error)
	CompleteOnboarding(ctx context.Context, userID string, in service.OnboardingInput) (state.Snapshot, error)
	UpdateEnergy(ctx context.Context, userID string, level int) (*models.Profile, error)
	TelegramLinkCode(ctx context.Context, userID string) (string, error)

	Habits(ctx context.Context, userID string) ([]models.Habit, error)
	AddHabit(ctx context.Context, userID string, in service.HabitInput) (*models.Habit, error)
	UpdateHabit(ctx context.Context, userID, habitID string, in service.HabitInput) (*models.Habit, error)
	DeleteHabit(ctx context.Context, userID, habitID string) error
	ToggleHabit(ctx context.Context, userID, habitID string) (*models.Habit, error)
	HabitPlan(ctx context.Context, goal string) coach.HabitPlan

	AddProject(ctx context.Context, userID string, in service.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, userID, projectID string, in service.ProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
	CompleteProjectAction(ctx context.Context, userID, projectID, next string) (*models.Project, error)
	ProjectPlan(ctx context.Context, goal string) coach.ProjectPlan

	AddWorkTask(ctx context.Context, userID string, in service.WorkTaskInput) (*models.WorkTask, error)
	DeleteWorkTask(ctx context.Context, userID, taskID string) error
	CompleteWorkTask(ctx context.Context, userID, taskID string) (*models.WorkTask, error)
	BreakDownWorkTask(ctx context.Context, userID, taskID string) (coach.Breakdown, error)
	Tasks(ctx context.Context, userID string) ([]models.Task, error)
	CompleteTask(ctx context.Context, userID, taskID string) (*models.WorkTask, error)

	CompleteFocusSession(ctx context.Context, userID string, minutes int) (models.GamificationState, error)
	Garden(ctx context.Context, userID string) (gamification.Garden, error)
	Evolution(ctx context.Context, userID string) ([]models.DailyStat, error)
	Insight(ctx context.Context, userID string) (string, error)
	Advice(ctx context.Context, userID string) string
}

type Auth interface {
	SignUp(ctx context.Context, email, password string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	GoogleAuthURL(state string) (string, error)
	SignInWithGoogle(ctx context.Context, code string) (*auth.Session, error)
	SignOut(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

type HTTPHandler struct {
	app     App
	auth    Auth
	timeout time.Duration
}

func NewHTTPHandler(app App, auth Auth, timeout time.Duration) *HTTPHandler {
	return &HTTPHandler{app: app, auth: auth, timeout: timeout}
}

func (h *HTTPHandler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), h.withTimeout())

	api := router.Group("/api")
	h.setupAuthRoutes(api.Group("/auth"))

	protected := api.Group("/")
	protected.Use(h.authenticate())
	h.setupRoutes(protected)

	return router
}

func (h *HTTPHandler) setupAuthRoutes(router *gin.RouterGroup) {
	router.POST("/signup", h.signUp)
	router.POST("/login", h.signIn)
	router.GET("/google", h.googleURL)
	router.GET("/google/callback", h.googleCallback)
	router.POST("/logout", h.authenticate(), h.signOut)
}

func (h *HTTPHandler) setupRoutes(router *gin.RouterGroup) {
	router.GET("/state", h.getState)
	router.POST("/navigate", h.navigate)
	router.POST("/onboarding", h.completeOnboarding)
	router.PUT("/profile/energy", h.updateEnergy)
	router.POST("/profile/telegram-code", h.telegramCode)

	router.GET("/habits", h.listHabits)
	router.POST("/habits", h.addHabit)
	router.POST("/habits/plan", h.habitPlan)
	router.PUT("/habits/:id", h.updateHabit)
	router.DELETE("/habits/:id", h.deleteHabit)
	router.POST("/habits/:id/toggle", h.toggleHabit)

	router.POST("/projects", h.addProject)
	router.POST("/projects/plan", h.projectPlan)
	router.PUT("/projects/:id", h.updateProject)
	router.DELETE("/projects/:id", h.deleteProject)
	router.POST("/projects/:id/complete-action", h.completeProjectAction)

	router.POST("/work-tasks", h.addWorkTask)
	router.DELETE("/work-tasks/:id", h.deleteWorkTask)
	router.POST("/work-tasks/:id/complete", h.completeWorkTask)
	router.POST("/work-tasks/:id/breakdown", h.breakDownWorkTask)

	router.GET("/tasks", h.listTasks)
	router.POST("/tasks/:id/complete", h.completeTask)

	router.POST("/focus", h.completeFocus)
	router.GET("/garden", h.garden)
	router.GET("/evolution", h.evolution)
	router.POST("/evolution/insight", h.insight)
	router.POST("/coach", h.advice)
}

func (h *HTTPHandler) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zap.S().Debugw("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (h *HTTPHandler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidSession.Message})
			return
		}

		claims, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// fail maps err to a status code. Sync failures answer 502 with the current snapshot so
// the client can show the rolled back state.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	var authErr *auth.Error
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &authErr):
		c.JSON(authStatus(authErr), gin.H{"error": authErr.Message})
	case errors.Is(err, service.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidSession.Message})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrAlreadyDone):
		c.JSON(http.StatusConflict, gin.H{"error": "already done"})
	default:
		userID := c.GetString(userIDKey)
		zap.S().Errorw("request failed", zap.Error(err), zap.String("user_id", userID), zap.String("path", c.FullPath()))

		body := gin.H{"error": syncFailMessage}
		if userID != "" {
			if snap, snapErr := h.app.SnapshotOf(userID); snapErr == nil {
				body["state"] = snap
			}
		}
		c.JSON(http.StatusBadGateway, body)
	}
}

func authStatus(err *auth.Error) int {
	switch err.Code {
	case auth.ErrInvalidInput.Code:
		return http.StatusBadRequest
	case auth.ErrEmailTaken.Code:
		return http.StatusConflict
	case auth.ErrGoogleDisabled.Code:
		return http.StatusNotFound
	case auth.ErrGoogleFailed.Code:
		return http.StatusBadGateway
	default:
		return http.StatusUnauthorized
	}
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *HTTPHandler) signUp(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *HTTPHandler) signIn(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *HTTPHandler) googleURL(c *gin.Context) {
	oauthState, err := auth.NewState()
	if err != nil {
		h.fail(c, err)
		return
	}

	url, err := h.auth.GoogleAuthURL(oauthState)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateName, oauthState, 600, "/api/auth", "", false, true)
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *HTTPHandler) googleCallback(c *gin.Context) {
	expected, err := c.Cookie(oauthStateName)
	if err != nil || expected == "" || expected != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateName, "", -1, "/api/auth", "", false, true)

	sess, err := h.auth.SignInWithGoogle(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *HTTPHandler) signOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), c.GetString(userIDKey)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
