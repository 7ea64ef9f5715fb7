package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/service"
)

type navigateRequest struct {
	Screen models.Screen `json:"screen" binding:"required"`
}

type energyRequest struct {
	Level int `json:"level"`
}

type goalRequest struct {
	Goal string `json:"goal" binding:"required"`
}

type completeActionRequest struct {
	NextAction string `json:"nextAction"`
}

type focusRequest struct {
	Minutes int `json:"minutes"`
}

func (h *HTTPHandler) getState(c *gin.Context) {
	snap, err := h.app.Snapshot(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) navigate(c *gin.Context) {
	var req navigateRequest
	if !bind(c, &req) {
		return
	}

	snap, err := h.app.Navigate(c.Request.Context(), c.GetString(userIDKey), req.Screen)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) completeOnboarding(c *gin.Context) {
	var in service.OnboardingInput
	if !bind(c, &in) {
		return
	}

	snap, err := h.app.CompleteOnboarding(c.Request.Context(), c.GetString(userIDKey), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) updateEnergy(c *gin.Context) {
	var req energyRequest
	if !bind(c, &req) {
		return
	}

	profile, err := h.app.UpdateEnergy(c.Request.Context(), c.GetString(userIDKey), req.Level)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *HTTPHandler) telegramCode(c *gin.Context) {
	code, err := h.app.TelegramLinkCode(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *HTTPHandler) listHabits(c *gin.Context) {
	habits, err := h.app.Habits(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, habits)
}

func (h *HTTPHandler) addHabit(c *gin.Context) {
	var in service.HabitInput
	if !bind(c, &in) {
		return
	}

	habit, err := h.app.AddHabit(c.Request.Context(), c.GetString(userIDKey), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

func (h *HTTPHandler) updateHabit(c *gin.Context) {
	var in service.HabitInput
	if !bind(c, &in) {
		return
	}

	habit, err := h.app.UpdateHabit(c.Request.Context(), c.GetString(userIDKey), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

func (h *HTTPHandler) deleteHabit(c *gin.Context) {
	if err := h.app.DeleteHabit(c.Request.Context(), c.GetString(userIDKey), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) toggleHabit(c *gin.Context) {
	habit, err := h.app.ToggleHabit(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

func (h *HTTPHandler) habitPlan(c *gin.Context) {
	var req goalRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.app.HabitPlan(c.Request.Context(), req.Goal))
}

func (h *HTTPHandler) addProject(c *gin.Context) {
	var in service.ProjectInput
	if !bind(c, &in) {
		return
	}

	project, err := h.app.AddProject(c.Request.Context(), c.GetString(userIDKey), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *HTTPHandler) updateProject(c *gin.Context) {
	var in service.ProjectInput
	if !bind(c, &in) {
		return
	}

	project, err := h.app.UpdateProject(c.Request.Context(), c.GetString(userIDKey), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *HTTPHandler) deleteProject(c *gin.Context) {
	if err := h.app.DeleteProject(c.Request.Context(), c.GetString(userIDKey), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) completeProjectAction(c *gin.Context) {
	var req completeActionRequest
	if !bind(c, &req) {
		return
	}

	project, err := h.app.CompleteProjectAction(c.Request.Context(), c.GetString(userIDKey), c.Param("id"), req.NextAction)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *HTTPHandler) projectPlan(c *gin.Context) {
	var req goalRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.app.ProjectPlan(c.Request.Context(), req.Goal))
}

func (h *HTTPHandler) addWorkTask(c *gin.Context) {
	var in service.WorkTaskInput
	if !bind(c, &in) {
		return
	}

	task, err := h.app.AddWorkTask(c.Request.Context(), c.GetString(userIDKey), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *HTTPHandler) deleteWorkTask(c *gin.Context) {
	if err := h.app.DeleteWorkTask(c.Request.Context(), c.GetString(userIDKey), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) completeWorkTask(c *gin.Context) {
	task, err := h.app.CompleteWorkTask(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *HTTPHandler) breakDownWorkTask(c *gin.Context) {
	breakdown, err := h.app.BreakDownWorkTask(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func (h *HTTPHandler) listTasks(c *gin.Context) {
	tasks, err := h.app.Tasks(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *HTTPHandler) completeTask(c *gin.Context) {
	task, err := h.app.CompleteTask(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *HTTPHandler) completeFocus(c *gin.Context) {
	var req focusRequest
	if !bind(c, &req) {
		return
	}

	g, err := h.app.CompleteFocusSession(c.Request.Context(), c.GetString(userIDKey), req.Minutes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *HTTPHandler) garden(c *gin.Context) {
	garden, err := h.app.Garden(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, garden)
}

func (h *HTTPHandler) evolution(c *gin.Context) {
	days, err := h.app.Evolution(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *HTTPHandler) insight(c *gin.Context) {
	text, err := h.app.Insight(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insight": text})
}

func (h *HTTPHandler) advice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"advice": h.app.Advice(c.Request.Context(), c.GetString(userIDKey))})
}
