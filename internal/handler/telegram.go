package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/internal/reminder"
	"github.com/romanzh1/mindful-garden/pkg/utils"
	"go.uber.org/zap"
)

const togglePrefix = "toggle_"

type BotService interface {
	LinkTelegram(ctx context.Context, code string, chatID int64) (string, error)
	UserByChat(ctx context.Context, chatID int64) (string, error)
	ProfilesWithTelegram(ctx context.Context) ([]*models.Profile, error)

	Habits(ctx context.Context, userID string) ([]models.Habit, error)
	Projects(ctx context.Context, userID string) ([]models.Project, error)
	ToggleHabit(ctx context.Context, userID, habitID string) (*models.Habit, error)
	Advice(ctx context.Context, userID string) string
}

// sender delivers outgoing messages and callback answers.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type TelegramHandler struct {
	api     *tgbotapi.BotAPI
	out     sender
	service BotService
}

func NewTelegramHandler(token string, service BotService) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return &TelegramHandler{
		api:     api,
		out:     api,
		service: service,
	}, nil
}

// Start blocks until ctx is cancelled.
func (h *TelegramHandler) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.api.GetUpdatesChan(u)

	zap.S().Info("bot started")

	go h.startReminderScheduler(ctx)

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			zap.S().Info("bot stopped")
			return
		case update := <-updates:
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *TelegramHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if update.Message.From == nil {
			zap.S().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil {
			zap.S().Warn("received callback without user or message")
			return
		}
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.sendMessage(update.Message.Chat.ID, "Use /help para ver o que posso fazer.")
	}
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		h.handleStart(ctx, update)
	case "habits":
		h.handleHabits(ctx, update)
	case "coach":
		h.handleCoach(ctx, update)
	case "help":
		h.handleHelp(update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Comando desconhecido. Use /help")
	}
}

func (h *TelegramHandler) handleStart(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	code := strings.TrimSpace(update.Message.CommandArguments())

	if code == "" {
		if _, err := h.service.UserByChat(ctx, chatID); err == nil {
			h.sendMessage(chatID, "Que bom te ver de novo 🌿 Use /habits para cuidar do seu jardim.")
			return
		}
		h.sendMessage(chatID, "Olá! 🌱 Gere um código de conexão no app e envie <code>/start CODIGO</code> aqui.")
		return
	}

	userID, err := h.service.LinkTelegram(ctx, code, chatID)
	if errors.Is(err, models.ErrNotFound) {
		h.sendMessage(chatID, "Esse código não parece válido. Gere um novo no app e tente de novo.")
		return
	}
	if err != nil {
		zap.S().Errorw("link telegram", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendMessage(chatID, "Algo deu errado. Tente novamente em instantes.")
		return
	}

	zap.S().Infow("telegram linked", zap.String("user_id", userID), zap.Int64("chat_id", chatID))
	h.sendMessage(chatID, "Conectado! 🌸 Vou te lembrar dos seus hábitos com carinho. Use /habits para começar.")
}

// linkedUser answers the chat itself when it is not linked yet.
func (h *TelegramHandler) linkedUser(ctx context.Context, chatID int64) (string, bool) {
	userID, err := h.service.UserByChat(ctx, chatID)
	if errors.Is(err, models.ErrNotFound) {
		h.sendMessage(chatID, "Primeiro conecte sua conta: gere um código no app e envie /start CODIGO.")
		return "", false
	}
	if err != nil {
		zap.S().Errorw("get user by chat", zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendMessage(chatID, "Algo deu errado. Tente novamente em instantes.")
		return "", false
	}
	return userID, true
}

func (h *TelegramHandler) handleHabits(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	userID, ok := h.linkedUser(ctx, chatID)
	if !ok {
		return
	}

	habits, err := h.service.Habits(ctx, userID)
	if err != nil {
		zap.S().Errorw("get habits", zap.Error(err), zap.String("user_id", userID))
		h.sendMessage(chatID, "Não consegui carregar seus hábitos agora.")
		return
	}

	if len(habits) == 0 {
		h.sendMessage(chatID, "Você ainda não tem hábitos. Plante o primeiro no app 🌱")
		return
	}

	h.sendMessageWithKeyboard(chatID, "<b>Seus hábitos de hoje</b>\nToque para marcar ou desmarcar:", habitsKeyboard(habits))
}

func (h *TelegramHandler) handleCoach(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	userID, ok := h.linkedUser(ctx, chatID)
	if !ok {
		return
	}

	h.sendMessage(chatID, "🍃 "+escapeHTML(h.service.Advice(ctx, userID)))
}

func (h *TelegramHandler) handleHelp(update tgbotapi.Update) {
	text := `🌿 <b>Mindful Garden</b>

Comandos:

/start CODIGO - Conectar sua conta
/habits - Ver e marcar os hábitos de hoje
/coach - Uma palavra gentil do seu coach
/help - Ajuda`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	answer := ""

	if habitID, ok := strings.CutPrefix(callback.Data, togglePrefix); ok {
		answer = h.toggleHabit(ctx, callback, habitID)
	} else {
		zap.S().Warnw("unknown callback data", zap.String("data", callback.Data), zap.Int64("chat_id", chatID))
	}

	if _, err := h.out.Request(tgbotapi.NewCallback(callback.ID, answer)); err != nil {
		zap.S().Errorw("send callback answer", zap.Error(err), zap.String("callback_id", callback.ID))
	}
}

func (h *TelegramHandler) toggleHabit(ctx context.Context, callback *tgbotapi.CallbackQuery, habitID string) string {
	chatID := callback.Message.Chat.ID

	userID, ok := h.linkedUser(ctx, chatID)
	if !ok {
		return ""
	}

	habit, err := h.service.ToggleHabit(ctx, userID, habitID)
	if err != nil {
		zap.S().Errorw("toggle habit", zap.Error(err), zap.String("user_id", userID), zap.String("habit_id", habitID))
		return "Não consegui salvar agora, tente de novo."
	}

	habits, err := h.service.Habits(ctx, userID)
	if err == nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, habitsKeyboard(habits))
		if _, err = h.out.Request(edit); err != nil {
			zap.S().Errorw("refresh habits keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}

	if habit.CompletedToday {
		return "🌸 Feito! Seu jardim brilhou um pouco mais."
	}
	return "Desmarcado."
}

func habitsKeyboard(habits []models.Habit) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(habits))
	for _, habit := range habits {
		mark := "⬜"
		if habit.CompletedToday {
			mark = "✅"
		}
		label := fmt.Sprintf("%s %s %s", mark, habit.Icon, habit.Name)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, togglePrefix+habit.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *TelegramHandler) startReminderScheduler(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.checkAndSendReminders(ctx, now)
		}
	}
}

func (h *TelegramHandler) checkAndSendReminders(ctx context.Context, now time.Time) {
	profiles, err := h.service.ProfilesWithTelegram(ctx)
	if err != nil {
		zap.S().Errorw("get profiles for reminders", zap.Error(err))
		return
	}

	for _, profile := range profiles {
		if profile.TelegramChatID == nil {
			continue
		}
		chatID := *profile.TelegramChatID
		local := utils.ToUserTimezone(now, profile.Timezone)

		habits, err := h.service.Habits(ctx, profile.ID)
		if err != nil {
			zap.S().Errorw("get habits for reminder", zap.Error(err), zap.String("user_id", profile.ID))
			continue
		}
		for _, habit := range habits {
			if habit.CompletedToday || !reminder.Fires(habit.Reminder, profile.ID+"/"+habit.ID, local) {
				continue
			}
			keyboard := habitsKeyboard([]models.Habit{habit})
			h.sendMessageWithKeyboard(chatID, formatHabitReminder(habit), keyboard)
		}

		projects, err := h.service.Projects(ctx, profile.ID)
		if err != nil {
			zap.S().Errorw("get projects for reminder", zap.Error(err), zap.String("user_id", profile.ID))
			continue
		}
		for _, project := range projects {
			if project.Status != models.ProjectActive || !reminder.Fires(project.Reminder, profile.ID+"/"+project.ID, local) {
				continue
			}
			h.sendMessage(chatID, formatProjectReminder(project))
		}
	}
}

func formatHabitReminder(habit models.Habit) string {
	text := fmt.Sprintf("🔔 Hora de cuidar de <b>%s</b> %s", escapeHTML(habit.Name), habit.Icon)
	if habit.MicroAction != "" {
		text += "\nSó um pequeno passo: " + escapeHTML(habit.MicroAction)
	}
	return text
}

func formatProjectReminder(project models.Project) string {
	return fmt.Sprintf("✨ <b>%s</b>\nPróximo passo: %s", escapeHTML(project.Name), escapeHTML(project.NextAction))
}

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.out.Send(msg); err != nil {
		zap.S().Errorw("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) sendMessageWithKeyboard(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.out.Send(msg); err != nil {
		zap.S().Errorw("send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
