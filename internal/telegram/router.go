package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/ai"
	"github.com/Manabreaker/FitAI-tg/internal/reminder"
	"github.com/Manabreaker/FitAI-tg/internal/store"
)

// Router wires Telegram updates to handlers and holds the in-memory
// registration state.
type Router struct {
	bot  *tgbotapi.BotAPI
	log  *zap.Logger
	repo store.Repo
	rem  *reminder.Manager
	ai   *ai.Client

	mu    sync.Mutex
	forms map[int64]*regForm // chatID -> in-progress registration
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, rem *reminder.Manager, aiClient *ai.Client) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		repo:  repo,
		rem:   rem,
		ai:    aiClient,
		forms: make(map[int64]*regForm),
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/menu"):
			r.handleMenu(ctx, chatID)
		case strings.HasPrefix(text, "/meal_plan"):
			r.handleAIRequest(ctx, chatID, mealPlanPrompt)
		case strings.HasPrefix(text, "/workout_plan"):
			r.handleAIRequest(ctx, chatID, workoutPlanPrompt)
		case strings.HasPrefix(text, "/reminders"):
			r.handleReminders(ctx, chatID)
		case strings.HasPrefix(text, "/chat"):
			r.handleChatCommand(ctx, chatID, text)
		default:
			// Free-form text: registration answers or a chat turn.
			if r.formInProgress(chatID) {
				r.advanceForm(ctx, chatID, text)
				return
			}
			r.handleChat(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		chatID := cb.Message.Chat.ID
		data := cb.Data

		switch {
		case strings.HasPrefix(data, "sex_"),
			strings.HasPrefix(data, "goal_"),
			strings.HasPrefix(data, "skill_"),
			strings.HasPrefix(data, "tz_"):
			r.handleFormCallback(ctx, chatID, cb.ID, data)
		default:
			// Unknown callback — ignore silently
		}
		return
	}
}

// Notify sends a plain text message to the given chat. Markdown control
// characters are stripped so model output cannot break formatting.
// This makes Router satisfy reminder.Notifier.
func (r *Router) Notify(chatID int64, text string) error {
	clean := strings.NewReplacer("#", "", "*", "").Replace(text)
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, clean))
	return err
}

func (r *Router) sendText(chatID int64, text string) {
	if err := r.Notify(chatID, text); err != nil {
		r.log.Error("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id string) {
	_, _ = r.bot.Request(tgbotapi.NewCallback(id, ""))
}
