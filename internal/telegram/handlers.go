package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/ai"
	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

// requireUser loads the registered user behind a chat, prompting for
// registration when absent.
func (r *Router) requireUser(ctx context.Context, chatID int64) (*domain.User, bool) {
	u, err := r.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.sendText(chatID, "Please register first with /start.")
		} else {
			r.log.Error("load user failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, "Something went wrong, please try again later.")
		}
		return nil, false
	}
	return u, true
}

func (r *Router) handleMenu(ctx context.Context, chatID int64) {
	if _, ok := r.requireUser(ctx, chatID); !ok {
		return
	}
	r.sendText(chatID, menuText)
}

func (r *Router) handleReminders(ctx context.Context, chatID int64) {
	u, ok := r.requireUser(ctx, chatID)
	if !ok {
		return
	}
	items, err := r.rem.ListRegular(ctx, u.ID)
	if err != nil {
		r.log.Error("list reminders failed", zap.Error(err), zap.Int64("user", u.ID))
		r.sendText(chatID, "Could not read your reminders.")
		return
	}
	r.sendText(chatID, formatReminders(items))
}

// handleChatCommand strips the /chat prefix and forwards the rest.
func (r *Router) handleChatCommand(ctx context.Context, chatID int64, text string) {
	rest := ""
	if len(text) > len("/chat") {
		rest = strings.TrimSpace(text[len("/chat"):])
	}
	if rest == "" {
		r.sendText(chatID, "Please put your question after /chat.")
		return
	}
	r.handleChat(ctx, chatID, rest)
}

// handleChat processes a free-form inbound message: every such message
// re-arms the inactivity watchdog, then the text either matches the
// local "remind me in N minutes/hours" shortcut or goes to the model.
func (r *Router) handleChat(ctx context.Context, chatID int64, text string) {
	u, ok := r.requireUser(ctx, chatID)
	if !ok {
		return
	}

	if err := r.rem.ArmInactivity(ctx, u.ID); err != nil {
		r.log.Error("arm inactivity failed", zap.Error(err), zap.Int64("user", u.ID))
	}

	if delta, ok := domain.ParseRelative(text); ok {
		n, err := r.rem.CreateRegularAt(ctx, u.ID, time.Now().UTC().Add(delta), "Your reminder!")
		if err != nil {
			r.log.Error("relative reminder failed", zap.Error(err), zap.Int64("user", u.ID))
			r.sendText(chatID, "Could not create that reminder, sorry.")
			return
		}
		r.sendText(chatID, fmt.Sprintf("Reminder #%d set for %s.",
			n.ID, domain.LocalizeISO(n.DueAtUTC, u.Timezone)))
		return
	}

	r.handleAIRequest(ctx, chatID, text)
}

// handleAIRequest runs one model turn and dispatches any function calls
// the model made.
func (r *Router) handleAIRequest(ctx context.Context, chatID int64, text string) {
	u, ok := r.requireUser(ctx, chatID)
	if !ok {
		return
	}

	reply, err := r.ai.Chat(ctx, u, text)
	if err != nil {
		r.log.Error("ai chat failed", zap.Error(err), zap.Int64("user", u.ID))
		r.sendText(chatID, "The assistant is unavailable right now, please try again later.")
		return
	}

	if reply.Text != "" {
		r.sendText(chatID, reply.Text)
	}
	for _, call := range reply.ToolCalls {
		r.sendText(chatID, r.dispatchToolCall(ctx, u, call))
	}
}

// dispatchToolCall maps one model function call onto the reminder
// manager and renders a user-visible outcome. The acting user id always
// comes from the session, never from the model.
func (r *Router) dispatchToolCall(ctx context.Context, u *domain.User, call openai.ToolCall) string {
	switch call.Function.Name {
	case ai.FnCreateNotification:
		var args ai.CreateArgs
		if err := ai.ParseArgs(call, &args); err != nil {
			r.log.Warn("bad tool call", zap.Error(err))
			return "I could not understand that reminder request."
		}
		n, err := r.rem.CreateRegular(ctx, u.ID, args.Time, args.Message)
		if err != nil {
			return rejectionText(err)
		}
		return fmt.Sprintf("Reminder #%d set for %s: %s",
			n.ID, domain.LocalizeISO(n.DueAtUTC, u.Timezone), n.Message)

	case ai.FnListNotifications:
		items, err := r.rem.ListRegular(ctx, u.ID)
		if err != nil {
			r.log.Error("list reminders failed", zap.Error(err), zap.Int64("user", u.ID))
			return "Could not read your reminders."
		}
		return formatReminders(items)

	case ai.FnUpdateNotification:
		var args ai.UpdateArgs
		if err := ai.ParseArgs(call, &args); err != nil {
			r.log.Warn("bad tool call", zap.Error(err))
			return "I could not understand that update request."
		}
		n, err := r.rem.UpdateRegular(ctx, u.ID, args.NotificationID, args.Message, args.Time)
		if err != nil {
			return rejectionText(err)
		}
		return fmt.Sprintf("Reminder #%d is now set for %s: %s",
			n.ID, domain.LocalizeISO(n.DueAtUTC, u.Timezone), n.Message)

	case ai.FnDeleteNotification:
		var args ai.DeleteArgs
		if err := ai.ParseArgs(call, &args); err != nil {
			r.log.Warn("bad tool call", zap.Error(err))
			return "I could not understand that delete request."
		}
		ok, err := r.rem.DeleteRegular(ctx, u.ID, args.NotificationID)
		if err != nil {
			r.log.Error("delete reminder failed", zap.Error(err), zap.Int64("user", u.ID))
			return "Could not delete that reminder."
		}
		if !ok {
			return fmt.Sprintf("Reminder #%d was not found.", args.NotificationID)
		}
		return fmt.Sprintf("Reminder #%d deleted.", args.NotificationID)

	default:
		r.log.Warn("unknown tool call", zap.String("name", call.Function.Name))
		return "I tried an action I do not support."
	}
}

// rejectionText turns schedule-time errors into clear user feedback.
func rejectionText(err error) string {
	switch {
	case errors.Is(err, domain.ErrPastTime):
		return "That time is already in the past — pick a future time."
	case errors.Is(err, domain.ErrUnparsableTime):
		return "I could not parse that time. Use a format like 2025-06-01T09:00:00."
	case errors.Is(err, domain.ErrNotFound):
		return "I could not find that reminder."
	default:
		return "Could not schedule the reminder, please try again."
	}
}
