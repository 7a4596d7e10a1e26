package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

// Registration steps, advanced one inbound message (or button press) at
// a time. Text answers fill name/age/weight/height; the rest come from
// inline keyboards.
type regStep int

const (
	stepName regStep = iota
	stepAge
	stepSex
	stepWeight
	stepHeight
	stepGoal
	stepSkill
	stepTimezone
)

type regForm struct {
	step regStep
	user domain.User
}

func (r *Router) formInProgress(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.forms[chatID]
	return ok
}

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	r.mu.Lock()
	r.forms[chatID] = &regForm{step: stepName, user: domain.User{ChatID: chatID}}
	r.mu.Unlock()
	r.sendText(chatID, "Welcome! What is your name?")
}

// advanceForm consumes one free-text answer for the current step.
func (r *Router) advanceForm(ctx context.Context, chatID int64, text string) {
	r.mu.Lock()
	form, ok := r.forms[chatID]
	r.mu.Unlock()
	if !ok {
		return
	}

	switch form.step {
	case stepName:
		if text == "" {
			r.sendText(chatID, "Please enter your name.")
			return
		}
		form.user.Name = text
		form.step = stepAge
		r.sendText(chatID, "Your age (a number):")

	case stepAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < 1 || age > 120 {
			r.sendText(chatID, "Please enter a valid age (1-120).")
			return
		}
		form.user.Age = age
		form.step = stepSex
		msg := tgbotapi.NewMessage(chatID, "Your sex:")
		msg.ReplyMarkup = sexKeyboard()
		_, _ = r.bot.Send(msg)

	case stepWeight:
		w, err := strconv.ParseFloat(text, 64)
		if err != nil || w <= 0 || w > 500 {
			r.sendText(chatID, "Please enter a valid weight in kg (0-500).")
			return
		}
		form.user.Weight = w
		form.step = stepHeight
		r.sendText(chatID, "Your height (cm):")

	case stepHeight:
		h, err := strconv.ParseFloat(text, 64)
		if err != nil || h <= 0 || h > 300 {
			r.sendText(chatID, "Please enter a valid height in cm (0-300).")
			return
		}
		form.user.Height = h
		form.step = stepGoal
		msg := tgbotapi.NewMessage(chatID, "What is your goal?")
		msg.ReplyMarkup = goalKeyboard()
		_, _ = r.bot.Send(msg)

	default:
		// Waiting for a button press, not text.
		r.sendText(chatID, "Please use the buttons above.")
	}
}

// handleFormCallback consumes one inline-button answer.
func (r *Router) handleFormCallback(ctx context.Context, chatID int64, cbID, data string) {
	r.answerCallback(cbID)

	r.mu.Lock()
	form, ok := r.forms[chatID]
	r.mu.Unlock()
	if !ok {
		return
	}

	value := data[strings.Index(data, "_")+1:]

	switch {
	case form.step == stepSex && strings.HasPrefix(data, "sex_"):
		form.user.Sex = value
		form.step = stepWeight
		r.sendText(chatID, "Your weight (kg):")

	case form.step == stepGoal && strings.HasPrefix(data, "goal_"):
		form.user.Goal = value
		form.step = stepSkill
		msg := tgbotapi.NewMessage(chatID, "Your training level?")
		msg.ReplyMarkup = skillKeyboard()
		_, _ = r.bot.Send(msg)

	case form.step == stepSkill && strings.HasPrefix(data, "skill_"):
		form.user.Skill = value
		form.step = stepTimezone
		msg := tgbotapi.NewMessage(chatID, "Pick your timezone:")
		msg.ReplyMarkup = tzKeyboard()
		_, _ = r.bot.Send(msg)

	case form.step == stepTimezone && strings.HasPrefix(data, "tz_"):
		tz, err := domain.ValidateTZ(value)
		if err != nil {
			r.sendText(chatID, "Unknown timezone, please pick one of the buttons.")
			return
		}
		form.user.Timezone = tz
		r.finishForm(ctx, chatID, form)

	default:
		// Button pressed out of order; ignore.
	}
}

func (r *Router) finishForm(ctx context.Context, chatID int64, form *regForm) {
	if err := r.repo.SaveUser(ctx, &form.user); err != nil {
		r.log.Error("save user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save your profile, please try /start again.")
		return
	}

	r.mu.Lock()
	delete(r.forms, chatID)
	r.mu.Unlock()

	r.sendText(chatID, registrationDone(&form.user))
}
