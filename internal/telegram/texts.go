package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
	"github.com/Manabreaker/FitAI-tg/internal/reminder"
)

const (
	menuText = "FitAI menu:\n" +
		"/meal_plan — build a meal plan\n" +
		"/workout_plan — build a workout program\n" +
		"/reminders — list your reminders\n" +
		"/chat <your question> — talk to FitAI\n"

	mealPlanPrompt = "Build a meal plan for me, taking into account all my data: " +
		"age, sex, weight, height, level and goal."
	workoutPlanPrompt = "Build a workout program for me, " +
		"taking into account all my parameters and my goal."
)

func registrationDone(u *domain.User) string {
	return fmt.Sprintf(
		"Registration complete!\n"+
			"Name: %s\n"+
			"Age: %d\n"+
			"Sex: %s\n"+
			"Weight: %.1f kg\n"+
			"Height: %.1f cm\n"+
			"Goal: %s\n"+
			"Level: %s\n"+
			"Timezone: %s\n\n"+
			"Now you can use /menu",
		u.Name, u.Age, u.Sex, u.Weight, u.Height, u.Goal, u.Skill, u.Timezone,
	)
}

func formatReminders(items []reminder.Item) string {
	if len(items) == 0 {
		return "You have no scheduled reminders."
	}
	var b strings.Builder
	b.WriteString("Your reminders:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "• #%d at %s — %s\n", it.ID, it.Time, it.Message)
	}
	return b.String()
}

// Inline keyboards for the registration flow.

func sexKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Male", "sex_male"),
			tgbotapi.NewInlineKeyboardButtonData("Female", "sex_female"),
		),
	)
}

func goalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Lose weight", "goal_lose weight"),
			tgbotapi.NewInlineKeyboardButtonData("Gain muscle", "goal_gain muscle"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Stay in shape", "goal_stay in shape"),
		),
	)
}

func skillKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Beginner", "skill_beginner"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Intermediate", "skill_intermediate"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Advanced", "skill_advanced"),
		),
	)
}

func tzKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz_UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz_Europe/Moscow"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Almaty", "tz_Asia/Almaty"),
		),
	)
}
