package ai

import (
	"fmt"
	"time"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

// systemPrompt renders the FitAI persona with the user's profile and the
// current UTC instant, so the model can resolve phrases like "tomorrow
// morning" into concrete times for its function calls.
func systemPrompt(u *domain.User) string {
	profile := fmt.Sprintf(
		"Name: %s, Age: %d, Sex: %s, Weight: %.1f kg, Height: %.1f cm, "+
			"Goal: %s, Level: %s, Timezone: %s, Current time (UTC): %s",
		u.Name, u.Age, u.Sex, u.Weight, u.Height,
		u.Goal, u.Skill, u.Timezone,
		time.Now().UTC().Format(time.RFC3339),
	)
	return "You are FitAI, a professional fitness coach and nutritionist. " +
		"Answer briefly and in a structured way.\n\n" +
		"User profile: " + profile + "\n\n" +
		"When the user asks for a reminder, call one of the notification " +
		"functions. Times without an explicit UTC offset are interpreted in " +
		"the user's timezone."
}
