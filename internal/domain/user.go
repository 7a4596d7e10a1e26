package domain

import "time"

// User holds a registered profile. The profile fields feed the FitAI
// system prompt; Timezone is the interpretation frame for offset-naive
// reminder times.
type User struct {
	ID        int64
	ChatID    int64 // telegram chat id, unique
	Name      string
	Age       int
	Sex       string
	Weight    float64 // kg
	Height    float64 // cm
	Goal      string
	Skill     string
	Timezone  string // IANA name; empty means UTC
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one persisted chat-history entry for a user.
type Message struct {
	ID        int64
	UserID    int64
	Role      string // system / user / assistant
	Content   string
	CreatedAt time.Time
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
