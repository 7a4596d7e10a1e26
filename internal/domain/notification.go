package domain

import "time"

// Kind discriminates user-requested reminders from the system-driven
// inactivity watchdog.
type Kind string

const (
	KindRegular    Kind = "regular"
	KindInactivity Kind = "inactivity"
)

// Notification is the durable record of a scheduled delivery.
// DueAtUTC is always timezone-aware UTC; the store never persists a
// wall-clock instant without a zone.
type Notification struct {
	ID        int64
	UserID    int64
	DueAtUTC  time.Time
	Message   string
	Kind      Kind
	CreatedAt time.Time
}

// InactivityMarker is the message stored on watchdog records. The real
// text is generated at fire time by the AI collaborator.
const InactivityMarker = "INACTIVITY_REMINDER"
