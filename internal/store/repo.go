package store

import (
	"context"
	"time"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

// NotificationPatch carries optional notification fields for partial
// updates; nil means "leave unchanged".
type NotificationPatch struct {
	Message  *string
	DueAtUTC *time.Time
}

// Repo defines storage operations for users, chat history and
// notifications. All notification reads and writes are scoped by the
// acting user's id.
type Repo interface {
	SaveUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error)

	AppendMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, userID int64) ([]domain.Message, error)

	CreateNotification(ctx context.Context, n *domain.Notification) (int64, error)
	GetNotification(ctx context.Context, id, userID int64) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID int64, kind domain.Kind) ([]domain.Notification, error)
	ListAllNotifications(ctx context.Context) ([]domain.Notification, error)
	UpdateNotification(ctx context.Context, id, userID int64, patch NotificationPatch) (bool, error)
	DeleteNotification(ctx context.Context, id, userID int64) (bool, error)
	ReplaceInactivity(ctx context.Context, userID int64, dueAtUTC time.Time) (int64, error)

	Close() error
}
