package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepo, chatID int64) *domain.User {
	t.Helper()
	u := &domain.User{
		ChatID:   chatID,
		Name:     "Alex",
		Age:      30,
		Sex:      "male",
		Weight:   80,
		Height:   180,
		Goal:     "keep fit",
		Skill:    "beginner",
		Timezone: "Europe/Moscow",
	}
	require.NoError(t, repo.SaveUser(context.Background(), u))
	require.NotZero(t, u.ID)
	return u
}

func TestSaveUserUpsert(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := newTestUser(t, repo, 100)

	u.Goal = "lose weight"
	u.Timezone = "Asia/Almaty"
	require.NoError(t, repo.SaveUser(ctx, u))

	got, err := repo.GetUserByChatID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "lose weight", got.Goal)
	assert.Equal(t, "Asia/Almaty", got.Timezone)

	byID, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), byID.ChatID)
}

func TestGetUserNotFound(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetUserByChatID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessagesOrderedOldestFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, 1)

	for _, content := range []string{"hi", "hello", "bye"} {
		require.NoError(t, repo.AppendMessage(ctx, &domain.Message{
			UserID:  u.ID,
			Role:    domain.RoleUser,
			Content: content,
		}))
	}

	msgs, err := repo.ListMessages(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "bye", msgs[2].Content)
}

func TestNotificationCRUDScopedByUser(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, 1)
	other := newTestUser(t, repo, 2)

	due := time.Date(2030, time.June, 1, 6, 0, 0, 0, time.UTC)
	id, err := repo.CreateNotification(ctx, &domain.Notification{
		UserID:   owner.ID,
		DueAtUTC: due,
		Message:  "Train",
		Kind:     domain.KindRegular,
	})
	require.NoError(t, err)

	// owner sees it, the other user does not
	got, err := repo.GetNotification(ctx, id, owner.ID)
	require.NoError(t, err)
	assert.True(t, got.DueAtUTC.Equal(due))
	assert.Equal(t, time.UTC, got.DueAtUTC.Location())

	_, err = repo.GetNotification(ctx, id, other.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// cross-user update and delete are no-ops
	msg := "hijack"
	ok, err := repo.UpdateNotification(ctx, id, other.ID, NotificationPatch{Message: &msg})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteNotification(ctx, id, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// owner updates and deletes
	newDue := due.Add(time.Hour)
	ok, err = repo.UpdateNotification(ctx, id, owner.ID, NotificationPatch{DueAtUTC: &newDue})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetNotification(ctx, id, owner.ID)
	require.NoError(t, err)
	assert.True(t, got.DueAtUTC.Equal(newDue))
	assert.Equal(t, "Train", got.Message)

	ok, err = repo.DeleteNotification(ctx, id, owner.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteNotification(ctx, id, owner.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete reports not found")
}

func TestReplaceInactivityKeepsSingleRow(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, 1)

	first := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	second := first.Add(time.Hour)

	_, err := repo.ReplaceInactivity(ctx, u.ID, first)
	require.NoError(t, err)
	id2, err := repo.ReplaceInactivity(ctx, u.ID, second)
	require.NoError(t, err)

	rows, err := repo.ListNotifications(ctx, u.ID, domain.KindInactivity)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id2, rows[0].ID)
	assert.True(t, rows[0].DueAtUTC.Equal(second))
	assert.Equal(t, domain.InactivityMarker, rows[0].Message)
}

func TestListAllNotificationsSpansUsers(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	a := newTestUser(t, repo, 1)
	b := newTestUser(t, repo, 2)

	due := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	_, err := repo.CreateNotification(ctx, &domain.Notification{
		UserID: a.ID, DueAtUTC: due, Message: "a", Kind: domain.KindRegular,
	})
	require.NoError(t, err)
	_, err = repo.ReplaceInactivity(ctx, b.ID, due)
	require.NoError(t, err)

	all, err := repo.ListAllNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
