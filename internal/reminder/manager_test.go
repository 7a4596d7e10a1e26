package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
	"github.com/Manabreaker/FitAI-tg/internal/scheduler"
	"github.com/Manabreaker/FitAI-tg/internal/store"
)

type sent struct {
	chatID int64
	text   string
}

type captureNotifier struct {
	ch chan sent
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan sent, 16)}
}

func (c *captureNotifier) Notify(chatID int64, text string) error {
	c.ch <- sent{chatID: chatID, text: text}
	return nil
}

func (c *captureNotifier) wait(t *testing.T) sent {
	t.Helper()
	select {
	case s := <-c.ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no notification delivered in time")
		return sent{}
	}
}

func (c *captureNotifier) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case s := <-c.ch:
		t.Fatalf("unexpected notification: %+v", s)
	case <-time.After(d):
	}
}

type staticMotivator struct{ text string }

func (s staticMotivator) Motivate(context.Context, *domain.User) (string, error) {
	return s.text, nil
}

type testEnv struct {
	repo     *store.SQLiteRepo
	mgr      *Manager
	sched    *scheduler.Scheduler
	notifier *captureNotifier
	user     *domain.User
}

func newTestEnv(t *testing.T, window time.Duration) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "fitai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	u := &domain.User{
		ChatID:   4242,
		Name:     "Alex",
		Age:      30,
		Sex:      "male",
		Timezone: "Europe/Moscow",
	}
	require.NoError(t, repo.SaveUser(ctx, u))

	sched := scheduler.New(zap.NewNop())
	notifier := newCaptureNotifier()
	mgr := New(repo, sched, notifier, staticMotivator{text: "keep going!"},
		zap.NewNop(), 5*time.Second, window)
	t.Cleanup(mgr.Stop)

	return &testEnv{repo: repo, mgr: mgr, sched: sched, notifier: notifier, user: u}
}

func soon(d time.Duration) string {
	return time.Now().UTC().Add(d).Format(time.RFC3339Nano)
}

func TestCreateRegularResolvesNaiveTimeInUserZone(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	n, err := env.mgr.CreateRegular(context.Background(), env.user.ID, "2030-06-01T09:00:00", "Train")
	require.NoError(t, err)

	// 09:00 Moscow == 06:00 UTC
	want := time.Date(2030, time.June, 1, 6, 0, 0, 0, time.UTC)
	assert.True(t, n.DueAtUTC.Equal(want), "got %s", n.DueAtUTC)

	stored, err := env.repo.GetNotification(context.Background(), n.ID, env.user.ID)
	require.NoError(t, err)
	assert.True(t, stored.DueAtUTC.Equal(want))
	assert.Equal(t, 1, env.sched.Pending())
}

func TestCreateRegularDeliversExactlyOnce(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	_, err := env.mgr.CreateRegular(context.Background(), env.user.ID, soon(300*time.Millisecond), "Train")
	require.NoError(t, err)

	got := env.notifier.wait(t)
	assert.Equal(t, env.user.ChatID, got.chatID)
	assert.Equal(t, "Train", got.text)
	env.notifier.expectSilence(t, 300*time.Millisecond)
}

func TestCreateRegularRejectsPastTime(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	yesterday := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	_, err := env.mgr.CreateRegular(context.Background(), env.user.ID, yesterday, "too late")
	require.ErrorIs(t, err, domain.ErrPastTime)

	// nothing persisted, nothing scheduled
	rows, err := env.repo.ListNotifications(context.Background(), env.user.ID, domain.KindRegular)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, env.sched.Pending())
}

func TestCreateRegularRejectsGarbageTime(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	_, err := env.mgr.CreateRegular(context.Background(), env.user.ID, "whenever", "x")
	require.ErrorIs(t, err, domain.ErrUnparsableTime)
}

func TestUpdateRegularReschedules(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	n, err := env.mgr.CreateRegular(ctx, env.user.ID, soon(time.Hour), "old text")
	require.NoError(t, err)

	newMsg := "new text"
	farTime := soon(2 * time.Hour)
	updated, err := env.mgr.UpdateRegular(ctx, env.user.ID, n.ID, &newMsg, &farTime)
	require.NoError(t, err)
	assert.Equal(t, "new text", updated.Message)

	// old job was cancelled, fresh one armed; the new due instant is far
	// enough out that the count cannot race the delivery
	assert.Equal(t, 1, env.sched.Pending())

	nearTime := soon(300 * time.Millisecond)
	_, err = env.mgr.UpdateRegular(ctx, env.user.ID, n.ID, nil, &nearTime)
	require.NoError(t, err)

	got := env.notifier.wait(t)
	assert.Equal(t, "new text", got.text)
	env.notifier.expectSilence(t, 300*time.Millisecond)
}

func TestUpdateRegularNotFound(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	msg := "x"
	_, err := env.mgr.UpdateRegular(context.Background(), env.user.ID, 999, &msg, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRegularCancelsJob(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	n, err := env.mgr.CreateRegular(ctx, env.user.ID, soon(500*time.Millisecond), "never sent")
	require.NoError(t, err)

	ok, err := env.mgr.DeleteRegular(ctx, env.user.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, env.sched.Pending())

	env.notifier.expectSilence(t, time.Second)
}

func TestDeleteAfterFiringSendsNoDuplicate(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	n, err := env.mgr.CreateRegular(ctx, env.user.ID, soon(200*time.Millisecond), "once")
	require.NoError(t, err)

	env.notifier.wait(t)

	// The job has fired; deleting now either reports not-found or removes
	// the stale row. Either way no second notification goes out.
	_, err = env.mgr.DeleteRegular(ctx, env.user.ID, n.ID)
	require.NoError(t, err)
	env.notifier.expectSilence(t, 400*time.Millisecond)
}

func TestListRegularUsesLocalTimezone(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	_, err := env.mgr.CreateRegular(ctx, env.user.ID, "2030-06-01T09:00:00", "Train")
	require.NoError(t, err)

	items, err := env.mgr.ListRegular(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Train", items[0].Message)
	assert.Equal(t, "2030-06-01T09:00:00+03:00", items[0].Time)
}

func TestArmInactivityDebounces(t *testing.T) {
	env := newTestEnv(t, 7*24*time.Hour)
	ctx := context.Background()

	require.NoError(t, env.mgr.ArmInactivity(ctx, env.user.ID))
	first, err := env.repo.ListNotifications(ctx, env.user.ID, domain.KindInactivity)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, env.mgr.ArmInactivity(ctx, env.user.ID))

	second, err := env.repo.ListNotifications(ctx, env.user.ID, domain.KindInactivity)
	require.NoError(t, err)
	require.Len(t, second, 1, "re-arming must not accumulate rows")
	assert.True(t, second[0].DueAtUTC.After(first[0].DueAtUTC))

	// the superseded job was cancelled: one live watchdog remains
	assert.Equal(t, 1, env.sched.Pending())
}

func TestInactivityFiresMotivationalNudge(t *testing.T) {
	env := newTestEnv(t, 300*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, env.mgr.ArmInactivity(ctx, env.user.ID))

	got := env.notifier.wait(t)
	assert.Equal(t, env.user.ChatID, got.chatID)
	assert.Equal(t, "keep going!", got.text)
}

func TestRecoverSkipsPastAndArmsFuture(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	// simulate rows left behind by a previous process
	_, err := env.repo.CreateNotification(ctx, &domain.Notification{
		UserID: env.user.ID, DueAtUTC: now.Add(-time.Hour), Message: "missed", Kind: domain.KindRegular,
	})
	require.NoError(t, err)
	_, err = env.repo.CreateNotification(ctx, &domain.Notification{
		UserID: env.user.ID, DueAtUTC: now.Add(time.Hour), Message: "future", Kind: domain.KindRegular,
	})
	require.NoError(t, err)
	_, err = env.repo.ReplaceInactivity(ctx, env.user.ID, now.Add(2*time.Hour))
	require.NoError(t, err)

	require.NoError(t, env.mgr.Recover(ctx))

	// exactly one job per future record, none for the missed one
	assert.Equal(t, 2, env.sched.Pending())
	env.notifier.expectSilence(t, 300*time.Millisecond)
}

func TestRecoveredReminderDelivers(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	_, err := env.repo.CreateNotification(ctx, &domain.Notification{
		UserID:   env.user.ID,
		DueAtUTC: time.Now().UTC().Add(2 * time.Second),
		Message:  "survived restart",
		Kind:     domain.KindRegular,
	})
	require.NoError(t, err)

	require.NoError(t, env.mgr.Recover(ctx))

	got := env.notifier.wait(t)
	assert.Equal(t, "survived restart", got.text)
}

func TestCreateRegularUnknownUser(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	_, err := env.mgr.CreateRegular(context.Background(), 999, soon(time.Hour), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
