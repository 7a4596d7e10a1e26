package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
	"github.com/Manabreaker/FitAI-tg/internal/scheduler"
	"github.com/Manabreaker/FitAI-tg/internal/store"
)

// Notifier is the minimal send primitive the manager needs.
// telegram.Router implements it.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// Motivator produces the inactivity nudge text. The AI client implements
// it; the manager never talks to the model directly.
type Motivator interface {
	Motivate(ctx context.Context, user *domain.User) (string, error)
}

// Item is a reminder as presented to the user (and to the model): the due
// instant is rendered in the owner's local timezone.
type Item struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Manager orchestrates the lifecycle of reminders: it keeps the durable
// notification rows and the in-memory scheduler jobs consistent. The rows
// are the source of truth; job handles are pure cancellation tokens.
type Manager struct {
	repo     store.Repo
	sched    *scheduler.Scheduler
	notifier Notifier
	motivate Motivator
	log      *zap.Logger
	grace    time.Duration
	window   time.Duration // inactivity watchdog window

	mu       sync.Mutex
	jobs     map[int64]scheduler.Handle // notification id -> live delivery job
	watchdog map[int64]scheduler.Handle // user id -> live watchdog job
}

// New creates a Manager. window is the inactivity watchdog interval and
// grace the misfire tolerance applied to every scheduled job.
func New(repo store.Repo, sched *scheduler.Scheduler, notifier Notifier, motivate Motivator,
	log *zap.Logger, grace, window time.Duration) *Manager {
	return &Manager{
		repo:     repo,
		sched:    sched,
		notifier: notifier,
		motivate: motivate,
		log:      log,
		grace:    grace,
		window:   window,
		jobs:     make(map[int64]scheduler.Handle),
		watchdog: make(map[int64]scheduler.Handle),
	}
}

// SetNotifier installs the send primitive after construction. The
// telegram router both depends on the manager and implements Notifier,
// so the two are tied together in this order during wiring.
func (m *Manager) SetNotifier(n Notifier) { m.notifier = n }

// CreateRegular resolves rawTime against the user's timezone, persists a
// regular notification and arms its delivery job. Resolution and
// past-time failures surface before anything is written.
func (m *Manager) CreateRegular(ctx context.Context, userID int64, rawTime, message string) (*domain.Notification, error) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	due, err := domain.ResolveTime(rawTime, user.Timezone)
	if err != nil {
		return nil, err
	}
	return m.CreateRegularAt(ctx, userID, due, message)
}

// CreateRegularAt is CreateRegular for callers that already hold an
// absolute instant, e.g. the "remind me in N minutes" chat shortcut.
func (m *Manager) CreateRegularAt(ctx context.Context, userID int64, due time.Time, message string) (*domain.Notification, error) {
	due = due.UTC()
	if err := domain.EnsureFuture(due, time.Now().UTC()); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		UserID:   userID,
		DueAtUTC: due,
		Message:  message,
		Kind:     domain.KindRegular,
	}
	if _, err := m.repo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	m.armDelivery(n)
	m.log.Info("reminder scheduled",
		zap.Int64("user", userID),
		zap.Int64("notification", n.ID),
		zap.Time("due", due),
	)
	return n, nil
}

// UpdateRegular patches message and/or time of an existing reminder. A
// time change re-resolves the input and replaces the scheduled job; the
// previous job is cancelled best-effort.
func (m *Manager) UpdateRegular(ctx context.Context, userID, notifID int64, newMessage, newTime *string) (*domain.Notification, error) {
	if _, err := m.repo.GetNotification(ctx, notifID, userID); err != nil {
		return nil, err
	}

	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch := store.NotificationPatch{Message: newMessage}
	if newTime != nil {
		due, err := domain.ResolveTime(*newTime, user.Timezone)
		if err != nil {
			return nil, err
		}
		if err := domain.EnsureFuture(due, time.Now().UTC()); err != nil {
			return nil, err
		}
		patch.DueAtUTC = &due
	}

	ok, err := m.repo.UpdateNotification(ctx, notifID, userID, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	n, err := m.repo.GetNotification(ctx, notifID, userID)
	if err != nil {
		return nil, err
	}

	if patch.DueAtUTC != nil {
		m.cancelDelivery(notifID)
		m.armDelivery(n)
	}
	m.log.Info("reminder updated",
		zap.Int64("user", userID),
		zap.Int64("notification", notifID),
		zap.Bool("rescheduled", patch.DueAtUTC != nil),
	)
	return n, nil
}

// DeleteRegular removes a reminder row and cancels its live job. A false
// result means the row was absent or owned by someone else; cancellation
// is best-effort and a concurrently firing job wins.
func (m *Manager) DeleteRegular(ctx context.Context, userID, notifID int64) (bool, error) {
	ok, err := m.repo.DeleteNotification(ctx, notifID, userID)
	if err != nil {
		return false, err
	}
	m.cancelDelivery(notifID)
	return ok, nil
}

// ListRegular returns the user's regular reminders with times rendered in
// the user's local timezone.
func (m *Manager) ListRegular(ctx context.Context, userID int64) ([]Item, error) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := m.repo.ListNotifications(ctx, userID, domain.KindRegular)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, n := range rows {
		items = append(items, Item{
			ID:      n.ID,
			Message: n.Message,
			Time:    domain.LocalizeISO(n.DueAtUTC, user.Timezone),
		})
	}
	return items, nil
}

// ArmInactivity replaces the user's single inactivity record with
// due = now + window and swaps the corresponding job. Calling it on every
// inbound message realizes a debounce: only the most recent activity
// determines when the watchdog fires.
func (m *Manager) ArmInactivity(ctx context.Context, userID int64) error {
	due := time.Now().UTC().Add(m.window)
	id, err := m.repo.ReplaceInactivity(ctx, userID, due)
	if err != nil {
		return fmt.Errorf("replace inactivity: %w", err)
	}

	h := m.sched.Schedule(due, m.grace, func() { m.fireInactivity(id, userID) })

	m.mu.Lock()
	prev, had := m.watchdog[userID]
	m.watchdog[userID] = h
	m.mu.Unlock()
	if had {
		m.sched.Cancel(prev)
	}

	m.log.Debug("inactivity watchdog re-armed",
		zap.Int64("user", userID),
		zap.Time("due", due),
	)
	return nil
}

// Recover re-arms jobs for every stored notification whose due instant is
// still in the future. Rows already due are treated as missed, not fired
// retroactively. Must run before live traffic is accepted.
func (m *Manager) Recover(ctx context.Context) error {
	rows, err := m.repo.ListAllNotifications(ctx)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	now := time.Now().UTC()
	restored, skipped := 0, 0
	for _, n := range rows {
		if !n.DueAtUTC.After(now) {
			skipped++
			continue
		}
		switch n.Kind {
		case domain.KindInactivity:
			id, userID := n.ID, n.UserID
			h := m.sched.Schedule(n.DueAtUTC, m.grace, func() { m.fireInactivity(id, userID) })
			m.mu.Lock()
			m.watchdog[userID] = h
			m.mu.Unlock()
		default:
			m.armDelivery(&n)
		}
		restored++
	}

	m.log.Info("notification recovery finished",
		zap.Int("restored", restored),
		zap.Int("skipped_past", skipped),
	)
	return nil
}

// Stop cancels the underlying scheduler loop.
func (m *Manager) Stop() {
	m.sched.Stop()
}

// --- job plumbing ---

func (m *Manager) armDelivery(n *domain.Notification) {
	id, userID := n.ID, n.UserID
	h := m.sched.Schedule(n.DueAtUTC, m.grace, func() { m.fireDelivery(id, userID) })
	if h.Zero() {
		return
	}
	m.mu.Lock()
	m.jobs[id] = h
	m.mu.Unlock()
}

func (m *Manager) cancelDelivery(notifID int64) {
	m.mu.Lock()
	h, ok := m.jobs[notifID]
	if ok {
		delete(m.jobs, notifID)
	}
	m.mu.Unlock()
	if ok {
		m.sched.Cancel(h)
	}
}

// fireDelivery runs as a scheduler callback. It re-reads the row so a
// delete that landed after scheduling suppresses the send, and removes
// the spent row afterwards so it can neither be listed nor recovered.
func (m *Manager) fireDelivery(notifID, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m.mu.Lock()
	delete(m.jobs, notifID)
	m.mu.Unlock()

	n, err := m.repo.GetNotification(ctx, notifID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.log.Debug("notification vanished before delivery", zap.Int64("notification", notifID))
			return
		}
		m.log.Error("read notification failed", zap.Error(err), zap.Int64("notification", notifID))
		return
	}
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		m.log.Error("read user failed", zap.Error(err), zap.Int64("user", userID))
		return
	}

	if err := m.notifier.Notify(user.ChatID, n.Message); err != nil {
		// Delivery is best-effort: log and move on, no retry.
		m.log.Error("delivery failed",
			zap.Error(err),
			zap.Int64("user", userID),
			zap.Int64("notification", notifID),
		)
		return
	}

	if _, err := m.repo.DeleteNotification(ctx, notifID, userID); err != nil {
		m.log.Warn("cleanup of delivered notification failed", zap.Error(err))
	}
	m.log.Info("reminder delivered",
		zap.Int64("user", userID),
		zap.Int64("notification", notifID),
	)
}

// fireInactivity runs when the watchdog window elapses without inbound
// activity: it asks the model for a motivational nudge and sends it.
func (m *Manager) fireInactivity(notifID, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m.mu.Lock()
	delete(m.watchdog, userID)
	m.mu.Unlock()

	if _, err := m.repo.GetNotification(ctx, notifID, userID); err != nil {
		// Re-armed or deleted since this job was scheduled.
		m.log.Debug("stale inactivity job skipped", zap.Int64("user", userID))
		return
	}
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		m.log.Error("read user failed", zap.Error(err), zap.Int64("user", userID))
		return
	}

	text, err := m.motivate.Motivate(ctx, user)
	if err != nil {
		m.log.Error("motivation generation failed", zap.Error(err), zap.Int64("user", userID))
		return
	}
	if err := m.notifier.Notify(user.ChatID, text); err != nil {
		m.log.Error("inactivity delivery failed", zap.Error(err), zap.Int64("user", userID))
		return
	}
	if _, err := m.repo.DeleteNotification(ctx, notifID, userID); err != nil {
		m.log.Warn("cleanup of fired watchdog failed", zap.Error(err))
	}
}
