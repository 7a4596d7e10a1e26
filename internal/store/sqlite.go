package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- users ---

// SaveUser inserts or updates a user's profile keyed by chat_id and
// backfills u.ID on insert.
func (r *SQLiteRepo) SaveUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	now := time.Now().UTC().Unix()
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			chat_id, name, age, sex, weight, height, goal, skill, timezone,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name       = excluded.name,
			age        = excluded.age,
			sex        = excluded.sex,
			weight     = excluded.weight,
			height     = excluded.height,
			goal       = excluded.goal,
			skill      = excluded.skill,
			timezone   = excluded.timezone,
			updated_at = excluded.updated_at`,
		u.ChatID, u.Name, u.Age, u.Sex, u.Weight, u.Height, u.Goal, u.Skill, u.Timezone,
		created, now,
	)
	if err != nil {
		return err
	}

	row := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE chat_id = ?`, u.ChatID)
	return row.Scan(&u.ID)
}

const userColumns = `id, chat_id, name, age, sex, weight, height, goal, skill, timezone, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u                  domain.User
		createdAt, updated int64
	)
	if err := row.Scan(
		&u.ID, &u.ChatID, &u.Name, &u.Age, &u.Sex, &u.Weight, &u.Height,
		&u.Goal, &u.Skill, &u.Timezone, &createdAt, &updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

// GetUser returns a user by internal id.
func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByChatID returns a user by telegram chat id.
func (r *SQLiteRepo) GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	return scanUser(row)
}

// --- messages ---

// AppendMessage persists one chat-history entry.
func (r *SQLiteRepo) AppendMessage(ctx context.Context, m *domain.Message) error {
	if m == nil {
		return errors.New("nil message")
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		m.UserID, m.Role, m.Content, created.UTC().Unix(),
	)
	if err != nil {
		return err
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// ListMessages returns a user's chat history, oldest first.
func (r *SQLiteRepo) ListMessages(ctx context.Context, userID int64) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Message
	for rows.Next() {
		var (
			m       domain.Message
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, m)
	}
	return res, rows.Err()
}

// --- notifications ---

const notifColumns = `id, user_id, due_at_utc, message, kind, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*domain.Notification, error) {
	var (
		n            domain.Notification
		due, created int64
		kind         string
	)
	if err := row.Scan(&n.ID, &n.UserID, &due, &n.Message, &kind, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	n.DueAtUTC = time.Unix(due, 0).UTC()
	n.Kind = domain.Kind(kind)
	n.CreatedAt = time.Unix(created, 0).UTC()
	return &n, nil
}

// CreateNotification inserts a notification row and returns its id.
func (r *SQLiteRepo) CreateNotification(ctx context.Context, n *domain.Notification) (int64, error) {
	if n == nil {
		return 0, errors.New("nil notification")
	}
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, due_at_utc, message, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.UserID, n.DueAtUTC.UTC().Unix(), n.Message, string(n.Kind), created.UTC().Unix(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

// GetNotification returns a notification owned by userID, or
// domain.ErrNotFound.
func (r *SQLiteRepo) GetNotification(ctx context.Context, id, userID int64) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notifColumns+`
		FROM notifications
		WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	return scanNotification(row)
}

// ListNotifications returns a user's notifications of the given kind,
// or of all kinds when kind is empty.
func (r *SQLiteRepo) ListNotifications(ctx context.Context, userID int64, kind domain.Kind) ([]domain.Notification, error) {
	query := `SELECT ` + notifColumns + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// ListAllNotifications returns every stored notification across all
// users. Used by warm-restart recovery.
func (r *SQLiteRepo) ListAllNotifications(ctx context.Context) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notifColumns+` FROM notifications ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *n)
	}
	return res, rows.Err()
}

// UpdateNotification applies the patch to a row owned by userID.
// Returns false when the row does not exist or belongs to another user.
func (r *SQLiteRepo) UpdateNotification(ctx context.Context, id, userID int64, patch NotificationPatch) (bool, error) {
	set := ""
	var args []any
	if patch.Message != nil {
		set = "message = ?"
		args = append(args, *patch.Message)
	}
	if patch.DueAtUTC != nil {
		if set != "" {
			set += ", "
		}
		set += "due_at_utc = ?"
		args = append(args, patch.DueAtUTC.UTC().Unix())
	}
	if set == "" {
		// Nothing to change; report whether the row exists at all.
		_, err := r.GetNotification(ctx, id, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}

	args = append(args, id, userID)
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET `+set+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// DeleteNotification removes a row owned by userID; false when absent.
func (r *SQLiteRepo) DeleteNotification(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// ReplaceInactivity atomically removes any existing inactivity row for
// the user and inserts a fresh one due at dueAtUTC. At most one
// inactivity row per user exists at any time.
func (r *SQLiteRepo) ReplaceInactivity(ctx context.Context, userID int64, dueAtUTC time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE user_id = ? AND kind = ?`,
		userID, string(domain.KindInactivity),
	); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (user_id, due_at_utc, message, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, dueAtUTC.UTC().Unix(), domain.InactivityMarker,
		string(domain.KindInactivity), time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}
