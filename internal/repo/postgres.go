package repo

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/BuzzLyutic/tasktrack/internal/model"
)

//go:embed schema.sql
var schema string

// querier покрывает и пул, и открытую транзакцию.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { // Конструктор
	return &PostgresStore{
		pool: pool,
		q:    pool,
	}
}

// Migrate применяет схему; все операторы идемпотентны.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return pkgerrors.Wrap(err, "failed to apply schema")
	}
	return nil
}

func (r *PostgresStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return r.inTransaction(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func (r *PostgresStore) View(ctx context.Context, fn func(Store) error) error {
	return r.inTransaction(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *PostgresStore) inTransaction(ctx context.Context, opts pgx.TxOptions, fn func(Store) error) error {
	if r.inTx {
		return fn(r)
	}
	err := pgx.BeginTxFunc(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: r.pool, q: tx, inTx: true})
	})
	return r.mapError(err)
}

func (r *PostgresStore) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	explicit := u.ID != 0
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (id, name, email, role, avatar_url, password_hash)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('users', 'id'))), $2, $3, $4, $5, $6)
		RETURNING id
	`, u.ID, u.Name, u.Email, string(u.Role), u.AvatarURL, u.PasswordHash).Scan(&u.ID)
	if err != nil {
		return u, r.mapError(err)
	}
	if explicit {
		return u, r.syncSequence(ctx, "users")
	}
	return u, nil
}

func (r *PostgresStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	return r.scanUser(r.q.QueryRow(ctx, `
		SELECT id, name, email, role, avatar_url, password_hash
		FROM users
		WHERE id = $1
	`, id))
}

func (r *PostgresStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanUser(r.q.QueryRow(ctx, `
		SELECT id, name, email, role, avatar_url, password_hash
		FROM users
		WHERE lower(email) = lower(trim($1))
	`, email))
}

func (r *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, email, role, avatar_url, password_hash
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresStore) scanUser(row pgx.Row) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.AvatarURL, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrorNotFound
	}
	u.Role = model.Role(role)
	return u, err
}

const taskColumns = `id, title, description, priority, status, created_by, assigned_to, required_till, created_at, updated_at`

func (r *PostgresStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	explicit := t.ID != 0
	err := r.q.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, priority, status, created_by, assigned_to, required_till, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('tasks', 'id'))), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, t.ID, t.Title, t.Description, string(t.Priority), string(t.Status), t.CreatedBy, t.AssignedTo,
		t.RequiredTill, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return t, r.mapError(err)
	}
	if explicit {
		return t, r.syncSequence(ctx, "tasks")
	}
	return t, nil
}

func (r *PostgresStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	return r.scanTask(r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (r *PostgresStore) UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) (model.Task, error) {
	return r.scanTask(r.q.QueryRow(ctx, `
		UPDATE tasks
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+taskColumns,
		id, string(status), at))
}

func (r *PostgresStore) ListTasksByCreator(ctx context.Context, userID int64) ([]model.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE created_by = $1 ORDER BY id`, userID)
}

func (r *PostgresStore) ListTasksByAssignee(ctx context.Context, userID int64) ([]model.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assigned_to = $1 ORDER BY id`, userID)
}

func (r *PostgresStore) listTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresStore) scanTask(row pgx.Row) (model.Task, error) {
	var (
		t                model.Task
		priority, status string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &t.CreatedBy, &t.AssignedTo,
		&t.RequiredTill, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)
	return t, err
}

func (r *PostgresStore) AppendTaskUpdate(ctx context.Context, u model.TaskUpdate) (model.TaskUpdate, error) {
	explicit := u.ID != 0
	var old *string
	if u.OldStatus != nil {
		s := string(*u.OldStatus)
		old = &s
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO task_updates (id, task_id, updated_by, old_status, new_status, note, created_at)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('task_updates', 'id'))), $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.ID, u.TaskID, u.UpdatedBy, old, string(u.NewStatus), u.Note, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return u, r.mapError(err)
	}
	if explicit {
		return u, r.syncSequence(ctx, "task_updates")
	}
	return u, nil
}

func (r *PostgresStore) ListTaskUpdates(ctx context.Context, taskID int64) ([]model.TaskUpdate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, task_id, updated_by, old_status, new_status, note, created_at
		FROM task_updates
		WHERE task_id = $1
		ORDER BY created_at DESC, id DESC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updates := make([]model.TaskUpdate, 0)
	for rows.Next() {
		var (
			u        model.TaskUpdate
			old      *string
			newState string
		)
		if err := rows.Scan(&u.ID, &u.TaskID, &u.UpdatedBy, &old, &newState, &u.Note, &u.CreatedAt); err != nil {
			return nil, err
		}
		if old != nil {
			s := model.Status(*old)
			u.OldStatus = &s
		}
		u.NewStatus = model.Status(newState)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (r *PostgresStore) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	explicit := n.ID != 0
	err := r.q.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, actor_id, task_id, message, is_read, created_at)
		VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('notifications', 'id'))), $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, n.ID, n.UserID, n.ActorID, n.TaskID, n.Message, n.IsRead, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return n, r.mapError(err)
	}
	if explicit {
		return n, r.syncSequence(ctx, "notifications")
	}
	return n, nil
}

func (r *PostgresStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, actor_id, task_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.TaskID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (r *PostgresStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)
	return count, err
}

func (r *PostgresStore) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmd, err := r.q.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND id = ANY($2) AND NOT is_read
	`, userID, ids)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *PostgresStore) CreateSession(ctx context.Context, s model.Session) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, s.Token, s.UserID, s.ExpiresAt)
	return r.mapError(err)
}

func (r *PostgresStore) GetSession(ctx context.Context, token string) (model.Session, error) {
	var s model.Session
	err := r.q.QueryRow(ctx, `
		SELECT token, user_id, expires_at FROM sessions WHERE token = $1
	`, token).Scan(&s.Token, &s.UserID, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ErrorNotFound
	}
	return s, err
}

func (r *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	cmd, err := r.q.Exec(ctx, "DELETE FROM sessions WHERE token = $1", token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	cmd, err := r.q.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

// syncSequence держит последовательность впереди явно вставленных id (импорт фикстур).
func (r *PostgresStore) syncSequence(ctx context.Context, table string) error {
	_, err := r.q.Exec(ctx, `
		SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), GREATEST((SELECT MAX(id) FROM `+table+`), 1))
	`)
	return err
}

func (r *PostgresStore) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001": // unique_violation, serialization_failure
			return ErrorConflict
		case "23503": // foreign_key_violation
			return ErrorNotFound
		}
	}
	return err
}
