package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"inboxintel/internal/model"
	"inboxintel/pkg/metrics"
)

// ErrTaskNotFound covers both "no such task" and "task owned by someone
// else"; callers cannot tell the two apart.
var ErrTaskNotFound = errors.New("task not found")

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// ListOpen returns the caller's open tasks, newest first.
func (r *TaskRepository) ListOpen(ctx context.Context, userEmail string) ([]model.Task, error) {
	r.logger.Debug("Listing open tasks", zap.String("user_email", userEmail))
	start := time.Now()
	query := `
        SELECT id, user_email, text, sender, is_done, created_at
        FROM todos
        WHERE user_email = $1 AND is_done = FALSE
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userEmail)
	if err != nil {
		r.logger.Error("Failed to query open tasks",
			zap.Error(err),
			zap.String("user_email", userEmail),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID,
			&t.UserEmail,
			&t.Text,
			&t.Sender,
			&t.IsDone,
			&t.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan task row",
				zap.Error(err),
				zap.String("user_email", userEmail),
			)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	metrics.RecordDBQueryDuration("list_open", "todos", time.Since(start))
	metrics.IncrementTaskOp("list")
	r.logger.Info("Open tasks listed",
		zap.String("user_email", userEmail),
		zap.Int("count", len(tasks)),
	)
	return tasks, nil
}

// BulkInsert inserts one open task per item for the caller. Inserts are
// individual statements with no wrapping transaction; a mid-batch failure
// leaves earlier rows in place and reports how many made it.
func (r *TaskRepository) BulkInsert(ctx context.Context, userEmail string, items []model.TaskItem) (int, error) {
	r.logger.Debug("Bulk inserting tasks",
		zap.String("user_email", userEmail),
		zap.Int("count", len(items)),
	)
	start := time.Now()
	query := `
        INSERT INTO todos (id, user_email, text, sender, is_done, created_at)
        VALUES ($1, $2, $3, $4, FALSE, NOW())
    `

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, uuid.New(), userEmail, item.Text, item.Sender)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range items {
		if _, err := results.Exec(); err != nil {
			r.logger.Error("Failed to insert task",
				zap.Error(err),
				zap.String("user_email", userEmail),
				zap.Int("inserted_so_far", inserted),
			)
			return inserted, err
		}
		inserted++
	}

	metrics.RecordDBQueryDuration("bulk_insert", "todos", time.Since(start))
	metrics.IncrementTaskOp("insert")
	r.logger.Info("Tasks inserted",
		zap.String("user_email", userEmail),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// MarkDone flips one task's completion flag, but only when the caller owns
// it. Returns ErrTaskNotFound when no owned row matches.
func (r *TaskRepository) MarkDone(ctx context.Context, userEmail string, id uuid.UUID) error {
	r.logger.Debug("Marking task done",
		zap.String("user_email", userEmail),
		zap.String("task_id", id.String()),
	)
	start := time.Now()
	query := `
        UPDATE todos
        SET is_done = TRUE
        WHERE id = $1 AND user_email = $2
    `
	result, err := r.db.Exec(ctx, query, id, userEmail)
	if err != nil {
		r.logger.Error("Failed to mark task done",
			zap.Error(err),
			zap.String("task_id", id.String()),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		r.logger.Warn("Task not found or not owned by caller",
			zap.String("user_email", userEmail),
			zap.String("task_id", id.String()),
		)
		return ErrTaskNotFound
	}

	metrics.RecordDBQueryDuration("mark_done", "todos", time.Since(start))
	metrics.IncrementTaskOp("done")
	r.logger.Info("Task marked done",
		zap.String("user_email", userEmail),
		zap.String("task_id", id.String()),
	)
	return nil
}
