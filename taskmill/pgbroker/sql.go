package pgbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

// taskRow is a row of the task_queue table.
type taskRow struct {
	ID             int64             `bun:"id,pk"`
	QueueName      string            `bun:"queue_name"`
	OperationID    string            `bun:"operation_id"`
	Meta           map[string]string `bun:"meta,type:jsonb"`
	Payload        json.RawMessage   `bun:"payload,type:jsonb"`
	ScheduledAt    time.Time         `bun:"scheduled_at"`
	VisibleAt      time.Time         `bun:"visible_at"`
	ExpiresAt      *time.Time        `bun:"expires_at"`
	Priority       int               `bun:"priority"`
	Attempts       int               `bun:"attempts"`
	MaxAttempts    int               `bun:"max_attempts"`
	IdempotencyKey string            `bun:"idempotency_key"`
	CreatedAt      time.Time         `bun:"created_at"`
	UpdatedAt      time.Time         `bun:"updated_at"`
	DLQAt          *time.Time        `bun:"dlq_at"`
	DLQReason      map[string]any    `bun:"dlq_reason,type:jsonb"`
}

type statsRow struct {
	Available int64 `bun:"available"`
	InFlight  int64 `bun:"in_flight"`
	Scheduled int64 `bun:"scheduled"`
	InDLQ     int64 `bun:"in_dlq"`
}

func (b *Broker) tableName() string {
	return b.schema + "." + tableNameTaskQueue
}

// insertTasks inserts the messages in one statement.
func (b *Broker) insertTasks(ctx context.Context, db bun.IDB, queue string, msgs []taskmill.Message) error {
	args := make([]any, 0, len(msgs)*10)
	placeholders := make([]string, 0, len(msgs))

	for _, m := range msgs {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			queue,
			m.OperationID,
			m.Meta,
			string(m.Payload),
			m.ScheduledAt,
			m.ScheduledAt,
			m.ExpiresAt,
			m.Priority,
			m.MaxAttempts,
			m.IdempotencyKey,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			queue_name,
			operation_id,
			meta,
			payload,
			scheduled_at,
			visible_at,
			expires_at,
			priority,
			max_attempts,
			idempotency_key
		) VALUES %s
	`, b.tableName(), strings.Join(placeholders, ", "))

	_, err := db.ExecContext(ctx, query, args...)
	if pg.ConstraintName(err) == idempotencyIndexName {
		return errx.Wrap(err, errx.WithCode(taskmill.CodeDuplicateTask), errx.WithType(errx.T_Conflict))
	}
	return errx.Wrap(err)
}

// dequeueTasks locks up to batchSize available tasks and hides them for the visibility timeout.
func (b *Broker) dequeueTasks(ctx context.Context, db bun.IDB, queue string, batchSize int) ([]taskRow, error) {
	query := fmt.Sprintf(`
		WITH selected AS (
			SELECT id
			FROM %s
			WHERE queue_name = ?
			  AND visible_at <= NOW()
			  AND scheduled_at <= NOW()
			  AND dlq_at IS NULL
			ORDER BY priority DESC, id ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s t
		SET
			visible_at = NOW() + INTERVAL '1 second' * ?,
			attempts = attempts + 1
		FROM selected s
		WHERE t.id = s.id
		RETURNING t.*
	`, b.tableName(), b.tableName())

	var rows []taskRow
	_, err := db.NewRaw(query, queue, batchSize, int(b.visibilityTimeout.Seconds())).Exec(ctx, &rows)
	return rows, errx.Wrap(err)
}

func (b *Broker) moveToDLQ(ctx context.Context, db bun.IDB, id int64, reason map[string]any) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET dlq_at = NOW(), dlq_reason = ?
		WHERE id = ? AND dlq_at IS NULL
	`, b.tableName())

	_, err := db.ExecContext(ctx, query, reason, id)
	return errx.Wrap(err)
}

func (b *Broker) deleteTask(ctx context.Context, db bun.IDB, id int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, b.tableName())

	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	n, err := result.RowsAffected()
	return n, errx.Wrap(err)
}

func (b *Broker) updateTaskVisibility(ctx context.Context, db bun.IDB, id int64, visibleAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET visible_at = ? WHERE id = ?`, b.tableName())

	_, err := db.ExecContext(ctx, query, visibleAt, id)
	return errx.Wrap(err)
}

func (b *Broker) selectTaskByID(ctx context.Context, db bun.IDB, id int64) (*taskRow, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, b.tableName())

	row := new(taskRow)
	err := db.NewRaw(query, id).Scan(ctx, row)
	if pg.IsNotFound(err) {
		return nil, errx.Wrap(err, errx.WithCode(CodeTaskNotFound), errx.WithType(errx.T_NotFound))
	}
	return row, errx.Wrap(err)
}

func (b *Broker) getQueueStats(ctx context.Context, db bun.IDB, queue string) (statsRow, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE visible_at <= NOW()
							 AND scheduled_at <= NOW()
							 AND dlq_at IS NULL) AS available,
			COUNT(*) FILTER (WHERE visible_at > NOW()
							 AND attempts > 0
							 AND dlq_at IS NULL) AS in_flight,
			COUNT(*) FILTER (WHERE scheduled_at > NOW()
							 AND dlq_at IS NULL) AS scheduled,
			COUNT(*) FILTER (WHERE dlq_at IS NOT NULL) AS in_dlq
		FROM %s
		WHERE queue_name = ?
	`, b.tableName())

	var stats statsRow
	err := db.NewRaw(query, queue).Scan(ctx, &stats)
	return stats, errx.Wrap(err)
}
