package pgbroker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/code19m/errx"
)

const (
	tableNameTaskQueue = "task_queue"

	idempotencyIndexName = "idx_task_queue_idempotency"

	migrationTimeout = 10 * time.Second
)

// generateSchemaSQL renders the DDL of the queue schema.
func generateSchemaSQL(schema string) string {
	table := schema + "." + tableNameTaskQueue

	var b strings.Builder
	for _, section := range []string{
		createSchema(schema),
		createTaskTable(table),
		createIndexes(table),
		createTriggers(schema, table),
	} {
		b.WriteString(section)
		b.WriteString("\n")
	}
	return b.String()
}

func createSchema(schema string) string {
	return fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, schema)
}

func createTaskTable(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,

    queue_name VARCHAR(255) NOT NULL,
    operation_id VARCHAR(255) NOT NULL,

    meta JSONB,
    payload JSONB NOT NULL,

    scheduled_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    visible_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMPTZ,

    priority INT NOT NULL DEFAULT 0,
    attempts INT NOT NULL DEFAULT 0,
    max_attempts INT NOT NULL DEFAULT 3,

    idempotency_key VARCHAR(255) NOT NULL,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

    dlq_at TIMESTAMPTZ,
    dlq_reason JSONB
);`, table)
}

func createIndexes(table string) string {
	return fmt.Sprintf(`
-- dequeue hot path, active tasks only
CREATE INDEX IF NOT EXISTS idx_task_queue_dequeue
ON %[1]s (queue_name, priority DESC, visible_at, scheduled_at, id ASC)
WHERE dlq_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS %[2]s
ON %[1]s (queue_name, idempotency_key)
WHERE dlq_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_task_queue_dlq
ON %[1]s (queue_name, dlq_at DESC)
WHERE dlq_at IS NOT NULL;`, table, idempotencyIndexName)
}

func createTriggers(schema, table string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %[1]s.update_task_queue_updated_at()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = CURRENT_TIMESTAMP;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trigger_task_queue_updated_at ON %[2]s;
CREATE TRIGGER trigger_task_queue_updated_at
    BEFORE UPDATE ON %[2]s
    FOR EACH ROW
    EXECUTE FUNCTION %[1]s.update_task_queue_updated_at();`, schema, table)
}

// Migrate creates the queue schema and table if they do not exist.
func (b *Broker) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	_, err := b.db.ExecContext(ctx, generateSchemaSQL(b.schema))
	return errx.Wrap(err)
}
