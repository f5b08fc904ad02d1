// Package repository stores collected message records in postgres.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blockedby/channel-history/internal/record"
)

// messagesTable is created by migrations/00001_channel_messages.sql.
const messagesTable = "channel_messages"

// DBTX is the subset of *pgxpool.Pool the repository uses.
type DBTX interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessagesRepository handles channel_messages table operations.
type MessagesRepository struct {
	db DBTX
}

// NewMessagesRepository creates a new messages repository.
func NewMessagesRepository(db DBTX) *MessagesRepository {
	return &MessagesRepository{db: db}
}

// Insert bulk loads records of one run with COPY and returns the row count.
func (r *MessagesRepository) Insert(ctx context.Context, runID uuid.UUID, records []record.MessageRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	columns := append([]string{"run_id"}, record.Columns...)
	rows := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return append([]any{runID}, records[i].Values()...), nil
	})

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{messagesTable}, columns, rows)
	if err != nil {
		return n, fmt.Errorf("copy messages: %w", err)
	}
	return n, nil
}

// CountByRun returns how many rows a run stored.
func (r *MessagesRepository) CountByRun(ctx context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM channel_messages WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count run messages: %w", err)
	}
	return n, nil
}

// CountByChannel returns how many rows are stored for a channel over all runs.
func (r *MessagesRepository) CountByChannel(ctx context.Context, channelID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM channel_messages WHERE channel_id = $1`, channelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count channel messages: %w", err)
	}
	return n, nil
}
