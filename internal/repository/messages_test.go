package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-history/internal/database"
	"github.com/blockedby/channel-history/internal/migrator"
	"github.com/blockedby/channel-history/internal/record"
	"github.com/blockedby/channel-history/migrations"
)

type copyCall struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
}

type fakeDB struct {
	calls   []copyCall
	copyErr error
	count   int64
	lastSQL string
	args    []any
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	call := copyCall{table: table, columns: columns}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, vals)
	}
	f.calls = append(f.calls, call)
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	return int64(len(call.rows)), nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.args = args
	return fakeRow{n: f.count}
}

type fakeRow struct{ n int64 }

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.n
	return nil
}

func sampleRecords() []record.MessageRecord {
	return []record.MessageRecord{
		{ChannelName: "golang", ChannelID: 10, MessageID: 1, Date: "2024-03-01 12:30:00+00:00", SenderID: 10, MessageText: "one"},
		{ChannelName: "golang", ChannelID: 10, MessageID: 2, Date: "2024-03-01 12:31:00+00:00", SenderID: 10, MessageText: "two", IsReply: true, ReplyToMessageID: "1"},
	}
}

func TestMessagesRepository_Insert(t *testing.T) {
	db := &fakeDB{}
	repo := NewMessagesRepository(db)
	runID := uuid.New()

	n, err := repo.Insert(context.Background(), runID, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, db.calls, 1)
	call := db.calls[0]
	assert.Equal(t, pgx.Identifier{"channel_messages"}, call.table)
	assert.Equal(t, "run_id", call.columns[0])
	assert.Equal(t, record.Columns, call.columns[1:])

	require.Len(t, call.rows, 2)
	for _, row := range call.rows {
		assert.Len(t, row, len(call.columns))
		assert.Equal(t, runID, row[0])
	}
	assert.Equal(t, "two", call.rows[1][10])
	assert.Equal(t, true, call.rows[1][5])
}

func TestMessagesRepository_Insert_Empty(t *testing.T) {
	db := &fakeDB{}
	repo := NewMessagesRepository(db)

	n, err := repo.Insert(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.calls)
}

func TestMessagesRepository_Insert_Error(t *testing.T) {
	db := &fakeDB{copyErr: errors.New("connection reset")}
	repo := NewMessagesRepository(db)

	_, err := repo.Insert(context.Background(), uuid.New(), sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy messages")
}

func TestMessagesRepository_Counts(t *testing.T) {
	db := &fakeDB{count: 7}
	repo := NewMessagesRepository(db)
	ctx := context.Background()

	runID := uuid.New()
	n, err := repo.CountByRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Contains(t, db.lastSQL, "run_id")
	assert.Equal(t, []any{runID}, db.args)

	n, err = repo.CountByChannel(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Contains(t, db.lastSQL, "channel_id")
}

func TestMessagesRepository_Postgres(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	m, err := migrator.NewWithFS(migrations.FS)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx, dbURL))

	db, err := database.New(ctx, dbURL)
	require.NoError(t, err)
	defer db.Close()

	repo := NewMessagesRepository(db.Pool)
	runID := uuid.New()

	n, err := repo.Insert(ctx, runID, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stored, err := repo.CountByRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored)
}
