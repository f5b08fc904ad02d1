package migrator

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-history/migrations"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"00001_test.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
	}
}

func TestNewWithFS(t *testing.T) {
	m, err := NewWithFS(testFS())
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewWithFS_NilFS(t *testing.T) {
	m, err := NewWithFS(nil)
	assert.Error(t, err)
	assert.Nil(t, m)
}

func TestMigrator_Up_InvalidURL(t *testing.T) {
	m, err := NewWithFS(testFS())
	require.NoError(t, err)

	err = m.Up(context.Background(), "invalid://url")
	assert.Error(t, err)
}

func TestMigrator_Up_EmptyURL(t *testing.T) {
	m, err := NewWithFS(testFS())
	require.NoError(t, err)

	err = m.Up(context.Background(), "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestMigrator_Version_EmptyURL(t *testing.T) {
	m, err := NewWithFS(testFS())
	require.NoError(t, err)

	v, err := m.Version(context.Background(), "")
	assert.Error(t, err)
	assert.Zero(t, v)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		data, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		body := string(data)
		assert.Contains(t, body, "-- +goose Up", name)
		assert.Contains(t, body, "-- +goose Down", name)
	}

	first, err := fs.ReadFile(migrations.FS, "00001_channel_messages.sql")
	require.NoError(t, err)
	for _, col := range []string{"channel_name", "message_text", "links_inline", "run_id"} {
		assert.True(t, strings.Contains(string(first), col), col)
	}
}

func TestMigrator_Up_Postgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if os.Getenv("INTEGRATION_TEST") == "" || url == "" {
		t.Skip("set INTEGRATION_TEST and DATABASE_URL to run")
	}

	m, err := NewWithFS(migrations.FS)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Up(ctx, url))
	// second run is a no-op
	require.NoError(t, m.Up(ctx, url))

	v, err := m.Version(ctx, url)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, int64(1))
}
