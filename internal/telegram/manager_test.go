package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blockedby/channel-history/internal/config"
	"github.com/celestix/gotgproto"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE sessions (version integer primary key, data blob)").Error)
	return db
}

func TestManager_Init_NoSession_Unauthorized(t *testing.T) {
	m := NewManager(&config.Config{TGApiID: 1, TGApiHash: "h"}, newTestDB(t))

	called := false
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		called = true
		return &gotgproto.Client{}, nil
	})

	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, StatusUnauthorized, m.GetStatus())
	assert.False(t, called, "factory must not run without a session")
}

func TestManager_Init_DBSession_Ready(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("INSERT INTO sessions (version, data) VALUES (1, ?)", []byte(`{"mock":"data"}`)).Error)

	m := NewManager(&config.Config{TGApiID: 1, TGApiHash: "h"}, db)
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		return &gotgproto.Client{}, nil
	})

	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, StatusReady, m.GetStatus())
	assert.NotNil(t, m.GetClient())
}

func TestManager_Init_SessionString_SkipsDB(t *testing.T) {
	m := NewManager(&config.Config{TGApiID: 1, TGApiHash: "h", TGSessionStr: "1BVts..."}, nil)
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		assert.Nil(t, db)
		return &gotgproto.Client{}, nil
	})

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, StatusReady, m.GetStatus())
}

func TestManager_Init_FactoryError_Unauthorized(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("INSERT INTO sessions (version, data) VALUES (1, ?)", []byte(`{}`)).Error)

	m := NewManager(&config.Config{}, db)
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		return nil, errors.New("factory failure")
	})

	err := m.Init(context.Background())

	assert.NoError(t, err, "Init keeps the app running when the client fails")
	assert.Equal(t, StatusUnauthorized, m.GetStatus())
}

func TestManager_StartQR_UsesQRFactory(t *testing.T) {
	m := NewManager(&config.Config{TGApiID: 1, TGApiHash: "h"}, newTestDB(t))

	mockErr := errors.New("mock factory called")
	m.SetQRClientFactory(func(cfg *config.Config) (*QRClientBundle, error) {
		return nil, mockErr
	})
	regularCalled := false
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		regularCalled = true
		return nil, errors.New("regular factory called")
	})

	var url string
	err := m.StartQR(context.Background(), func(u string) { url = u })

	assert.ErrorIs(t, err, mockErr)
	assert.False(t, regularCalled)
	assert.Empty(t, url)
	assert.False(t, m.IsQRInProgress(), "flag is cleared on exit")
}

func TestManager_StartQR_AlreadyLoggedIn(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("INSERT INTO sessions (version, data) VALUES (1, ?)", []byte(`{}`)).Error)
	m := NewManager(&config.Config{}, db)
	m.SetClientFactory(func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
		return &gotgproto.Client{}, nil
	})
	require.NoError(t, m.Init(context.Background()))

	err := m.StartQR(context.Background(), func(string) {})
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
}

func TestManager_CancelQR_NoFlow(t *testing.T) {
	m := NewManager(&config.Config{}, nil)

	assert.NotPanics(t, m.CancelQR)
	assert.False(t, m.IsQRInProgress())
}

func TestManager_GetStatus_Concurrent(t *testing.T) {
	m := NewManager(&config.Config{}, nil)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m.GetStatus()
		}()
	}

	close(start)
	wg.Wait()
}

func TestManager_Stop_Graceful(t *testing.T) {
	m := NewManager(&config.Config{}, nil)

	assert.NotPanics(t, m.Stop)
}
