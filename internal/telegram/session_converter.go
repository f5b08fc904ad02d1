package telegram

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
)

// storedSession is the envelope gotd's session loader reads back.
type storedSession struct {
	Version int
	Data    session.Data
}

// ConvertToGotgprotoSession wraps gotd session data in the row gotgproto
// keeps in its sessions table.
func ConvertToGotgprotoSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, errors.New("session data is nil")
	}

	raw, err := json.Marshal(storedSession{Version: 1, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    raw,
	}, nil
}
