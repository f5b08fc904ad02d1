package telegram

import (
	"context"
	"fmt"

	"github.com/blockedby/channel-history/internal/config"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"gorm.io/gorm"
)

// NewPersistentClient creates a telegram client from the configured session.
// TG_SESSION_STRING wins when set; otherwise the session and peer cache
// live in db and auth key refreshes are written back to it.
func NewPersistentClient(_ context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	var sess sessionMaker.SessionConstructor
	switch {
	case cfg.TGSessionStr != "":
		sess = sessionMaker.StringSession(cfg.TGSessionStr)
	case db != nil:
		sess = sessionMaker.SqlSession(db.Dialector)
	default:
		return nil, fmt.Errorf("no session source configured")
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use session
		&gotgproto.ClientOpts{
			Session:          sess,
			DisableCopyright: true,
			InMemory:         false,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return client, nil
}
