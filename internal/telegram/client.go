// Package telegram provides Telegram MTProto client wrapper.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/channel-history/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"
)

// MaxBatch is the largest page messages.getHistory returns.
const MaxBatch = 100

// ErrNotAuthorized is returned when no authorized session is available.
var ErrNotAuthorized = errors.New("telegram client not authorized")

// ErrChannelNotFound is returned when an identifier resolves to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// Client wraps gotgproto client and provides high-level telegram operations.
// It uses the Manager to access the underlying protocol client.
type Client struct {
	manager *Manager
	pacer   *Pacer
	log     *logger.Logger

	// OnRequest, when set, is called before every API request goes out.
	OnRequest func(method string)
}

// NewClient creates a new telegram client wrapper using the Manager.
// pacer may be nil, then requests are spaced by DefaultPacer.
func NewClient(manager *Manager, pacer *Pacer) *Client {
	if pacer == nil {
		pacer = DefaultPacer()
	}
	return &Client{
		manager: manager,
		pacer:   pacer,
		log:     logger.Get().Component("telegram"),
	}
}

// SetPace changes the spacing between API requests.
func (c *Client) SetPace(interval time.Duration) {
	c.pacer.SetInterval(interval)
}

// Pace returns the current spacing between API requests.
func (c *Client) Pace() time.Duration {
	return c.pacer.Interval()
}

// Close stops the client via the manager.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// GetStatus returns the current status of the telegram client.
func (c *Client) GetStatus() Status {
	return c.manager.GetStatus()
}

// getProto returns the current protocol client if available.
func (c *Client) getProto() (*gotgproto.Client, error) {
	if c.manager == nil {
		return nil, ErrNotAuthorized
	}
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, ErrNotAuthorized
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// wait paces the next request and reports it.
func (c *Client) wait(ctx context.Context, method string) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}
	if c.OnRequest != nil {
		c.OnRequest(method)
	}
	return nil
}

// floodErr converts a FLOOD_WAIT rpc error to *FloodWaitError and arms the pacer.
// Other errors are returned unchanged.
func (c *Client) floodErr(err error) error {
	wait, ok := AsFloodWait(err)
	if !ok {
		return err
	}
	c.log.Warn().Dur("wait", wait).Msg("telegram: FLOOD_WAIT received")
	c.pacer.SetFloodWait(wait)
	return &FloodWaitError{Wait: wait, Err: err}
}

// ResolveChannel resolves a channel identifier to Channel info.
// The identifier is a username (with or without @), a t.me link, or a
// numeric id. Numeric ids are looked up among the account's dialogs.
func (c *Client) ResolveChannel(ctx context.Context, ident string) (*Channel, error) {
	ident = NormalizeIdent(ident)
	if ident == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrChannelNotFound)
	}

	api, err := c.API()
	if err != nil {
		return nil, err
	}

	if id, ok := numericID(ident); ok {
		return c.resolveByID(ctx, api, id)
	}

	if err := c.wait(ctx, "contacts.resolveUsername"); err != nil {
		return nil, err
	}

	c.log.Info().Str("username", ident).Msg("telegram: resolving channel username")
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: ident,
	})
	if err != nil {
		err = c.floodErr(err)
		if strings.Contains(err.Error(), "USERNAME_NOT_OCCUPIED") || strings.Contains(err.Error(), "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, ident)
		}
		return nil, fmt.Errorf("resolve username %s: %w", ident, err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return channelFromTG(ch), nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a channel", ErrChannelNotFound, ident)
}

// resolveByID scans the first page of dialogs for a channel with the given id.
// The access hash is only known for channels the account has seen.
func (c *Client) resolveByID(ctx context.Context, api *tg.Client, id int64) (*Channel, error) {
	if err := c.wait(ctx, "messages.getDialogs"); err != nil {
		return nil, err
	}

	dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      MaxBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", c.floodErr(err))
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	}

	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == id {
			return channelFromTG(ch), nil
		}
	}
	return nil, fmt.Errorf("%w: id %d is not among recent dialogs, use the channel username", ErrChannelNotFound, id)
}

// GetHistory fetches one page of channel history.
// A FLOOD_WAIT reply is returned as *FloodWaitError.
func (c *Client) GetHistory(ctx context.Context, channel *Channel, q HistoryQuery) (HistoryPage, error) {
	if q.Limit <= 0 || q.Limit > MaxBatch {
		q.Limit = MaxBatch // telegram api limit
	}

	api, err := c.API()
	if err != nil {
		return HistoryPage{}, err
	}

	if err := c.wait(ctx, "messages.getHistory"); err != nil {
		return HistoryPage{}, err
	}

	req := &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		},
		OffsetID:  q.OffsetID,
		AddOffset: q.AddOffset,
		Limit:     q.Limit,
		MaxID:     q.MaxID,
		MinID:     q.MinID,
	}
	if !q.OffsetDate.IsZero() {
		req.OffsetDate = int(q.OffsetDate.Unix())
	}

	c.log.Debug().
		Int64("channel_id", channel.ID).
		Int("offset_id", q.OffsetID).
		Int("add_offset", q.AddOffset).
		Int("limit", q.Limit).
		Msg("telegram: calling MessagesGetHistory API")

	history, err := api.MessagesGetHistory(ctx, req)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("get history: %w", c.floodErr(err))
	}

	return ExtractPage(history), nil
}

// NormalizeIdent strips @, t.me prefixes and surrounding space from a channel identifier.
func NormalizeIdent(ident string) string {
	ident = strings.TrimSpace(ident)
	for _, prefix := range []string{"https://", "http://"} {
		ident = strings.TrimPrefix(ident, prefix)
	}
	ident = strings.TrimPrefix(ident, "t.me/")
	ident = strings.TrimPrefix(ident, "@")
	return strings.TrimSuffix(ident, "/")
}

// numericID parses bare ids and the -100 prefixed bot API form.
func numericID(ident string) (int64, bool) {
	id, err := strconv.ParseInt(ident, 10, 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(ident, "-100") {
		id, _ = strconv.ParseInt(strings.TrimPrefix(ident, "-100"), 10, 64)
	}
	if id < 0 {
		id = -id
	}
	return id, id != 0
}

func channelFromTG(ch *tg.Channel) *Channel {
	return &Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Username:   ch.Username,
		Title:      ch.Title,
		Broadcast:  ch.Broadcast,
	}
}
