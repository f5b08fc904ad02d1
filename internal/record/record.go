// Package record turns raw history messages into flat message records.
package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/channel-history/internal/telegram"
)

// DateLayout renders dates as "2024-03-01 12:30:00+00:00".
const DateLayout = "2006-01-02 15:04:05-07:00"

// MessageRecord is one normalized message. Records are values and are
// never changed after Normalize builds them.
type MessageRecord struct {
	ChannelName      string `json:"channel_name"`
	ChannelID        int64  `json:"channel_id"`
	Title            string `json:"title"`
	MessageID        int    `json:"message_id"`
	IsReply          bool   `json:"is_reply"`
	ReplyToMessageID string `json:"reply_to_message_id"`
	MessageViews     string `json:"message_views"`
	Date             string `json:"date"`
	SenderID         int64  `json:"sender_id"`
	MessageText      string `json:"message_text"`
	ForwardFrom      string `json:"forward_from"`
	LinksInline      string `json:"links_inline"`
}

// Normalize builds a record from raw. It reports false for messages
// without text, which are not collected.
func Normalize(raw telegram.RawMessage) (MessageRecord, bool) {
	if raw.Text == nil || *raw.Text == "" {
		return MessageRecord{}, false
	}

	rec := MessageRecord{
		ChannelID:   raw.Peer.ID,
		MessageID:   raw.ID,
		Date:        raw.Date.UTC().Format(DateLayout),
		SenderID:    senderID(raw),
		MessageText: strings.ReplaceAll(*raw.Text, "'", `"`),
		ForwardFrom: forwardFrom(raw.Forward),
		LinksInline: inlineLinks(raw.Entities),
	}

	if raw.Chat != nil {
		rec.ChannelID = raw.Chat.ID
		rec.ChannelName = strings.ToLower(raw.Chat.Username)
		if !raw.Private {
			rec.Title = raw.Chat.Title
		}
	}

	if raw.ReplyToID != nil {
		rec.IsReply = true
		rec.ReplyToMessageID = strconv.Itoa(*raw.ReplyToID)
	}

	if raw.Views != nil && !raw.Private {
		rec.MessageViews = strconv.Itoa(*raw.Views)
	}

	return rec, true
}

// senderID prefers the explicit sender. Channel posts without one are
// attributed to the channel, anything else to the peer user.
func senderID(raw telegram.RawMessage) int64 {
	if raw.From != nil {
		return raw.From.ID
	}
	return raw.Peer.ID
}

func forwardFrom(fwd *telegram.Forward) string {
	if fwd == nil || fwd.FromChat == nil {
		return ""
	}
	return strings.ToLower(fwd.FromChat.Username)
}

func inlineLinks(spans []telegram.TextSpan) string {
	var urls []string
	for _, s := range spans {
		if s.Kind == telegram.SpanTextURL {
			urls = append(urls, s.URL)
		}
	}
	return strings.Join(urls, "|")
}

// ParseDate reads a Date field back into a time.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Columns lists record fields in output order. CSV headers and the
// channel_messages table use the same names.
var Columns = []string{
	"channel_name",
	"channel_id",
	"title",
	"message_id",
	"is_reply",
	"reply_to_message_id",
	"message_views",
	"date",
	"sender_id",
	"message_text",
	"forward_from",
	"links_inline",
}

// Values returns the record fields in Columns order.
func (r MessageRecord) Values() []any {
	return []any{
		r.ChannelName,
		r.ChannelID,
		r.Title,
		r.MessageID,
		r.IsReply,
		r.ReplyToMessageID,
		r.MessageViews,
		r.Date,
		r.SenderID,
		r.MessageText,
		r.ForwardFrom,
		r.LinksInline,
	}
}

// Strings returns the record fields in Columns order as text.
func (r MessageRecord) Strings() []string {
	return []string{
		r.ChannelName,
		strconv.FormatInt(r.ChannelID, 10),
		r.Title,
		strconv.Itoa(r.MessageID),
		strconv.FormatBool(r.IsReply),
		r.ReplyToMessageID,
		r.MessageViews,
		r.Date,
		strconv.FormatInt(r.SenderID, 10),
		r.MessageText,
		r.ForwardFrom,
		r.LinksInline,
	}
}
