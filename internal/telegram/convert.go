package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// entities indexes chats and users returned alongside a history page.
type entities struct {
	chats map[int64]*Chat // channels and basic groups
	users map[int64]*Chat
}

func newEntities(chats []tg.ChatClass, users []tg.UserClass) entities {
	e := entities{
		chats: make(map[int64]*Chat, len(chats)),
		users: make(map[int64]*Chat, len(users)),
	}
	for _, c := range chats {
		switch ch := c.(type) {
		case *tg.Channel:
			e.chats[ch.ID] = &Chat{ID: ch.ID, Title: ch.Title, Username: ch.Username}
		case *tg.Chat:
			e.chats[ch.ID] = &Chat{ID: ch.ID, Title: ch.Title}
		case *tg.ChannelForbidden:
			e.chats[ch.ID] = &Chat{ID: ch.ID, Title: ch.Title}
		case *tg.ChatForbidden:
			e.chats[ch.ID] = &Chat{ID: ch.ID, Title: ch.Title}
		}
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			e.users[user.ID] = &Chat{ID: user.ID, Username: user.Username}
		}
	}
	return e
}

// lookup returns the entity behind a peer, or nil if it was not returned.
func (e entities) lookup(p Peer) *Chat {
	switch p.Kind {
	case PeerUser:
		return e.users[p.ID]
	case PeerChat, PeerChannel:
		return e.chats[p.ID]
	}
	return nil
}

// ExtractMessages converts a history response to RawMessages in server order.
// Empty message placeholders are dropped.
func ExtractMessages(messagesClass tg.MessagesMessagesClass) []RawMessage {
	return ExtractPage(messagesClass).Messages
}

// ExtractPage converts a history response and keeps the wire page shape,
// so paging can continue past placeholders.
func ExtractPage(messagesClass tg.MessagesMessagesClass) HistoryPage {
	var (
		msgs  []tg.MessageClass
		chats []tg.ChatClass
		users []tg.UserClass
	)

	switch h := messagesClass.(type) {
	case *tg.MessagesMessages:
		msgs, chats, users = h.Messages, h.Chats, h.Users
	case *tg.MessagesMessagesSlice:
		msgs, chats, users = h.Messages, h.Chats, h.Users
	case *tg.MessagesChannelMessages:
		msgs, chats, users = h.Messages, h.Chats, h.Users
	default:
		return HistoryPage{}
	}

	page := HistoryPage{Raw: len(msgs)}
	if len(msgs) > 0 {
		page.FirstID = msgs[0].GetID()
		page.LastID = msgs[len(msgs)-1].GetID()
	}

	ents := newEntities(chats, users)
	page.Messages = make([]RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if raw, ok := convertMessage(m, ents); ok {
			page.Messages = append(page.Messages, raw)
		}
	}
	return page
}

func convertMessage(msg tg.MessageClass, ents entities) (RawMessage, bool) {
	switch m := msg.(type) {
	case *tg.Message:
		raw := RawMessage{
			ID:   m.ID,
			Date: time.Unix(int64(m.Date), 0).UTC(),
			Peer: convertPeer(m.PeerID),
		}
		text := m.Message
		raw.Text = &text
		fillCommon(&raw, ents)

		if from, ok := m.GetFromID(); ok {
			p := convertPeer(from)
			raw.From = &p
		}
		if views, ok := m.GetViews(); ok {
			raw.Views = &views
		}
		if reply, ok := m.GetReplyTo(); ok {
			raw.ReplyToID = replyToID(reply)
		}
		if fwd, ok := m.GetFwdFrom(); ok {
			raw.Forward = convertForward(fwd, ents)
		}
		if spans, ok := m.GetEntities(); ok {
			raw.Entities = convertEntities(spans)
		}
		return raw, true

	case *tg.MessageService:
		// service messages carry no text body
		raw := RawMessage{
			ID:   m.ID,
			Date: time.Unix(int64(m.Date), 0).UTC(),
			Peer: convertPeer(m.PeerID),
		}
		fillCommon(&raw, ents)
		if from, ok := m.GetFromID(); ok {
			p := convertPeer(from)
			raw.From = &p
		}
		if reply, ok := m.GetReplyTo(); ok {
			raw.ReplyToID = replyToID(reply)
		}
		return raw, true
	}
	return RawMessage{}, false
}

func fillCommon(raw *RawMessage, ents entities) {
	raw.Chat = ents.lookup(raw.Peer)
	raw.Private = raw.Peer.Kind == PeerUser
}

func convertPeer(p tg.PeerClass) Peer {
	switch v := p.(type) {
	case *tg.PeerUser:
		return Peer{Kind: PeerUser, ID: v.UserID}
	case *tg.PeerChat:
		return Peer{Kind: PeerChat, ID: v.ChatID}
	case *tg.PeerChannel:
		return Peer{Kind: PeerChannel, ID: v.ChannelID}
	}
	return Peer{}
}

func replyToID(reply tg.MessageReplyHeaderClass) *int {
	h, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return nil
	}
	id, ok := h.GetReplyToMsgID()
	if !ok {
		return nil
	}
	return &id
}

func convertForward(fwd tg.MessageFwdHeader, ents entities) *Forward {
	out := &Forward{}
	if from, ok := fwd.GetFromID(); ok {
		// a user origin is a sender, not a chat
		if p := convertPeer(from); p.Kind == PeerChannel || p.Kind == PeerChat {
			out.FromChat = ents.lookup(p)
		}
	}
	return out
}

func convertEntities(in []tg.MessageEntityClass) []TextSpan {
	out := make([]TextSpan, 0, len(in))
	for _, e := range in {
		span := TextSpan{Offset: e.GetOffset(), Length: e.GetLength()}
		switch v := e.(type) {
		case *tg.MessageEntityTextURL:
			span.Kind = SpanTextURL
			span.URL = v.URL
		case *tg.MessageEntityURL:
			span.Kind = SpanURL
		case *tg.MessageEntityMention:
			span.Kind = SpanMention
		case *tg.MessageEntityHashtag:
			span.Kind = SpanHashtag
		default:
			span.Kind = SpanOther
		}
		out = append(out, span)
	}
	return out
}
