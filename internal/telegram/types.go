package telegram

import (
	"time"
)

// PeerKind identifies what a peer id refers to.
type PeerKind int

// Peer kinds as reported by the MTProto peer classes.
const (
	PeerUser PeerKind = iota + 1
	PeerChat
	PeerChannel
)

// String returns the kind name used in logs.
func (k PeerKind) String() string {
	switch k {
	case PeerUser:
		return "user"
	case PeerChat:
		return "chat"
	case PeerChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Peer is a typed telegram identity
type Peer struct {
	Kind PeerKind
	ID   int64
}

// Chat is a resolved chat entity (channel, group or user)
type Chat struct {
	ID       int64  // entity id
	Title    string // channel/group title, empty for users
	Username string // public username without @, empty when none
}

// Forward holds the forward header of a message
type Forward struct {
	FromChat *Chat // origin chat, nil when the header has no resolvable chat
}

// SpanKind classifies a text entity.
type SpanKind int

// Span kinds. Only SpanTextURL carries a URL.
const (
	SpanOther SpanKind = iota
	SpanURL
	SpanTextURL
	SpanMention
	SpanHashtag
)

// TextSpan is one typed entity inside the message text
type TextSpan struct {
	Kind   SpanKind
	Offset int
	Length int
	URL    string // set for SpanTextURL only
}

// RawMessage is a message as fetched from the history API.
// Optional attributes are nil when the message does not carry them.
type RawMessage struct {
	ID        int
	Date      time.Time
	Text      *string    // nil for service messages
	Peer      Peer       // chat the message lives in
	From      *Peer      // explicit sender, nil when absent
	Chat      *Chat      // entity behind Peer, nil if not returned by the API
	Views     *int       // nil when the message has no view counter
	ReplyToID *int       // nil when not a reply
	Forward   *Forward   // nil when not a forward
	Entities  []TextSpan // in text order
	Private   bool       // true when Peer is a user
}

// Channel represents a telegram channel info
type Channel struct {
	ID         int64  // channel id
	AccessHash int64  // access hash for api calls
	Username   string // channel username (without @)
	Title      string // channel title
	Broadcast  bool   // broadcast channel (vs megagroup)
}

// HistoryPage is one converted getHistory reply.
// Raw, FirstID and LastID describe the wire page in server order,
// including empty placeholders that Messages leaves out.
type HistoryPage struct {
	Messages []RawMessage
	Raw      int
	FirstID  int
	LastID   int
}

// HistoryQuery is one messages.getHistory request window.
type HistoryQuery struct {
	OffsetID   int
	OffsetDate time.Time
	AddOffset  int
	Limit      int
	MinID      int
	MaxID      int
}

// PullKind distinguishes the outcomes of a single pull.
type PullKind int

// Pull outcomes.
const (
	PullMessage PullKind = iota + 1
	PullEnd
	PullRateLimited
)

// Pull is the result of pulling the next message from a source.
type Pull struct {
	Kind    PullKind
	Message RawMessage    // set for PullMessage
	Wait    time.Duration // set for PullRateLimited
}
