package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blockedby/channel-history/internal/telegram"
)

// fakeSource replays scripted pulls, then reports the end.
type fakeSource struct {
	pulls []telegram.Pull
	errAt int // index returning err, -1 = never
	err   error
	pos   int
}

func (s *fakeSource) Next(_ context.Context) (telegram.Pull, error) {
	if s.err != nil && s.pos == s.errAt {
		s.pos++
		return telegram.Pull{}, s.err
	}
	if s.pos >= len(s.pulls) {
		return telegram.Pull{Kind: telegram.PullEnd}, nil
	}
	p := s.pulls[s.pos]
	s.pos++
	return p, nil
}

func textMsg(channelID int64, id int, text string) telegram.Pull {
	return telegram.Pull{
		Kind: telegram.PullMessage,
		Message: telegram.RawMessage{
			ID:   id,
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Text: &text,
			Peer: telegram.Peer{Kind: telegram.PeerChannel, ID: channelID},
			Chat: &telegram.Chat{ID: channelID, Title: fmt.Sprintf("chan %d", channelID), Username: fmt.Sprintf("Chan%d", channelID)},
		},
	}
}

func emptyMsg(channelID int64, id int) telegram.Pull {
	return telegram.Pull{
		Kind: telegram.PullMessage,
		Message: telegram.RawMessage{
			ID:   id,
			Peer: telegram.Peer{Kind: telegram.PeerChannel, ID: channelID},
		},
	}
}

func floodPull(wait time.Duration) telegram.Pull {
	return telegram.Pull{Kind: telegram.PullRateLimited, Wait: wait}
}

// messages returns n text pulls with descending ids.
func messages(channelID int64, n int) []telegram.Pull {
	out := make([]telegram.Pull, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, textMsg(channelID, i, fmt.Sprintf("message %d", i)))
	}
	return out
}

// recordingSleeper records every pause instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
	events *[]string
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, d)
	if r.events != nil {
		*r.events = append(*r.events, fmt.Sprintf("sleep %s", d))
	}
	return ctx.Err()
}
