package telegram

import (
	"context"
	"slices"
	"time"
)

// HistoryFetcher fetches one page of channel history.
// *Client implements it.
type HistoryFetcher interface {
	GetHistory(ctx context.Context, channel *Channel, q HistoryQuery) (HistoryPage, error)
}

// Window narrows the part of the history a source walks.
type Window struct {
	Reverse    bool      // oldest first
	MinID      int       // exclusive lower id bound, 0 = none
	MaxID      int       // exclusive upper id bound, 0 = none
	OffsetDate time.Time // start at this date, zero = none
}

// HistorySource pulls messages of one channel page by page.
// The cursor survives a FLOOD_WAIT, so pulling again after the pause
// continues where the failed request left off.
type HistorySource struct {
	fetcher HistoryFetcher
	channel *Channel
	window  Window
	batch   int

	buf      []RawMessage
	offsetID int
	first    bool
	done     bool
}

// NewHistorySource creates a source over channel's history.
func NewHistorySource(fetcher HistoryFetcher, channel *Channel, window Window) *HistorySource {
	s := &HistorySource{
		fetcher: fetcher,
		channel: channel,
		window:  window,
		batch:   MaxBatch,
		first:   true,
	}
	if window.Reverse {
		// messages with id >= offsetID
		s.offsetID = window.MinID + 1
		if window.MinID == 0 && !window.OffsetDate.IsZero() {
			s.offsetID = 0
		}
	} else {
		// messages with id < offsetID, 0 = from the newest
		s.offsetID = window.MaxID
	}
	return s
}

// Channel returns the channel the source reads.
func (s *HistorySource) Channel() *Channel {
	return s.channel
}

// Next returns the next message, the end of history, or a rate limit
// notice. Only transport failures are returned as errors.
func (s *HistorySource) Next(ctx context.Context) (Pull, error) {
	for len(s.buf) == 0 {
		if s.done {
			return Pull{Kind: PullEnd}, nil
		}
		if err := s.fetch(ctx); err != nil {
			if wait, ok := AsFloodWait(err); ok {
				return Pull{Kind: PullRateLimited, Wait: wait}, nil
			}
			return Pull{}, err
		}
	}

	msg := s.buf[0]
	s.buf = s.buf[1:]
	return Pull{Kind: PullMessage, Message: msg}, nil
}

// fetch loads the next page into buf and advances the cursor.
// On error the cursor is left untouched.
func (s *HistorySource) fetch(ctx context.Context) error {
	q := HistoryQuery{
		OffsetID: s.offsetID,
		Limit:    s.batch,
		MinID:    s.window.MinID,
		MaxID:    s.window.MaxID,
	}
	if s.first {
		q.OffsetDate = s.window.OffsetDate
	}
	if s.window.Reverse {
		q.AddOffset = -s.batch
	}

	page, err := s.fetcher.GetHistory(ctx, s.channel, q)
	if err != nil {
		return err
	}
	s.first = false

	// end of history is decided on the wire page, placeholders included
	if page.Raw < s.batch {
		s.done = true
	}
	if page.Raw == 0 {
		return nil
	}

	// the server returns newest first
	msgs := page.Messages
	if s.window.Reverse {
		slices.Reverse(msgs)
		s.offsetID = page.FirstID + 1
	} else {
		s.offsetID = page.LastID
	}

	for _, m := range msgs {
		if !s.inWindow(m.ID) {
			// pages are ordered, everything after is outside too
			s.done = true
			break
		}
		s.buf = append(s.buf, m)
	}
	return nil
}

func (s *HistorySource) inWindow(id int) bool {
	if s.window.MinID > 0 && id <= s.window.MinID {
		return false
	}
	if s.window.MaxID > 0 && id >= s.window.MaxID {
		return false
	}
	return true
}
