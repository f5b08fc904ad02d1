package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-history/internal/telegram"
)

func TestCollector_Limit(t *testing.T) {
	tests := []struct {
		name      string
		available int
		limit     int
		want      int
	}{
		{name: "limit below available", available: 200, limit: 150, want: 150},
		{name: "limit equals available", available: 150, limit: 150, want: 150},
		{name: "limit above available", available: 50, limit: 150, want: 50},
		{name: "zero is unbounded", available: 320, limit: 0, want: 320},
		{name: "negative is unbounded", available: 120, limit: -1, want: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{pulls: messages(1, tt.available)}

			res, err := NewCollector(nil).Collect(context.Background(), "chA", src, PaginationSpec{Limit: tt.limit})

			require.NoError(t, err)
			assert.Len(t, res.Records, tt.want)
			assert.True(t, res.Done)
			assert.False(t, res.RateLimited)
		})
	}
}

func TestCollector_StopsPullingAtLimit(t *testing.T) {
	src := &fakeSource{pulls: messages(1, 10)}

	_, err := NewCollector(nil).Collect(context.Background(), "chA", src, PaginationSpec{Limit: 3})

	require.NoError(t, err)
	assert.Equal(t, 3, src.pos, "no pull beyond the limit")
}

func TestCollector_EmptyMessagesSkipped(t *testing.T) {
	pulls := []telegram.Pull{
		textMsg(1, 5, "a"),
		emptyMsg(1, 4),
		textMsg(1, 3, ""),
		textMsg(1, 2, "b"),
		textMsg(1, 1, "c"),
	}
	src := &fakeSource{pulls: pulls}

	res, err := NewCollector(nil).Collect(context.Background(), "chA", src, PaginationSpec{Limit: 3})

	require.NoError(t, err)
	require.Len(t, res.Records, 3, "empty messages do not count toward the limit")
	assert.Equal(t, []int{5, 2, 1}, []int{res.Records[0].MessageID, res.Records[1].MessageID, res.Records[2].MessageID})
	assert.Equal(t, 2, res.SkippedEmpty)
}

func TestCollector_PreservesSourceOrder(t *testing.T) {
	pulls := []telegram.Pull{textMsg(1, 1, "a"), textMsg(1, 2, "b"), textMsg(1, 3, "c")}

	res, err := NewCollector(nil).Collect(context.Background(), "chA", &fakeSource{pulls: pulls}, PaginationSpec{Reverse: true})

	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	for i, rec := range res.Records {
		assert.Equal(t, i+1, rec.MessageID)
	}
}

func TestCollector_Progress(t *testing.T) {
	pulls := messages(1, 250)
	// empty messages right at the boundary must not trigger a notification
	pulls = append(pulls[:100], append([]telegram.Pull{emptyMsg(1, 0), emptyMsg(1, 0)}, pulls[100:]...)...)

	var counts []int
	progress := func(channel string, count int) {
		assert.Equal(t, "chA", channel)
		counts = append(counts, count)
	}

	_, err := NewCollector(progress).Collect(context.Background(), "chA", &fakeSource{pulls: pulls}, PaginationSpec{})

	require.NoError(t, err)
	assert.Equal(t, []int{100, 200}, counts)
}

func TestCollector_RateLimitKeepsPartial(t *testing.T) {
	pulls := append(messages(1, 40), floodPull(30*time.Second))
	pulls = append(pulls, textMsg(1, 100, "after"))
	src := &fakeSource{pulls: pulls}
	c := NewCollector(nil)
	spec := PaginationSpec{Limit: 41}

	res, err := c.Collect(context.Background(), "chA", src, spec)

	require.NoError(t, err)
	assert.True(t, res.RateLimited)
	assert.Equal(t, 30*time.Second, res.Wait)
	assert.Len(t, res.Records, 40)
	assert.False(t, res.Done)

	require.NoError(t, c.Continue(context.Background(), src, spec, res))
	assert.False(t, res.RateLimited)
	assert.True(t, res.Done)
	require.Len(t, res.Records, 41, "limit counts across the resume")
	assert.Equal(t, 100, res.Records[40].MessageID)
}

func TestCollector_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{pulls: messages(1, 10), errAt: 5, err: boom}

	res, err := NewCollector(nil).Collect(context.Background(), "chA", src, PaginationSpec{})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, res.Records, 5)
}

func TestCollector_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewCollector(nil).Collect(ctx, "chA", &fakeSource{pulls: messages(1, 10)}, PaginationSpec{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Records)
}

func TestChainProgress(t *testing.T) {
	var a, b int
	fn := ChainProgress(
		func(string, int) { a++ },
		nil,
		func(_ string, n int) { b = n },
	)

	fn("chA", 100)

	assert.Equal(t, 1, a)
	assert.Equal(t, 100, b)
}

func TestPaginationSpec_Window(t *testing.T) {
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	spec := PaginationSpec{Reverse: true, MinID: 3, MaxID: 9, OffsetDate: date, Limit: 5}

	assert.Equal(t, telegram.Window{Reverse: true, MinID: 3, MaxID: 9, OffsetDate: date}, spec.Window())
}
