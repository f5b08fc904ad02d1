package web

import (
	"encoding/json"
	"time"

	"github.com/blockedby/channel-history/internal/collector"
)

// WebSocket event types
const (
	EventProgress    = "harvest.progress"
	EventRateLimited = "harvest.rate_limited"
	EventChannelDone = "harvest.channel_done"
	EventRunFinished = "harvest.finished"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressPayload is the payload for EventProgress
type ProgressPayload struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

// RateLimitedPayload is the payload for EventRateLimited
type RateLimitedPayload struct {
	Channel     string `json:"channel"`
	WaitSeconds int    `json:"wait_seconds"`
}

// RunFinishedPayload is the payload for EventRunFinished
type RunFinishedPayload struct {
	RunID    string                    `json:"run_id"`
	Total    int                       `json:"total"`
	Error    string                    `json:"error,omitempty"`
	Channels []collector.ChannelReport `json:"channels"`
}

func encode(typ string, payload interface{}) []byte {
	b, _ := json.Marshal(WSEvent{Type: typ, Payload: payload})
	return b
}

// ProgressEvent creates a JSON message for collection progress.
func ProgressEvent(channel string, count int) []byte {
	return encode(EventProgress, ProgressPayload{Channel: channel, Count: count})
}

// RateLimitedEvent creates a JSON message for a flood wait pause.
func RateLimitedEvent(channel string, wait time.Duration) []byte {
	return encode(EventRateLimited, RateLimitedPayload{Channel: channel, WaitSeconds: int(wait / time.Second)})
}

// ChannelDoneEvent creates a JSON message for a finished channel.
func ChannelDoneEvent(report collector.ChannelReport) []byte {
	return encode(EventChannelDone, report)
}

// RunFinishedEvent creates a JSON message for a finished run.
func RunFinishedEvent(res *collector.RunResult, runErr error) []byte {
	p := RunFinishedPayload{}
	if res != nil {
		p.RunID = res.ID.String()
		p.Total = res.Total()
		p.Channels = res.Channels
	}
	if runErr != nil {
		p.Error = runErr.Error()
	}
	return encode(EventRunFinished, p)
}

// Notifier turns run callbacks into hub broadcasts.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a notifier broadcasting on hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Progress is a collector.ProgressFunc.
func (n *Notifier) Progress(channel string, count int) {
	n.hub.Broadcast(ProgressEvent(channel, count))
}

// Hooks returns orchestrator hooks that broadcast rate limits and
// channel reports.
func (n *Notifier) Hooks() collector.Hooks {
	return collector.Hooks{
		RateLimited: func(channel string, wait time.Duration) {
			n.hub.Broadcast(RateLimitedEvent(channel, wait))
		},
		ChannelDone: func(report collector.ChannelReport) {
			n.hub.Broadcast(ChannelDoneEvent(report))
		},
	}
}

// RunFinished broadcasts the end of a run.
func (n *Notifier) RunFinished(res *collector.RunResult, err error) {
	n.hub.Broadcast(RunFinishedEvent(res, err))
}
