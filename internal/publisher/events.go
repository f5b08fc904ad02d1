// Package publisher pushes harvested records and run summaries to
// message brokers.
package publisher

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/record"
)

// MessageEvent carries one collected record.
type MessageEvent struct {
	RunID       uuid.UUID            `json:"run_id"`
	Record      record.MessageRecord `json:"record"`
	CollectedAt time.Time            `json:"collected_at"`
}

// RunFinishedEvent summarizes a finished run.
type RunFinishedEvent struct {
	Run   *collector.RunResult `json:"run"`
	Total int                  `json:"total"`
}

// messageID identifies a record within a run for broker side dedupe.
// Records of different runs never share an id.
func messageID(runID uuid.UUID, rec record.MessageRecord) string {
	return fmt.Sprintf("%s-%d-%d", runID, rec.ChannelID, rec.MessageID)
}

func messageEvents(runID uuid.UUID, records []record.MessageRecord, now time.Time) []MessageEvent {
	out := make([]MessageEvent, len(records))
	for i, rec := range records {
		out[i] = MessageEvent{RunID: runID, Record: rec, CollectedAt: now}
	}
	return out
}
