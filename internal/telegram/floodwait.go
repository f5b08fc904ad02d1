package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tgerr"
)

// FloodWaitError reports that telegram requires a pause before further requests.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

func (e *FloodWaitError) Unwrap() error {
	return e.Err
}

// AsFloodWait extracts the required wait from err.
// It understands *FloodWaitError, gotd rpc errors and the raw
// "FLOOD_WAIT_X" text when the error was flattened on the way.
func AsFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}

	if d, ok := tgerr.AsFloodWait(err); ok {
		return d, true
	}

	if seconds := floodWaitSeconds(err.Error()); seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// floodWaitSeconds parses "... FLOOD_WAIT_15 ..." style messages.
func floodWaitSeconds(str string) int {
	_, rest, found := strings.Cut(str, "FLOOD_WAIT_")
	if !found {
		return 0
	}
	var seconds int
	_, _ = fmt.Sscanf(strings.TrimSpace(rest), "%d", &seconds)
	return seconds
}
