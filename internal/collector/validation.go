package collector

import (
	"errors"
	"strings"
	"time"
)

// validation errors
var (
	ErrChannelRequired = errors.New("at least one channel is required")
	ErrInvalidDate     = errors.New("offset_date must be in YYYY-MM-DD format")
	ErrFutureDate      = errors.New("offset_date cannot be in the future")
	ErrInvalidBounds   = errors.New("min_id and max_id must be non-negative and min_id < max_id")
)

const dateLayout = "2006-01-02"

// HarvestRequest is the body of POST /api/v1/harvest.
// Omitted fields fall back to the configured defaults.
type HarvestRequest struct {
	// Channels - usernames (with or without @), t.me links or numeric ids.
	Channels []string `json:"channels"`

	// Limit - maximum records per channel, 0 or negative means no limit.
	Limit *int `json:"limit,omitempty"`

	// Reverse - oldest messages first.
	Reverse *bool `json:"reverse,omitempty"`

	// MinID / MaxID - exclusive message id bounds.
	MinID int `json:"min_id,omitempty"`
	MaxID int `json:"max_id,omitempty"`

	// OffsetDate - start date (YYYY-MM-DD).
	OffsetDate string `json:"offset_date,omitempty"`
}

// Validate performs basic validation of the request
// does not check if channels exist (that requires network calls)
func (r *HarvestRequest) Validate() error {
	channels := make([]string, 0, len(r.Channels))
	for _, ch := range r.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return ErrChannelRequired
	}
	r.Channels = channels

	if r.MinID < 0 || r.MaxID < 0 || (r.MaxID > 0 && r.MinID >= r.MaxID) {
		return ErrInvalidBounds
	}

	if r.OffsetDate != "" {
		d, err := time.Parse(dateLayout, r.OffsetDate)
		if err != nil {
			return ErrInvalidDate
		}
		if d.After(time.Now()) {
			return ErrFutureDate
		}
	}

	return nil
}

// Spec applies the request over defaults. Call Validate first.
func (r *HarvestRequest) Spec(defaults PaginationSpec) PaginationSpec {
	spec := defaults
	if r.Limit != nil {
		spec.Limit = *r.Limit
	}
	if r.Reverse != nil {
		spec.Reverse = *r.Reverse
	}
	if r.MinID > 0 {
		spec.MinID = r.MinID
	}
	if r.MaxID > 0 {
		spec.MaxID = r.MaxID
	}
	if r.OffsetDate != "" {
		if d, err := time.Parse(dateLayout, r.OffsetDate); err == nil {
			spec.OffsetDate = d
		}
	}
	return spec
}

// HarvestResponse is returned when a harvest starts.
type HarvestResponse struct {
	HarvestID string    `json:"harvest_id"`
	Status    string    `json:"status"` // "running"
	Channels  []string  `json:"channels"`
	StartedAt time.Time `json:"started_at"`
}
