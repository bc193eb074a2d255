package db

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is a row of the search_cache table
type CacheEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	NotFound  bool      `json:"not_found"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolution is a recorded careers-page resolution outcome
type Resolution struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	Company      string    `json:"company"`
	Status       string    `json:"status"` // 'found', 'not_relevant', 'failed'
	URL          string    `json:"url,omitempty"`
	Similarity   float64   `json:"similarity"`
	Method       string    `json:"method,omitempty"` // 'similarity', 'keywords'
	Keywords     []string  `json:"keywords,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResolutionFilters holds optional filters for listing resolutions
type ResolutionFilters struct {
	RunID   uuid.UUID
	Company string
	Status  string
	Limit   int
}
