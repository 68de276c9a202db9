// Package analytics collects search and catalog events, ships them over
// Kafka and aggregates them into query statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch        EventType = "search"
	EventCatalogReload EventType = "catalog_reload"
)

// Event is the envelope published to Kafka; exactly one payload is set.
type Event struct {
	Type    EventType     `json:"type"`
	Search  *SearchEvent  `json:"search,omitempty"`
	Catalog *CatalogEvent `json:"catalog,omitempty"`
}

type SearchEvent struct {
	Query       string    `json:"query"`
	Tier        string    `json:"tier"`
	Pattern     bool      `json:"pattern"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

type CatalogEvent struct {
	Fingerprint string    `json:"fingerprint"`
	Namespaces  int       `json:"namespaces"`
	Items       int       `json:"items"`
	Omitted     int       `json:"omitted"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewSearchEvent(e SearchEvent) Event {
	return Event{Type: EventSearch, Search: &e}
}

func NewCatalogEvent(e CatalogEvent) Event {
	return Event{Type: EventCatalogReload, Catalog: &e}
}
