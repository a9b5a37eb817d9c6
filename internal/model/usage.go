package model

// Usage is the run-level LLM usage report. Items hold the per-jurisdiction
// breakdown in a stable (name-sorted) order.
type Usage struct {
	TotalTimeSeconds float64     `json:"total_time_seconds"`
	TotalTime        string      `json:"total_time,omitempty"`
	Items            []UsageItem `json:"items,omitempty"`
}

// UsageItem is the usage accumulated for one jurisdiction. Totals is the
// scraper's own "tracker_totals" aggregate; Events lists every named event
// including that aggregate, name-sorted.
type UsageItem struct {
	Name             string       `json:"name"`
	TotalTimeSeconds float64      `json:"total_time_seconds"`
	TotalTime        string       `json:"total_time,omitempty"`
	Totals           UsageEvent   `json:"totals"`
	Events           []UsageEvent `json:"events,omitempty"`
}

// UsageEvent is the request/token counters for one named tracker event.
type UsageEvent struct {
	Name           string `json:"name"`
	Requests       int64  `json:"requests"`
	PromptTokens   int64  `json:"prompt_tokens"`
	ResponseTokens int64  `json:"response_tokens"`
}
