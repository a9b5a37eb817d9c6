package model

import "time"

// ProvenanceRecord is the bookkeeper row identifying one ingested scraper
// run. Every other row written during ingestion references it by foreign
// key. Records are insert-only; the subsystem never updates or deletes them.
type ProvenanceRecord struct {
	ID        int64     `json:"id"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment,omitempty"`
	Model     string    `json:"model"`
}
