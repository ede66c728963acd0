package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Source is the configuration of one ingestion endpoint. Created by config
// load, never mutated by the pipeline.
type Source struct {
	Code         string
	Kind         SourceKind
	TrustLevel   int // 0..10
	Enabled      bool
	URL          string
	FetchLimit   int
	PollInterval time.Duration
	LookbackDays int
}

// Validate checks a source configuration.
func (s *Source) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("source code must not be empty")
	}
	if _, err := ParseSourceKind(string(s.Kind)); err != nil {
		return fmt.Errorf("source %s: %w", s.Code, err)
	}
	if s.TrustLevel < 0 || s.TrustLevel > 10 {
		return fmt.Errorf("source %s: trust level %d outside [0,10]", s.Code, s.TrustLevel)
	}
	return nil
}

// Record is one raw ingested item. Deduplicated by (source, external id)
// and by content hash.
type Record struct {
	ID          string    `db:"id"`
	SourceCode  string    `db:"source_code"`
	ExternalID  string    `db:"external_id"`
	URL         string    `db:"url"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	PublishedAt time.Time `db:"published_at"`
	TrustLevel  int       `db:"trust_level"`
	ContentHash string    `db:"content_hash"`
	IngestedAt  time.Time `db:"ingested_at"`
}

// DedupKey is the unique key (source, external id).
func (r *Record) DedupKey() string {
	return r.SourceCode + ":" + r.ExternalID
}

// ComputeContentHash fills ContentHash from title and body.
func (r *Record) ComputeContentHash() {
	sum := sha256.Sum256([]byte(r.Title + "\n" + r.Body))
	r.ContentHash = hex.EncodeToString(sum[:])
}

// Validate checks the fields every downstream stage requires.
func (r *Record) Validate() error {
	if r.SourceCode == "" {
		return fmt.Errorf("record missing source code")
	}
	if r.ExternalID == "" {
		return fmt.Errorf("record missing external id")
	}
	if r.Title == "" && r.Body == "" {
		return fmt.Errorf("record %s has neither title nor body", r.DedupKey())
	}
	if r.PublishedAt.IsZero() {
		return fmt.Errorf("record %s missing publish timestamp", r.DedupKey())
	}
	return nil
}

// Cursor is the per-source resume point, persisted only after a batch
// fully commits.
type Cursor struct {
	SourceCode          string     `db:"source_code"`
	LastExternalID      string     `db:"last_external_id"`
	LastTimestamp       time.Time  `db:"last_timestamp"`
	BackfillCompletedAt *time.Time `db:"backfill_completed_at"`
}
