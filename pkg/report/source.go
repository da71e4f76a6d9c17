package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Session statuses.
const (
	StatusActive    = "Active"
	StatusCompleted = "Completed"
)

// SessionRecord is one chatbot conversation as stored by the bot runtime.
type SessionRecord struct {
	ID                 string    `json:"id" yaml:"id"`
	Flow               string    `json:"flow" yaml:"flow"`
	Status             string    `json:"status" yaml:"status"`
	TransferredToAgent bool      `json:"transferred_to_agent" yaml:"transferred_to_agent"`
	LastResponseType   string    `json:"last_response_type,omitempty" yaml:"last_response_type,omitempty"`
	MessageCount       int       `json:"message_count" yaml:"message_count"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
}

// Source yields session records created inside the filter window.
type Source interface {
	Sessions(ctx context.Context, f Filter) ([]SessionRecord, error)
}

// MemorySource serves a fixed slice of records.
type MemorySource []SessionRecord

// Sessions implements Source.
func (m MemorySource) Sessions(ctx context.Context, f Filter) ([]SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []SessionRecord
	for _, s := range m {
		if f.Contains(s.CreatedAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

// LoadSessions decodes a YAML list of session records.
func LoadSessions(r io.Reader) (MemorySource, error) {
	var recs []SessionRecord
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return MemorySource(recs), nil
}
