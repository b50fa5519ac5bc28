// ABOUTME: Version event model for the temporal index
// ABOUTME: Paper-version snapshots with 4D data references

package temporal

import (
	"time"

	"github.com/nainya/chronostore/pkg/fourd"
)

// DataRef points a version event at one stored 4D object
type DataRef struct {
	DataID      string            `json:"data_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Coordinate  *fourd.Coordinate `json:"space_coordinate,omitempty"`
	Hash        string            `json:"data_hash"`
	Category    string            `json:"data_type"`
	Description string            `json:"description,omitempty"`
}

// VersionEvent is one paper-version record. Events are append-only:
// never mutated or deleted in normal operation.
type VersionEvent struct {
	PaperID       string            `json:"paper_id"`
	VersionNumber int               `json:"version_number"`
	CreatedAt     time.Time         `json:"create_time"`
	UpdateReason  string            `json:"update_reason"`
	DataRefs      []DataRef         `json:"four_d_data_references"`
	ContentHash   string            `json:"paper_content_hash"`
	Authors       []string          `json:"author_team"`
	SpaceContext  *fourd.Coordinate `json:"space_context,omitempty"`
}

// EventRef locates an event from a calendar-year partition
type EventRef struct {
	PaperID   string    `json:"paper_id"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"-"`
}
