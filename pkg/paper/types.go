// ABOUTME: Paper record model owning the version-number sequence
// ABOUTME: JSON-file records, one per paper

package paper

import (
	"time"

	"github.com/nainya/chronostore/pkg/fourd"
	"github.com/nainya/chronostore/pkg/temporal"
)

// Record is the durable state of one paper: its identity and the
// complete ordered version history.
type Record struct {
	PaperID       string                  `json:"paper_id"`
	Title         string                  `json:"title"`
	Creator       string                  `json:"creator"`
	CreatedAt     time.Time               `json:"create_time"`
	LatestVersion int                     `json:"latest_version"`
	Versions      []temporal.VersionEvent `json:"versions"`
}

// VersionParams carries the inputs for a new paper version
type VersionParams struct {
	VersionNumber int
	UpdateReason  string
	DataRefs      []temporal.DataRef
	Content       string
	Authors       []string
	SpaceContext  *fourd.Coordinate
}
