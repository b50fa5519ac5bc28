// ABOUTME: 4D object model: payload container, metadata and coordinates
// ABOUTME: One sealed container per object, metadata and payload together

package fourd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/nainya/chronostore/pkg/dataset"
)

// Coordinate is a spatial position in a named reference system
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	System    string  `json:"coordinate_system"`
}

// Metadata describes one stored 4D object. It is encrypted together
// with the payload; there is no unencrypted sidecar.
type Metadata struct {
	DataID     string      `json:"data_id"`
	UserID     string      `json:"user_id"`
	PaperID    string      `json:"paper_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Coordinate *Coordinate `json:"space_coordinate,omitempty"`
	DataHash   string      `json:"data_hash"`
	CreatedAt  time.Time   `json:"create_time"`
}

// Payload is the raw measurement data in one of the supported shapes.
// Exactly one of the data fields is set, named by Kind.
type Payload struct {
	Kind     string                           `json:"kind"`
	Table    *dataset.Table                   `json:"table,omitempty"`
	Numeric  *dataset.NumericArray            `json:"numeric,omitempty"`
	Object   *dataset.ObjectArray             `json:"object,omitempty"`
	Datasets map[string]*dataset.NumericArray `json:"datasets,omitempty"`
}

// Container is the unit of encryption: metadata plus payload
type Container struct {
	Metadata Metadata `json:"metadata"`
	Payload  *Payload `json:"payload"`
}

// TablePayload wraps tabular data
func TablePayload(t *dataset.Table) *Payload {
	return &Payload{Kind: dataset.CategoryTabular, Table: t}
}

// NumericPayload wraps a multidimensional numeric array
func NumericPayload(a *dataset.NumericArray) *Payload {
	return &Payload{Kind: dataset.CategoryNumericArray, Numeric: a}
}

// ObjectPayload wraps a heterogeneous array
func ObjectPayload(a *dataset.ObjectArray) *Payload {
	return &Payload{Kind: dataset.CategoryObjectArray, Object: a}
}

// DatasetsPayload wraps a keyed collection of numeric arrays
func DatasetsPayload(d map[string]*dataset.NumericArray) *Payload {
	return &Payload{Kind: dataset.CategoryMapping, Datasets: d}
}

// Category returns the payload's data category label
func (p *Payload) Category() string {
	return p.Kind
}

// Value returns the underlying dataset for canonical fingerprinting
func (p *Payload) Value() any {
	switch p.Kind {
	case dataset.CategoryTabular:
		return p.Table
	case dataset.CategoryNumericArray:
		return p.Numeric
	case dataset.CategoryObjectArray:
		return p.Object
	case dataset.CategoryMapping:
		d := make(dataset.Dict, len(p.Datasets))
		for k, v := range p.Datasets {
			d[k] = v
		}
		return d
	default:
		return nil
	}
}

// integrityHash is the coarse hash of the stringified payload embedded
// in container metadata. It is order-sensitive and intentionally
// simpler than the canonical dedup fingerprint.
func (p *Payload) integrityHash() string {
	data, err := json.Marshal(p)
	if err != nil {
		data = []byte(err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
