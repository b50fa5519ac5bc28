// ABOUTME: Data model for 4D scientific payloads
// ABOUTME: Tabular, array and keyed-collection shapes with category labels

package dataset

import "fmt"

// Data category labels used by the fingerprint index and the object store
const (
	CategoryTabular      = "tabular"
	CategoryNumericArray = "numeric_array"
	CategoryObjectArray  = "object_array"
	CategoryMapping      = "mapping"
	CategoryScalar       = "scalar"
)

// Table represents tabular measurement data (rows of string cells under
// named columns)
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NumericArray represents a multidimensional numeric array, flattened
// row-major into Values
type NumericArray struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// ObjectArray represents a heterogeneous array of string-formed elements
type ObjectArray struct {
	Shape  []int    `json:"shape"`
	Values []string `json:"values"`
}

// Dict represents a keyed collection of datasets or primitive values
type Dict map[string]any

// Size returns the number of elements implied by the shape
func (a *NumericArray) Size() int {
	if len(a.Shape) == 0 {
		return len(a.Values)
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Size returns the number of elements implied by the shape
func (a *ObjectArray) Size() int {
	if len(a.Shape) == 0 {
		return len(a.Values)
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Validate checks that row widths match the column count
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Category returns the free-form type label for a value
func Category(v any) string {
	switch v.(type) {
	case *Table, Table:
		return CategoryTabular
	case *NumericArray, NumericArray:
		return CategoryNumericArray
	case *ObjectArray, ObjectArray:
		return CategoryObjectArray
	case Dict, map[string]any:
		return CategoryMapping
	default:
		return CategoryScalar
	}
}
