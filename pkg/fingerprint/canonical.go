// ABOUTME: Canonical content hashing for duplicate detection
// ABOUTME: Order-invariant serialization of tables, arrays and mappings

package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nainya/chronostore/pkg/dataset"
)

// Hash computes the canonical SHA-256 fingerprint of content. It is
// total: when canonicalization fails the digest is derived from the
// error message instead, and the error is returned alongside the valid
// digest so callers can observe the degradation.
func Hash(v any) (string, error) {
	s, err := Canonical(v)
	if err != nil {
		s = "error_" + err.Error()
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), err
}

// Canonical produces the order-invariant string form of content.
// Two logically equal datasets yield the same string regardless of
// row, element or key ordering.
func Canonical(v any) (string, error) {
	switch d := v.(type) {
	case *dataset.Table:
		return canonicalTable(d)
	case dataset.Table:
		return canonicalTable(&d)
	case *dataset.NumericArray:
		return canonicalNumericArray(d)
	case dataset.NumericArray:
		return canonicalNumericArray(&d)
	case *dataset.ObjectArray:
		return canonicalObjectArray(d)
	case dataset.ObjectArray:
		return canonicalObjectArray(&d)
	case dataset.Dict:
		return canonicalMapping(d)
	case map[string]any:
		return canonicalMapping(d)
	case nil:
		return "", fmt.Errorf("nil content")
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// canonicalTable sorts columns by name, reorders every row to match,
// then sorts rows, and serializes as CSV. The CSV quoting keeps cells
// containing commas or newlines unambiguous, so structurally different
// tables never share a canonical form.
func canonicalTable(t *dataset.Table) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}

	// Column permutation by sorted name
	perm := make([]int, len(t.Columns))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool {
		return t.Columns[perm[a]] < t.Columns[perm[b]]
	})

	cols := make([]string, len(t.Columns))
	for i, p := range perm {
		cols[i] = t.Columns[p]
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]string, len(row))
		for j, p := range perm {
			r[j] = row[p]
		}
		rows[i] = r
	}

	sort.Slice(rows, func(a, b int) bool {
		for i := range rows[a] {
			if rows[a][i] != rows[b][i] {
				return rows[a][i] < rows[b][i]
			}
		}
		return false
	})

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("cannot serialize table: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("cannot serialize table: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("cannot serialize table: %w", err)
	}
	return sb.String(), nil
}

// canonicalNumericArray flattens, sorts and byte-encodes the values.
// The binary encoding keeps numeric arrays distinct from object arrays
// holding the same rendered text.
func canonicalNumericArray(a *dataset.NumericArray) (string, error) {
	if len(a.Shape) > 0 && a.Size() != len(a.Values) {
		return "", fmt.Errorf("shape %v does not match %d values", a.Shape, len(a.Values))
	}
	if len(a.Values) == 0 {
		return "empty_array", nil
	}

	sorted := make([]float64, len(a.Values))
	copy(sorted, a.Values)
	sort.Float64s(sorted)

	buf := make([]byte, 8*len(sorted))
	for i, f := range sorted {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return hex.EncodeToString(buf), nil
}

// canonicalObjectArray flattens, sorts and string-forms the elements
func canonicalObjectArray(a *dataset.ObjectArray) (string, error) {
	if len(a.Shape) > 0 && a.Size() != len(a.Values) {
		return "", fmt.Errorf("shape %v does not match %d values", a.Shape, len(a.Values))
	}
	if len(a.Values) == 0 {
		return "empty_array", nil
	}

	sorted := make([]string, len(a.Values))
	copy(sorted, a.Values)
	sort.Strings(sorted)
	return fmt.Sprintf("%v", sorted), nil
}

// canonicalMapping hashes each value recursively under sorted keys.
// Inner canonicalization failures degrade the inner digest only, so a
// mapping with one bad value still gets a stable fingerprint.
func canonicalMapping(m map[string]any) (string, error) {
	hashed := make(map[string]string, len(m))
	for k, v := range m {
		digest, _ := Hash(v)
		hashed[k] = digest
	}

	// encoding/json writes map keys in sorted order
	data, err := json.Marshal(hashed)
	if err != nil {
		return "", fmt.Errorf("cannot encode mapping: %w", err)
	}
	return string(data), nil
}
