// ABOUTME: Event key encoding for partition logs
// ABOUTME: Sub-millisecond timestamp plus version number, chronologically sortable

package temporal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const keyTimeLayout = "20060102_150405"

// eventKey builds the partition key for an event. Keys sort
// lexicographically in chronological order within a partition, and the
// microsecond component plus version number keeps them collision-free
// under high insert rates into the same paper.
func eventKey(ts time.Time, versionNumber int) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s_%06d_v%d", ts.Format(keyTimeLayout), ts.Nanosecond()/1000, versionNumber)
}

// keyPrefix builds the timestamp-derived prefix used for exact lookups
func keyPrefix(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s_%06d_v", ts.Format(keyTimeLayout), ts.Nanosecond()/1000)
}

// parseKeyTime recovers the event timestamp from a partition key
func parseKeyTime(key string) (time.Time, error) {
	parts := strings.Split(key, "_")
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("malformed key %q", key)
	}

	base, err := time.Parse(keyTimeLayout, parts[0]+"_"+parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed key %q: %w", key, err)
	}

	micros, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed key %q: %w", key, err)
	}

	return base.Add(time.Duration(micros) * time.Microsecond), nil
}
