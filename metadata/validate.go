// Package metadata parses and validates clip-candidate documents produced
// by the content-description service.
package metadata

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Field keys shared with the content-description prompt contract.
const (
	KeyTimeRange = "timestamp_start_end"
	KeySource    = "source_filename"
)

// Candidate is one proposed clip. All fields beyond the timestamp range and
// source reference are free text and opaque to the pipeline; keeping the
// raw object preserves them through the validate/upload round trip.
type Candidate map[string]any

// TimeRange returns the candidate's timestamp range field.
func (c Candidate) TimeRange() (string, bool) {
	s, ok := c[KeyTimeRange].(string)
	return s, ok
}

// SourceRef returns the candidate's source reference field.
func (c Candidate) SourceRef() (string, bool) {
	s, ok := c[KeySource].(string)
	return s, ok
}

// StripFence removes a single leading and trailing markup code fence, which
// the content-description service sometimes wraps its JSON in.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Decode parses a candidate document. A lone object is accepted as a
// one-element list.
func Decode(raw string) ([]Candidate, error) {
	stripped := StripFence(raw)

	var list []Candidate
	if err := json.Unmarshal([]byte(stripped), &list); err == nil {
		return list, nil
	}

	var single Candidate
	if err := json.Unmarshal([]byte(stripped), &single); err != nil {
		return nil, fmt.Errorf("metadata document is not a JSON object list: %w", err)
	}
	return []Candidate{single}, nil
}

// Validate filters raw service output against the real media duration. A
// candidate is kept only when its range parses, covers a positive span, and
// ends at or before the probed duration; the canonical source reference is
// attached to every survivor. Rejections are logged and skipped, never
// raised. An empty result is valid output.
func Validate(raw string, durationSeconds float64, sourceRef string) ([]Candidate, error) {
	candidates, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	validated := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		timeRange, ok := c.TimeRange()
		if !ok {
			log.Printf("Discarding candidate with missing %s for %s", KeyTimeRange, sourceRef)
			continue
		}

		start, end, err := ParseRange(timeRange)
		if err != nil {
			log.Printf("Discarding malformed timestamp %q for %s: %v", timeRange, sourceRef, err)
			continue
		}
		if end <= start {
			log.Printf("Discarding non-positive range %q for %s", timeRange, sourceRef)
			continue
		}
		if float64(end) > durationSeconds {
			log.Printf("Discarding timestamp %q exceeding duration %.2fs for %s", timeRange, durationSeconds, sourceRef)
			continue
		}

		c[KeySource] = sourceRef
		validated = append(validated, c)
	}
	return validated, nil
}
