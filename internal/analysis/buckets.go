// Package analysis produces the aggregate views consumed by the reporting
// layer: time-bucketed effort averages and the dialog-node co-occurrence
// matrix.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/watson-developer-cloud/assistant-effort/internal/effort"
)

// Granularity is a time-bucket width for aggregate reporting.
type Granularity string

const (
	Minute        Granularity = "minute"
	FiveMinutes   Granularity = "5-minute"
	FifteenMinute Granularity = "15-minute"
	ThirtyMinute  Granularity = "30-minute"
	Hour          Granularity = "hour"
	Day           Granularity = "day"
	Week          Granularity = "week"
	Month         Granularity = "month"
)

var granularities = map[Granularity]time.Duration{
	Minute:        time.Minute,
	FiveMinutes:   5 * time.Minute,
	FifteenMinute: 15 * time.Minute,
	ThirtyMinute:  30 * time.Minute,
	Hour:          time.Hour,
}

// ParseGranularity validates a bucket width name.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	switch g {
	case Minute, FiveMinutes, FifteenMinute, ThirtyMinute, Hour, Day, Week, Month:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Truncate maps a timestamp to the start of its bucket. Weeks start on
// Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	if d, ok := granularities[g]; ok {
		return t.Truncate(d)
	}
	year, month, day := t.Date()
	switch g {
	case Day:
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	case Week:
		start := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
		offset := (int(start.Weekday()) + 6) % 7
		return start.AddDate(0, 0, -offset)
	case Month:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	}
	return t
}

// Bucket is one time slice of scored events.
type Bucket struct {
	Start             time.Time `json:"start"`
	Events            int       `json:"events"`
	MeanEffort        float64   `json:"mean_effort"`
	MeanPreviewEffort float64   `json:"mean_preview_effort"`
}

// BucketEvents aggregates scored events into time buckets of the given
// granularity, sorted by bucket start ascending.
func BucketEvents(events []effort.ScoredEvent, g Granularity) []Bucket {
	type sums struct {
		count   int
		effort  float64
		preview float64
	}
	byStart := make(map[time.Time]*sums)

	for _, ev := range events {
		start := g.Truncate(ev.Timestamp)
		s := byStart[start]
		if s == nil {
			s = &sums{}
			byStart[start] = s
		}
		s.count++
		s.effort += ev.EffortScore
		s.preview += ev.PreviewEffortScore
	}

	buckets := make([]Bucket, 0, len(byStart))
	for start, s := range byStart {
		buckets = append(buckets, Bucket{
			Start:             start,
			Events:            s.count,
			MeanEffort:        s.effort / float64(s.count),
			MeanPreviewEffort: s.preview / float64(s.count),
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
