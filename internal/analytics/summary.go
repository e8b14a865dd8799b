// Package analytics turns the raw scans of one link into display summaries.
//
// Aggregation happens in memory over the full scan history of a link. That is fine at
// the scale this service targets; a larger deployment would push the grouping down to
// the database.
package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/serroba/scanlink/internal/classifier"
	"github.com/serroba/scanlink/internal/geo"
	"github.com/serroba/scanlink/internal/scan"
)

// TopLocationsLimit is the number of cities kept in Summary.TopLocations.
const TopLocationsLimit = 5

// DateLayout formats trend buckets.
const DateLayout = "2006-01-02"

// DatePoint is the number of scans on one calendar date.
type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DeviceCount is the number of scans from one device category.
type DeviceCount struct {
	Device string `json:"name"`
	Count  int    `json:"value"`
}

// CityCount is the number of scans from one city.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// Summary is everything the dashboard shows for one link.
// Trend and Devices each sum to Total.
type Summary struct {
	Total        int           `json:"total"`
	Trend        []DatePoint   `json:"trend"`
	Devices      []DeviceCount `json:"devices"`
	TopLocations []CityCount   `json:"topLocations"`
}

// Aggregate summarizes events. Trend dates are calendar dates in loc (UTC when nil);
// only dates with at least one scan appear, in ascending order. Devices keep the
// order in which categories first appear. TopLocations holds the five busiest cities,
// ties kept in first-appearance order.
func Aggregate(events []scan.Event, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}

	dates := newTally()
	devices := newTally()
	cities := newTally()

	for _, event := range events {
		dates.add(event.ScannedAt.In(loc).Format(DateLayout))
		devices.add(orDefault(event.DeviceType, classifier.DeviceUnknown))
		cities.add(orDefault(event.City, geo.Unknown))
	}

	return Summary{
		Total:        len(events),
		Trend:        trend(dates),
		Devices:      deviceBreakdown(devices),
		TopLocations: topLocations(cities, TopLocationsLimit),
	}
}

func trend(t *tally) []DatePoint {
	points := make([]DatePoint, 0, len(t.order))
	for _, date := range t.order {
		points = append(points, DatePoint{Date: date, Count: t.counts[date]})
	}

	// DateLayout sorts lexically in chronological order.
	slices.SortFunc(points, func(a, b DatePoint) int {
		return cmp.Compare(a.Date, b.Date)
	})

	return points
}

func deviceBreakdown(t *tally) []DeviceCount {
	out := make([]DeviceCount, 0, len(t.order))
	for _, device := range t.order {
		out = append(out, DeviceCount{Device: device, Count: t.counts[device]})
	}

	return out
}

func topLocations(t *tally, limit int) []CityCount {
	out := make([]CityCount, 0, len(t.order))
	for _, city := range t.order {
		out = append(out, CityCount{City: city, Count: t.counts[city]})
	}

	slices.SortStableFunc(out, func(a, b CityCount) int {
		return b.Count - a.Count
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// tally counts keys and remembers the order they were first seen in.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(key string) {
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, key)
	}

	t.counts[key]++
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
