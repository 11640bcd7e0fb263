// Package models contains data structures used throughout the application
package models

import (
	"sort"
	"time"
)

// Measurement is one named, unit-tagged value recorded at a point in time.
// A single entry usually expands into several measurements sharing Time and Note.
type Measurement struct {
	Time  time.Time `json:"date"`
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	Unit  string    `json:"units"`
	Note  string    `json:"note"`
}

// Table is an append-only collection of measurements.
// Append order carries no meaning; use Sorted when order matters.
type Table []Measurement

// Sorted returns a copy of the table ordered by time, oldest first.
// Measurements with equal timestamps keep their append order.
func (t Table) Sorted() Table {
	out := make(Table, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// Names returns the distinct measurement names in lexical order
func (t Table) Names() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, m := range t {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// Span returns the earliest and latest timestamps in the table
func (t Table) Span() (first, last time.Time, ok bool) {
	for i, m := range t {
		if i == 0 || m.Time.Before(first) {
			first = m.Time
		}
		if i == 0 || m.Time.After(last) {
			last = m.Time
		}
	}
	return first, last, len(t) > 0
}

// Latest returns the most recent measurement with the given name
func (t Table) Latest(name string) (Measurement, bool) {
	var (
		latest Measurement
		found  bool
	)
	for _, m := range t {
		if m.Name != name {
			continue
		}
		if !found || !m.Time.Before(latest.Time) {
			latest = m
			found = true
		}
	}
	return latest, found
}

// History returns the values recorded for name, oldest first, capped at the
// last n values when n > 0
func (t Table) History(name string, n int) []float64 {
	values := make([]float64, 0)
	for _, m := range t.Sorted() {
		if m.Name == name {
			values = append(values, m.Value)
		}
	}
	if n > 0 && len(values) > n {
		values = values[len(values)-n:]
	}
	return values
}
