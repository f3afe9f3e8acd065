// Package progress coalesces per-file upload progress into one coarse percentage.
package progress

import (
	"math"

	"github.com/bitrise-io/go-uploadthing/upload"
)

// Entry is the progress of one file.
type Entry struct {
	File    *upload.File
	Percent float64
}

// Aggregator tracks per-file progress of one session.
// Values are stored by the file's position in the session's file set; the
// index table maps handles to positions. Aggregator is not safe for concurrent use.
type Aggregator struct {
	files   []*upload.File
	percent []float64
	index   map[*upload.File]int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{index: map[*upload.File]int{}}
}

// Reset replaces the tracked set with exactly files, each at 0%.
// A handle listed twice is tracked once.
func (a *Aggregator) Reset(files []*upload.File) {
	a.files = make([]*upload.File, 0, len(files))
	a.percent = make([]float64, 0, len(files))
	a.index = make(map[*upload.File]int, len(files))

	for _, f := range files {
		if _, ok := a.index[f]; ok {
			continue
		}
		a.index[f] = len(a.files)
		a.files = append(a.files, f)
		a.percent = append(a.percent, 0)
	}
}

// Record stores percent for file. Values are not clamped.
// It returns false when file is not part of the tracked set.
func (a *Aggregator) Record(file *upload.File, percent float64) bool {
	i, ok := a.index[file]
	if !ok {
		return false
	}
	a.percent[i] = percent
	return true
}

// Aggregate returns the average progress floored to a multiple of 10.
func (a *Aggregator) Aggregate() int {
	if len(a.percent) == 0 {
		return 0
	}

	var sum float64
	for _, p := range a.percent {
		sum += p
	}
	return int(math.Floor(sum/float64(len(a.percent))/10)) * 10
}

// Snapshot returns a copy of the tracked entries in file order.
func (a *Aggregator) Snapshot() []Entry {
	entries := make([]Entry, len(a.files))
	for i, f := range a.files {
		entries[i] = Entry{File: f, Percent: a.percent[i]}
	}
	return entries
}

// Len returns the number of tracked files.
func (a *Aggregator) Len() int {
	return len(a.files)
}

// Clear drops every tracked file.
func (a *Aggregator) Clear() {
	a.Reset(nil)
}
