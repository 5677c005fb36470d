package render

import (
	"sort"
	"time"

	"github.com/cyraxred/constat/internal/identity"
	"github.com/cyraxred/constat/internal/linetree"
	"github.com/cyraxred/constat/internal/plumbing"
)

// OtherAuthorsName labels the series folding the authors below the top-N
// cutoff.
const OtherAuthorsName = "Other"

// Point is one day's line count of an author.
type Point struct {
	Day   time.Time
	Lines uint64
}

// Series is the per-day history of a single author, aligned on the global
// day axis: every Series produced by a Builder has one Point per day.
type Series struct {
	Name   string
	Points []Point
}

// Builder accumulates the per-commit snapshots of an engine run into
// per-author day samples. Several commits on the same day collapse into the
// per-author maximum of that day.
type Builder struct {
	registry  *identity.Registry
	predicate func(path string) bool
	// days maps a UTC day -> author -> the day's maximum line count.
	days map[int64]map[identity.AuthorId]uint64
}

// NewBuilder returns a Builder counting the paths admitted by the
// predicate; a nil predicate admits everything.
func NewBuilder(registry *identity.Registry, predicate func(path string) bool) *Builder {
	return &Builder{
		registry:  registry,
		predicate: predicate,
		days:      map[int64]map[identity.AuthorId]uint64{},
	}
}

// Consume records one processed commit. It is meant to be called from the
// engine's OnCommit callback.
func (builder *Builder) Consume(
	_ plumbing.Repository, commit plumbing.Commit, tree *linetree.Tree, _, _ int) {

	when := commit.Timestamp().UTC()
	day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, time.UTC).Unix()
	counts := tree.Stat(builder.predicate)
	sample := builder.days[day]
	if sample == nil {
		sample = map[identity.AuthorId]uint64{}
		builder.days[day] = sample
	}
	// Every registered author gets a sample, so a day without a line for
	// somebody records the zero and the series drops instead of carrying a
	// stale value forward. Several samples per day keep the maximum.
	for id := identity.AuthorId(0); int(id) < builder.registry.Count(); id++ {
		if count := counts[id]; count >= sample[id] {
			sample[id] = count
		}
	}
}

// Series flattens the accumulated samples into one aligned Series per
// author. top limits the number of individual authors, ranked by their peak
// line count; the rest fold into a single OtherAuthorsName series. The
// baseline author is never folded. A non-positive top keeps everybody.
func (builder *Builder) Series(top int, baseline string) []Series {
	days := make([]int64, 0, len(builder.days))
	for day := range builder.days {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	authorCount := builder.registry.Count()
	peaks := make([]uint64, authorCount)
	for _, sample := range builder.days {
		for id, count := range sample {
			if count > peaks[id] {
				peaks[id] = count
			}
		}
	}

	kept := builder.pickTop(peaks, top, baseline)

	values := func(id identity.AuthorId) []Point {
		points := make([]Point, len(days))
		var last uint64
		for i, day := range days {
			if count, sampled := builder.days[day][id]; sampled {
				last = count
			}
			points[i] = Point{Day: time.Unix(day, 0).UTC(), Lines: last}
		}
		return points
	}

	var result []Series
	var folded []Point
	for id := identity.AuthorId(0); int(id) < authorCount; id++ {
		points := values(id)
		if kept[id] {
			result = append(result, Series{Name: builder.registry.FriendlyNameOf(id), Points: points})
			continue
		}
		if folded == nil {
			folded = make([]Point, len(points))
			copy(folded, points)
			continue
		}
		for i := range folded {
			folded[i].Lines += points[i].Lines
		}
	}
	if folded != nil {
		result = append(result, Series{Name: OtherAuthorsName, Points: folded})
	}
	return result
}

// pickTop marks the authors surviving the top-N cutoff.
func (builder *Builder) pickTop(peaks []uint64, top int, baseline string) map[identity.AuthorId]bool {
	kept := map[identity.AuthorId]bool{}
	if top <= 0 || top >= len(peaks) {
		for id := range peaks {
			kept[identity.AuthorId(id)] = true
		}
		return kept
	}
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return peaks[order[i]] > peaks[order[j]] })
	for _, id := range order[:top] {
		kept[identity.AuthorId(id)] = true
	}
	for id := 0; id < len(peaks); id++ {
		if name, _ := builder.registry.NameOf(identity.AuthorId(id)); name == baseline {
			kept[identity.AuthorId(id)] = true
		}
	}
	return kept
}
