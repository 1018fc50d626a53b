package cloudwatch

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// SearchMap expands a log-level search term into the message substrings
// it matches. An unknown term is searched for literally; ALL disables
// filtering.
var SearchMap = map[string][]string{
	"ALL":       nil,
	"IMPORTANT": {"IMPORTANT", "WARNING", "MONITOR", "ERROR", "CRITICAL"},
	"WARNING":   {"WARNING", "MONITOR", "ERROR", "CRITICAL"},
	"MONITOR":   {"MONITOR", "ERROR", "CRITICAL"},
	"ERROR":     {"ERROR", "CRITICAL"},
}

// MonitorConfig controls one monitoring run.
type MonitorConfig struct {
	Group string

	// Start and End bound the events fetched. A zero End means follow
	// mode: poll forever, advancing Start past printed events.
	Start time.Time
	End   time.Time

	PollInterval time.Duration

	// Search is a level term from SearchMap or a literal substring.
	// Before and After add context lines around each match.
	Search string
	Before int
	After  int

	// StreamFilter keeps only streams whose name contains the substring.
	StreamFilter string

	// SortByStream orders events by (stream, time) instead of time.
	SortByStream bool

	Out io.Writer
}

// Monitor tails a log group.
type Monitor struct {
	store *Store
	cfg   MonitorConfig
}

// NewMonitor returns a monitor for one group.
func NewMonitor(store *Store, cfg MonitorConfig) *Monitor {
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Monitor{store: store, cfg: cfg}
}

// Run fetches and prints log events. With an End bound it prints one
// batch and returns; in follow mode it polls until the context is done.
func (m *Monitor) Run(ctx context.Context) error {
	start := m.cfg.Start
	for {
		events, err := m.collect(ctx, start)
		if err != nil {
			return err
		}
		m.print(events)

		if !m.cfg.End.IsZero() {
			return nil
		}
		if len(events) > 0 {
			start = events[len(events)-1].Timestamp.Add(time.Nanosecond)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// collect gathers the events of every active stream, sorted and
// search-filtered with context lines.
func (m *Monitor) collect(ctx context.Context, start time.Time) ([]Event, error) {
	streams, err := m.store.ActiveStreams(ctx, m.cfg.Group, start, m.cfg.StreamFilter)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, stream := range streams {
		evs, err := m.store.Events(ctx, m.cfg.Group, stream, start, m.cfg.End)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}

	if m.cfg.SortByStream {
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Stream != events[j].Stream {
				return events[i].Stream < events[j].Stream
			}
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
	} else {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
	}

	return filterEvents(events, m.cfg.Search, m.cfg.Before, m.cfg.After), nil
}

// filterEvents keeps the events matching the search terms plus their
// surrounding context lines, separating merged blocks with gap markers.
func filterEvents(events []Event, search string, before, after int) []Event {
	if search == "" {
		return events
	}
	terms, ok := SearchMap[strings.ToUpper(search)]
	if !ok {
		terms = []string{search}
	}
	if terms == nil {
		return events
	}

	var ranges [][2]int
	for i, ev := range events {
		if !matchesAny(ev, terms) {
			continue
		}
		lo := i - before
		if lo < 0 {
			lo = 0
		}
		hi := i + after
		if hi > len(events)-1 {
			hi = len(events) - 1
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	merged := mergeRanges(ranges)

	var out []Event
	for i, r := range merged {
		out = append(out, events[r[0]:r[1]+1]...)
		if i < len(merged)-1 {
			out = append(out, Event{})
		}
	}
	return out
}

func matchesAny(ev Event, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(ev.Message, term) || ev.Level == term {
			return true
		}
	}
	return false
}

// mergeRanges merges overlapping or adjacent [start, end] index ranges.
// Input order does not matter.
func mergeRanges(ranges [][2]int) [][2]int {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })

	merged := [][2]int{ranges[0]}
	for _, cur := range ranges[1:] {
		last := &merged[len(merged)-1]
		if cur[0] <= last[1]+1 {
			if cur[1] > last[1] {
				last[1] = cur[1]
			}
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

// print renders events one per line; a zero Event is a block separator.
func (m *Monitor) print(events []Event) {
	for _, ev := range events {
		if ev.Timestamp.IsZero() && ev.Stream == "" {
			fmt.Fprintln(m.cfg.Out)
			continue
		}
		fmt.Fprintf(m.cfg.Out, "[%s] [%s] [%s] %s\n",
			ev.Stream, ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Level,
			strings.TrimSpace(ev.Message))
	}
}
