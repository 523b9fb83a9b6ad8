// Package history pages and filters a user's saved analyses the way the
// history screen shows them: twelve records at a time, newest first, with
// text, stage and date-window filters that combine.
package history

import (
	"strings"
	"time"

	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/stage"
)

// PageSize is how many records one page of history shows.
const PageSize = 12

// Window restricts records to a recent time span.
type Window int

const (
	WindowAll Window = iota
	WindowToday
	WindowWeek
	WindowMonth
)

// Filter is the combined history filter. Zero value matches everything.
// All set criteria must hold for a record to stay visible.
type Filter struct {
	// Query matches case-insensitively against the dominant stage
	// identifier and its Arabic label.
	Query string

	// Stage, when set, requires an exact dominant stage.
	Stage *stage.Kind

	// Window restricts how old a record may be.
	Window Window
}

// Engine holds the loaded records and the current view over them. It is a
// plain in-memory structure; the caller feeds it records from whichever
// store is configured.
type Engine struct {
	records []datastore.AnalysisRecord
	filter  Filter
	page    int
	now     func() time.Time
}

// New creates an engine over the given records, which are expected newest
// first, showing the first page unfiltered.
func New(records []datastore.AnalysisRecord) *Engine {
	return &Engine{
		records: records,
		page:    1,
		now:     time.Now,
	}
}

// SetRecords replaces the backing records and resets to the first page.
func (e *Engine) SetRecords(records []datastore.AnalysisRecord) {
	e.records = records
	e.page = 1
}

// SetFilter applies a new filter. Changing the filter always snaps the
// view back to the first page.
func (e *Engine) SetFilter(filter Filter) {
	e.filter = filter
	e.page = 1
}

// Filter returns the active filter.
func (e *Engine) Filter() Filter {
	return e.filter
}

// Page returns the current page count.
func (e *Engine) Page() int {
	return e.page
}

// Matching returns every record the active filter keeps, in input order.
func (e *Engine) Matching() []datastore.AnalysisRecord {
	now := e.now()
	matched := make([]datastore.AnalysisRecord, 0, len(e.records))
	for i := range e.records {
		if Matches(&e.filter, &e.records[i], now) {
			matched = append(matched, e.records[i])
		}
	}
	return matched
}

// Visible returns the records currently on screen: the matching set cut to
// page * PageSize entries.
func (e *Engine) Visible() []datastore.AnalysisRecord {
	matched := e.Matching()
	limit := e.page * PageSize
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// HasMore reports whether another page of matching records exists.
func (e *Engine) HasMore() bool {
	return len(e.Matching()) > e.page*PageSize
}

// LoadMore extends the view by one page. Calling it when everything is
// already visible changes nothing and reports false.
func (e *Engine) LoadMore() bool {
	if !e.HasMore() {
		return false
	}
	e.page++
	return true
}

// Matches reports whether a single record passes the filter at the given
// reference time. Criteria combine; an empty filter matches everything.
func Matches(filter *Filter, record *datastore.AnalysisRecord, now time.Time) bool {
	if query := strings.TrimSpace(filter.Query); query != "" {
		q := strings.ToLower(query)
		id := strings.ToLower(record.Dominant)
		label := strings.ToLower(record.DominantLabel)
		if !strings.Contains(id, q) && !strings.Contains(label, q) {
			return false
		}
	}

	if filter.Stage != nil && record.Dominant != filter.Stage.String() {
		return false
	}

	if filter.Window != WindowAll {
		if record.CreatedAt.Before(windowCutoff(filter.Window, now)) {
			return false
		}
	}

	return true
}

// windowCutoff returns the oldest timestamp still inside the window.
func windowCutoff(window Window, now time.Time) time.Time {
	switch window {
	case WindowToday:
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// ParseWindow maps the API's window parameter to a Window. Unknown values
// mean no restriction.
func ParseWindow(s string) Window {
	switch strings.ToLower(s) {
	case "today":
		return WindowToday
	case "week":
		return WindowWeek
	case "month":
		return WindowMonth
	default:
		return WindowAll
	}
}
