package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/stage"
)

var testNow = time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

func record(id string, dominant stage.Kind, age time.Duration) datastore.AnalysisRecord {
	return datastore.AnalysisRecord{
		ID:            id,
		Dominant:      dominant.String(),
		DominantLabel: dominant.LabelAr(),
		CreatedAt:     testNow.Add(-age),
	}
}

func newTestEngine(records []datastore.AnalysisRecord) *Engine {
	e := New(records)
	e.now = func() time.Time { return testNow }
	return e
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	records := []datastore.AnalysisRecord{
		record("a", stage.Maturity, time.Hour),
		record("b", stage.Bud, 40*24*time.Hour),
	}
	e := newTestEngine(records)
	assert.Len(t, e.Matching(), 2)
}

func TestQueryFilter(t *testing.T) {
	records := []datastore.AnalysisRecord{
		record("a", stage.Maturity, time.Hour),
		record("b", stage.Bud, time.Hour),
		record("c", stage.EarlyGrowth, time.Hour),
	}
	e := newTestEngine(records)

	t.Run("matches stage identifier case-insensitively", func(t *testing.T) {
		e.SetFilter(Filter{Query: "matur"})
		got := e.Matching()
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("matches arabic label", func(t *testing.T) {
		e.SetFilter(Filter{Query: "برعم"})
		got := e.Matching()
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("substring of hyphenated identifier", func(t *testing.T) {
		e.SetFilter(Filter{Query: "early-growth"})
		got := e.Matching()
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("whitespace-only query matches everything", func(t *testing.T) {
		e.SetFilter(Filter{Query: "   "})
		assert.Len(t, e.Matching(), 3)
	})
}

func TestStageFilter(t *testing.T) {
	records := []datastore.AnalysisRecord{
		record("a", stage.Maturity, time.Hour),
		record("b", stage.Bud, time.Hour),
	}
	e := newTestEngine(records)

	bud := stage.Bud
	e.SetFilter(Filter{Stage: &bud})
	got := e.Matching()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestWindowFilter(t *testing.T) {
	records := []datastore.AnalysisRecord{
		record("today", stage.Maturity, 2*time.Hour),
		record("yesterday", stage.Maturity, 20*time.Hour),
		record("lastweek", stage.Maturity, 6*24*time.Hour),
		record("lastmonth", stage.Maturity, 25*24*time.Hour),
		record("ancient", stage.Maturity, 90*24*time.Hour),
	}
	e := newTestEngine(records)

	ids := func() []string {
		var out []string
		for _, r := range e.Matching() {
			out = append(out, r.ID)
		}
		return out
	}

	t.Run("today starts at midnight", func(t *testing.T) {
		// 20 hours before 15:00 is yesterday evening, so it drops out
		// even though it is within 24 hours.
		e.SetFilter(Filter{Window: WindowToday})
		assert.Equal(t, []string{"today"}, ids())
	})

	t.Run("week keeps the last seven days", func(t *testing.T) {
		e.SetFilter(Filter{Window: WindowWeek})
		assert.Equal(t, []string{"today", "yesterday", "lastweek"}, ids())
	})

	t.Run("month is one calendar month back", func(t *testing.T) {
		e.SetFilter(Filter{Window: WindowMonth})
		assert.Equal(t, []string{"today", "yesterday", "lastweek", "lastmonth"}, ids())
	})
}

func TestFiltersCombine(t *testing.T) {
	records := []datastore.AnalysisRecord{
		record("a", stage.Maturity, time.Hour),
		record("b", stage.Maturity, 40*24*time.Hour),
		record("c", stage.Bud, time.Hour),
	}
	e := newTestEngine(records)

	maturity := stage.Maturity
	e.SetFilter(Filter{Stage: &maturity, Window: WindowWeek})
	got := e.Matching()
	require.Len(t, got, 1, "all criteria must hold together")
	assert.Equal(t, "a", got[0].ID)
}

func TestPaging(t *testing.T) {
	records := make([]datastore.AnalysisRecord, 30)
	for i := range records {
		records[i] = record(fmt.Sprintf("r%02d", i), stage.Maturity, time.Duration(i)*time.Minute)
	}
	e := newTestEngine(records)

	assert.Len(t, e.Visible(), PageSize, "first page shows twelve")
	assert.True(t, e.HasMore())

	require.True(t, e.LoadMore())
	assert.Len(t, e.Visible(), 2*PageSize)

	require.True(t, e.LoadMore())
	assert.Len(t, e.Visible(), 30, "last page is partial")
	assert.False(t, e.HasMore())

	t.Run("load more at the end is a no-op", func(t *testing.T) {
		page := e.Page()
		assert.False(t, e.LoadMore())
		assert.Equal(t, page, e.Page())
		assert.Len(t, e.Visible(), 30)
	})

	t.Run("changing the filter resets to page one", func(t *testing.T) {
		e.SetFilter(Filter{Query: "maturity"})
		assert.Equal(t, 1, e.Page())
		assert.Len(t, e.Visible(), PageSize)
	})

	t.Run("replacing records resets to page one", func(t *testing.T) {
		e.SetFilter(Filter{})
		e.LoadMore()
		e.SetRecords(records[:5])
		assert.Equal(t, 1, e.Page())
		assert.Len(t, e.Visible(), 5)
	})
}

func TestParseWindow(t *testing.T) {
	assert.Equal(t, WindowToday, ParseWindow("today"))
	assert.Equal(t, WindowWeek, ParseWindow("Week"))
	assert.Equal(t, WindowMonth, ParseWindow("month"))
	assert.Equal(t, WindowAll, ParseWindow(""))
	assert.Equal(t, WindowAll, ParseWindow("fortnight"))
}
