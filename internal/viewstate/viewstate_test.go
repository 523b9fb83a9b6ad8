package viewstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/stage"
)

func testResult() *detection.Result {
	return &detection.Result{Dominant: stage.Maturity, Total: 1}
}

func TestHappyPath(t *testing.T) {
	m := NewManager(time.Minute)
	const session = "s1"

	assert.Equal(t, PhaseIdle, m.Get(session).Phase, "fresh session starts idle")

	view, err := m.SelectImage(session, "fruit.jpg")
	require.NoError(t, err)
	assert.Equal(t, PhaseImageSelected, view.Phase)
	assert.Equal(t, "fruit.jpg", view.ImageName)

	view, err = m.StartAnalysis(session)
	require.NoError(t, err)
	assert.Equal(t, PhaseAnalyzing, view.Phase)

	view, err = m.CompleteAnalysis(session, testResult())
	require.NoError(t, err)
	assert.Equal(t, PhaseResultDisplayed, view.Phase)
	require.NotNil(t, view.Result)
	assert.Equal(t, stage.Maturity, view.Result.Dominant)

	view, err = m.MarkSaved(session, "rec-1", "analyses/u/1_fruit.jpg")
	require.NoError(t, err)
	assert.Equal(t, PhaseSaved, view.Phase)
	assert.Equal(t, "rec-1", view.RecordID)
}

func TestInvalidTransitions(t *testing.T) {
	m := NewManager(time.Minute)

	assertStateErr := func(t *testing.T, err error) {
		t.Helper()
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryState))
	}

	t.Run("cannot start analysis while idle", func(t *testing.T) {
		_, err := m.StartAnalysis("a")
		assertStateErr(t, err)
	})

	t.Run("cannot complete analysis that never started", func(t *testing.T) {
		_, err := m.CompleteAnalysis("b", testResult())
		assertStateErr(t, err)
	})

	t.Run("cannot save without a displayed result", func(t *testing.T) {
		_, err := m.MarkSaved("c", "rec", "loc")
		assertStateErr(t, err)
	})

	t.Run("cannot reselect mid-analysis", func(t *testing.T) {
		_, err := m.SelectImage("d", "one.jpg")
		require.NoError(t, err)
		_, err = m.StartAnalysis("d")
		require.NoError(t, err)

		_, err = m.SelectImage("d", "two.jpg")
		assertStateErr(t, err)
	})

	t.Run("failed transition leaves the view untouched", func(t *testing.T) {
		_, _ = m.SelectImage("e", "one.jpg")
		_, err := m.MarkSaved("e", "rec", "loc")
		assertStateErr(t, err)
		assert.Equal(t, PhaseImageSelected, m.Get("e").Phase)
	})
}

func TestFailAnalysisAllowsRetry(t *testing.T) {
	m := NewManager(time.Minute)
	const session = "s1"

	_, err := m.SelectImage(session, "fruit.jpg")
	require.NoError(t, err)
	_, err = m.StartAnalysis(session)
	require.NoError(t, err)

	view, err := m.FailAnalysis(session, "backend unreachable")
	require.NoError(t, err)
	assert.Equal(t, PhaseImageSelected, view.Phase)
	assert.Equal(t, "backend unreachable", view.LastError)
	assert.Nil(t, view.Result)

	// The same image can go straight back into analysis.
	view, err = m.StartAnalysis(session)
	require.NoError(t, err)
	assert.Equal(t, PhaseAnalyzing, view.Phase)
	assert.Empty(t, view.LastError, "retry clears the previous failure")
}

func TestReselectAfterResult(t *testing.T) {
	m := NewManager(time.Minute)
	const session = "s1"

	_, _ = m.SelectImage(session, "one.jpg")
	_, _ = m.StartAnalysis(session)
	_, _ = m.CompleteAnalysis(session, testResult())

	view, err := m.SelectImage(session, "two.jpg")
	require.NoError(t, err)
	assert.Equal(t, PhaseImageSelected, view.Phase)
	assert.Equal(t, "two.jpg", view.ImageName)
	assert.Nil(t, view.Result, "previous result cleared")
}

func TestReset(t *testing.T) {
	m := NewManager(time.Minute)
	const session = "s1"

	_, _ = m.SelectImage(session, "one.jpg")
	view := m.Reset(session)
	assert.Equal(t, PhaseIdle, view.Phase)
	assert.Empty(t, view.ImageName)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager(time.Minute)

	_, err := m.SelectImage("alpha", "a.jpg")
	require.NoError(t, err)

	assert.Equal(t, PhaseIdle, m.Get("beta").Phase)
	assert.Equal(t, PhaseImageSelected, m.Get("alpha").Phase)
}
