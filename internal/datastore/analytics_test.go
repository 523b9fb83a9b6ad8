package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/stage"
)

func saveAnalysis(t *testing.T, ds *DataStore, owner string, dominant stage.Kind, confidence float64, total int) {
	t.Helper()
	result := &detection.Result{
		Dominant:      dominant,
		DominantLabel: dominant.LabelAr(),
		Total:         total,
		Detections: []detection.Detection{
			{Stage: dominant, Confidence: confidence, BBox: detection.BBox{0.1, 0.1, 0.2, 0.2}},
		},
	}
	require.NoError(t, ds.Save(context.Background(), NewAnalysisRecord(owner, "img.jpg", result)))
}

func TestDashboardEmptyOwner(t *testing.T) {
	ds := newTestStore(t)

	stats, err := ds.Dashboard(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Zero(t, stats.TotalAnalyses)
	assert.Zero(t, stats.MatureCount)
	assert.Zero(t, stats.AvgConfidencePercent, "no division by zero shortcut")
	assert.Zero(t, stats.TotalDetections)
	assert.Empty(t, stats.StageDistribution)
	assert.NotNil(t, stats.StageDistribution)
}

func TestDashboardFold(t *testing.T) {
	ds := newTestStore(t)

	saveAnalysis(t, ds, "owner-1", stage.Maturity, 0.9, 3)
	saveAnalysis(t, ds, "owner-1", stage.Maturity, 0.8, 2)
	saveAnalysis(t, ds, "owner-1", stage.Bud, 0.4, 1)
	saveAnalysis(t, ds, "owner-2", stage.Dry, 1.0, 5)

	stats, err := ds.Dashboard(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalAnalyses)
	assert.Equal(t, 2, stats.MatureCount)
	assert.Equal(t, 6, stats.TotalDetections)
	// (0.9 + 0.8 + 0.4) / 3 = 0.7 -> 70%
	assert.Equal(t, 70, stats.AvgConfidencePercent)
	assert.Equal(t, map[string]int{"Maturity": 2, "Bud": 1}, stats.StageDistribution)
}

func TestDashboardRounding(t *testing.T) {
	ds := newTestStore(t)

	saveAnalysis(t, ds, "owner-1", stage.Flower, 0.333, 1)
	saveAnalysis(t, ds, "owner-1", stage.Flower, 0.332, 1)

	stats, err := ds.Dashboard(context.Background(), "owner-1")
	require.NoError(t, err)
	// (0.333 + 0.332) / 2 = 0.3325 -> 33%
	assert.Equal(t, 33, stats.AvgConfidencePercent)
}
